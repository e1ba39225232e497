package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tutorbook/pkg/calendar"
	"tutorbook/pkg/model"
)

// BookingClient is a typed client for the availability, booking and hold
// endpoints.
type BookingClient struct {
	httpClient *HttpClient
}

func NewBookingClient(baseURL string) *BookingClient {
	return &BookingClient{
		httpClient: NewHttpClient(baseURL),
	}
}

// As returns a client acting for actor.
func (c *BookingClient) As(actor model.Actor, secret string) *BookingClient {
	return &BookingClient{httpClient: c.httpClient.As(actor, secret)}
}

func (c *BookingClient) HTTP() *HttpClient {
	return c.httpClient
}

type Metadata struct {
	TotalCount int64 `json:"total_count"`
	Limit      int   `json:"limit"`
	Offset     int64 `json:"offset"`
}

type ListOptions struct {
	From     time.Time
	To       time.Time
	Statuses []model.BookingStatus
	Limit    int
	Offset   int64
}

func (c *BookingClient) AddWindow(ctx context.Context, window *model.AvailabilityWindow) (*model.AvailabilityWindow, error) {
	resp, err := c.httpClient.POST(ctx, "/api/v1/tutors/"+url.PathEscape(window.TutorID)+"/availability", window)
	if err != nil {
		return nil, err
	}
	var created model.AvailabilityWindow
	if err := decodeData(resp, http.StatusCreated, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *BookingClient) ListEffective(ctx context.Context, tutorID string, from, to time.Time) ([]calendar.Interval, error) {
	q := url.Values{}
	q.Set("from", from.UTC().Format(time.RFC3339))
	q.Set("to", to.UTC().Format(time.RFC3339))

	resp, err := c.httpClient.GET(ctx, "/api/v1/tutors/"+url.PathEscape(tutorID)+"/availability?"+q.Encode())
	if err != nil {
		return nil, err
	}
	var effective struct {
		Intervals []calendar.Interval `json:"intervals"`
	}
	if err := decodeData(resp, http.StatusOK, &effective); err != nil {
		return nil, err
	}
	return effective.Intervals, nil
}

func (c *BookingClient) Request(ctx context.Context, req *model.BookingRequest) (*model.Booking, error) {
	resp, err := c.httpClient.POST(ctx, "/api/v1/bookings", req)
	if err != nil {
		return nil, err
	}
	return decodeBooking(resp, http.StatusCreated)
}

func (c *BookingClient) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	resp, err := c.httpClient.GET(ctx, "/api/v1/bookings/id/"+url.PathEscape(id))
	if err != nil {
		return nil, err
	}
	return decodeBooking(resp, http.StatusOK)
}

func (c *BookingClient) ListByTutor(ctx context.Context, tutorID string, opts ListOptions) ([]*model.Booking, *Metadata, error) {
	return c.list(ctx, "tutor_id", tutorID, opts)
}

func (c *BookingClient) ListByStudent(ctx context.Context, studentID string, opts ListOptions) ([]*model.Booking, *Metadata, error) {
	return c.list(ctx, "student_id", studentID, opts)
}

func (c *BookingClient) Respond(ctx context.Context, id string, version int64, accept bool) (*model.Booking, error) {
	return c.changeStatus(ctx, id, "respond", model.StatusChange{Version: version, Accept: &accept})
}

func (c *BookingClient) Cancel(ctx context.Context, id string, version int64) (*model.Booking, error) {
	return c.changeStatus(ctx, id, "cancel", model.StatusChange{Version: version})
}

func (c *BookingClient) Start(ctx context.Context, id string, version int64) (*model.Booking, error) {
	return c.changeStatus(ctx, id, "start", model.StatusChange{Version: version})
}

func (c *BookingClient) Complete(ctx context.Context, id string, version int64) (*model.Booking, error) {
	return c.changeStatus(ctx, id, "complete", model.StatusChange{Version: version})
}

func (c *BookingClient) Hold(ctx context.Context, req *model.BookingRequest) (*model.Hold, error) {
	resp, err := c.httpClient.POST(ctx, "/api/v1/holds", req)
	if err != nil {
		return nil, err
	}
	var hold model.Hold
	if err := decodeData(resp, http.StatusCreated, &hold); err != nil {
		return nil, err
	}
	return &hold, nil
}

func (c *BookingClient) ConfirmHold(ctx context.Context, token, note string) (*model.Booking, error) {
	resp, err := c.httpClient.POST(ctx, "/api/v1/holds/"+url.PathEscape(token)+"/confirm", model.HoldConfirmation{Note: note})
	if err != nil {
		return nil, err
	}
	return decodeBooking(resp, http.StatusCreated)
}

func (c *BookingClient) ReleaseHold(ctx context.Context, token string) error {
	resp, err := c.httpClient.DELETE(ctx, "/api/v1/holds/"+url.PathEscape(token))
	if err != nil {
		return err
	}
	return decodeData(resp, http.StatusNoContent, nil)
}

func (c *BookingClient) changeStatus(ctx context.Context, id, action string, change model.StatusChange) (*model.Booking, error) {
	resp, err := c.httpClient.POST(ctx, "/api/v1/bookings/id/"+url.PathEscape(id)+"/"+action, change)
	if err != nil {
		return nil, err
	}
	return decodeBooking(resp, http.StatusOK)
}

func (c *BookingClient) list(ctx context.Context, ownerParam, ownerID string, opts ListOptions) ([]*model.Booking, *Metadata, error) {
	q := url.Values{}
	q.Set(ownerParam, ownerID)
	if !opts.From.IsZero() {
		q.Set("from", opts.From.UTC().Format(time.RFC3339))
	}
	if !opts.To.IsZero() {
		q.Set("to", opts.To.UTC().Format(time.RFC3339))
	}
	if len(opts.Statuses) > 0 {
		names := make([]string, len(opts.Statuses))
		for i, s := range opts.Statuses {
			names[i] = string(s)
		}
		q.Set("status", strings.Join(names, ","))
	}
	if opts.Limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", opts.Limit))
	}
	if opts.Offset > 0 {
		q.Set("offset", fmt.Sprintf("%d", opts.Offset))
	}

	resp, err := c.httpClient.GET(ctx, "/api/v1/bookings?"+q.Encode())
	if err != nil {
		return nil, nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, nil, decodeAPIError(resp)
	}

	var wrapper struct {
		Data json.RawMessage `json:"data"`
		Metadata
	}
	if err := json.Unmarshal(resp.Body, &wrapper); err != nil {
		return nil, nil, fmt.Errorf("could not decode paginated response: %s: %w", resp.ToString(), err)
	}

	var bookings []*model.Booking
	if err := json.Unmarshal(wrapper.Data, &bookings); err != nil {
		return nil, nil, fmt.Errorf("could not decode booking list: %s: %w", resp.ToString(), err)
	}
	return bookings, &wrapper.Metadata, nil
}

func decodeBooking(resp *Response, want int) (*model.Booking, error) {
	var booking model.Booking
	if err := decodeData(resp, want, &booking); err != nil {
		return nil, err
	}
	return &booking, nil
}
