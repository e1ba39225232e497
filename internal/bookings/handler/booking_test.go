package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tutorbook/internal/bookings/repository"
	apperrors "tutorbook/pkg/errors"
	"tutorbook/pkg/logger"
	"tutorbook/pkg/middleware"
	"tutorbook/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type transitionCall struct {
	op      string
	actor   model.Actor
	id      string
	version int64
	accept  bool
}

type mockBookingService struct {
	requestFunc func(ctx context.Context, actor model.Actor, req *model.BookingRequest) (*model.Booking, error)
	listFunc    func(owner string, filter repository.Filter, limit int, offset int64) ([]*model.Booking, int64, error)
	getFunc     func(ctx context.Context, actor model.Actor, id string) (*model.Booking, error)

	transitionErr error
	calls         []transitionCall
	confirmed     *model.HoldConfirmation
	holdToken     string
}

func (m *mockBookingService) RequestBooking(ctx context.Context, actor model.Actor, req *model.BookingRequest) (*model.Booking, error) {
	if m.requestFunc != nil {
		return m.requestFunc(ctx, actor, req)
	}
	return &model.Booking{ID: "b1", TutorID: req.TutorID, StudentID: actor.ID, Status: model.StatusRequested, Version: 1}, nil
}

func (m *mockBookingService) HoldSlot(ctx context.Context, actor model.Actor, req *model.BookingRequest) (*model.Hold, error) {
	return &model.Hold{Token: "sealed-token", TutorID: req.TutorID}, nil
}

func (m *mockBookingService) ConfirmHold(ctx context.Context, actor model.Actor, token string, req *model.HoldConfirmation) (*model.Booking, error) {
	m.holdToken = token
	m.confirmed = req
	return &model.Booking{ID: "b1", StudentID: actor.ID, Status: model.StatusRequested, Version: 1}, nil
}

func (m *mockBookingService) ReleaseHold(ctx context.Context, actor model.Actor, token string) error {
	m.holdToken = token
	return nil
}

func (m *mockBookingService) record(op string, actor model.Actor, id string, version int64, accept bool) (*model.Booking, error) {
	m.calls = append(m.calls, transitionCall{op: op, actor: actor, id: id, version: version, accept: accept})
	if m.transitionErr != nil {
		return nil, m.transitionErr
	}
	return &model.Booking{ID: id, Version: version + 1}, nil
}

func (m *mockBookingService) RespondToRequest(ctx context.Context, actor model.Actor, id string, expectedVersion int64, accept bool) (*model.Booking, error) {
	return m.record("respond", actor, id, expectedVersion, accept)
}

func (m *mockBookingService) CancelBooking(ctx context.Context, actor model.Actor, id string, expectedVersion int64) (*model.Booking, error) {
	return m.record("cancel", actor, id, expectedVersion, false)
}

func (m *mockBookingService) StartSession(ctx context.Context, actor model.Actor, id string, expectedVersion int64) (*model.Booking, error) {
	return m.record("start", actor, id, expectedVersion, false)
}

func (m *mockBookingService) CompleteSession(ctx context.Context, actor model.Actor, id string, expectedVersion int64) (*model.Booking, error) {
	return m.record("complete", actor, id, expectedVersion, false)
}

func (m *mockBookingService) AdvanceDue(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}

func (m *mockBookingService) GetByID(ctx context.Context, actor model.Actor, id string) (*model.Booking, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, actor, id)
	}
	return &model.Booking{ID: id}, nil
}

func (m *mockBookingService) ListByTutor(ctx context.Context, actor model.Actor, tutorID string, filter repository.Filter, limit int, offset int64) ([]*model.Booking, int64, error) {
	return m.listFunc("tutor:"+tutorID, filter, limit, offset)
}

func (m *mockBookingService) ListByStudent(ctx context.Context, actor model.Actor, studentID string, filter repository.Filter, limit int, offset int64) ([]*model.Booking, int64, error) {
	return m.listFunc("student:"+studentID, filter, limit, offset)
}

func newTestRouter(svc *mockBookingService) http.Handler {
	log := logger.Discard()
	h := NewBookingHandler(svc, 93*24*time.Hour, log)
	router := httprouter.New()
	h.RegisterRoutes(router)
	return middleware.ActorIdentification("", log)(router)
}

func do(t *testing.T, router http.Handler, method, path, body, actorID, role string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if actorID != "" {
		req.Header.Set(middleware.HeaderActorID, actorID)
		req.Header.Set(middleware.HeaderActorRole, role)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return resp.Code
}

func TestRequest(t *testing.T) {
	var got model.Actor
	router := newTestRouter(&mockBookingService{
		requestFunc: func(ctx context.Context, actor model.Actor, req *model.BookingRequest) (*model.Booking, error) {
			got = actor
			if req.TutorID != "tutor-1" || req.ScheduledEnd.Sub(req.ScheduledStart) != time.Hour {
				t.Errorf("unexpected request %+v", req)
			}
			return &model.Booking{ID: "b1", Status: model.StatusRequested, Version: 1}, nil
		},
	})

	body := `{"tutor_id":"tutor-1","subject_id":"math","scheduled_start":"2026-03-02T10:00:00Z","scheduled_end":"2026-03-02T11:00:00Z"}`

	w := do(t, router, http.MethodPost, "/api/v1/bookings", body, "", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without actor, got %d", w.Code)
	}

	w = do(t, router, http.MethodPost, "/api/v1/bookings", body, "student-1", "student")
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if got.ID != "student-1" || got.Role != model.RoleStudent {
		t.Errorf("unexpected actor %+v", got)
	}

	var resp struct {
		Data model.Booking `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.ID != "b1" || resp.Data.Status != model.StatusRequested {
		t.Errorf("unexpected body %+v", resp.Data)
	}

	w = do(t, router, http.MethodPost, "/api/v1/bookings", `{"tutor_id":1}`, "student-1", "STUDENT")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad JSON, got %d", w.Code)
	}
}

func TestRequest_ServiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"overlap", apperrors.Overlap("overlaps", nil), http.StatusConflict, apperrors.CodeOverlap},
		{"outside window", apperrors.OutsideWindow("outside", nil), http.StatusUnprocessableEntity, apperrors.CodeOutsideWindow},
		{"claimed", apperrors.AlreadyClaimed("claimed", nil), http.StatusConflict, apperrors.CodeAlreadyClaimed},
		{"expired", apperrors.ClaimExpired("expired", nil), http.StatusGone, apperrors.CodeClaimExpired},
		{"forbidden", apperrors.Forbidden("no"), http.StatusForbidden, apperrors.CodeForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&mockBookingService{
				requestFunc: func(ctx context.Context, actor model.Actor, req *model.BookingRequest) (*model.Booking, error) {
					return nil, tt.err
				},
			})
			w := do(t, router, http.MethodPost, "/api/v1/bookings", `{"tutor_id":"tutor-1"}`, "student-1", "STUDENT")
			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, w.Code)
			}
			if code := decodeError(t, w); code != tt.wantCode {
				t.Errorf("expected code %s, got %s", tt.wantCode, code)
			}
		})
	}
}

func TestTransitions(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantCall   *transitionCall
	}{
		{"accept", "/api/v1/bookings/id/b1/respond", `{"accept":true,"version":1}`, http.StatusOK, &transitionCall{op: "respond", id: "b1", version: 1, accept: true}},
		{"reject", "/api/v1/bookings/id/b1/respond", `{"accept":false,"version":1}`, http.StatusOK, &transitionCall{op: "respond", id: "b1", version: 1}},
		{"respond without accept", "/api/v1/bookings/id/b1/respond", `{"version":1}`, http.StatusBadRequest, nil},
		{"cancel", "/api/v1/bookings/id/b1/cancel", `{"version":2}`, http.StatusOK, &transitionCall{op: "cancel", id: "b1", version: 2}},
		{"start", "/api/v1/bookings/id/b1/start", `{"version":2}`, http.StatusOK, &transitionCall{op: "start", id: "b1", version: 2}},
		{"complete", "/api/v1/bookings/id/b1/complete", `{"version":3}`, http.StatusOK, &transitionCall{op: "complete", id: "b1", version: 3}},
		{"unknown field", "/api/v1/bookings/id/b1/cancel", `{"version":2,"status":"CANCELLED"}`, http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockBookingService{}
			w := do(t, newTestRouter(svc), http.MethodPost, tt.path, tt.body, "tutor-1", "TUTOR")
			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			if tt.wantCall == nil {
				if len(svc.calls) != 0 {
					t.Errorf("expected no service call, got %+v", svc.calls)
				}
				return
			}
			if len(svc.calls) != 1 {
				t.Fatalf("expected one service call, got %d", len(svc.calls))
			}
			call := svc.calls[0]
			call.actor = model.Actor{}
			if call != *tt.wantCall {
				t.Errorf("expected %+v, got %+v", *tt.wantCall, call)
			}
		})
	}
}

func TestTransitions_StaleVersion(t *testing.T) {
	svc := &mockBookingService{transitionErr: apperrors.StaleVersion("reload", nil)}
	w := do(t, newTestRouter(svc), http.MethodPost, "/api/v1/bookings/id/b1/cancel", `{"version":1}`, "student-1", "STUDENT")
	if w.Code != http.StatusPreconditionFailed {
		t.Fatalf("expected 412, got %d", w.Code)
	}
	if code := decodeError(t, w); code != apperrors.CodeStaleVersion {
		t.Errorf("expected %s, got %s", apperrors.CodeStaleVersion, code)
	}
}

func TestGetByID(t *testing.T) {
	router := newTestRouter(&mockBookingService{
		getFunc: func(ctx context.Context, actor model.Actor, id string) (*model.Booking, error) {
			if id == "missing" {
				return nil, apperrors.NotFoundWithID("Booking", id)
			}
			return &model.Booking{ID: id, TutorID: actor.ID}, nil
		},
	})

	if w := do(t, router, http.MethodGet, "/api/v1/bookings/id/b1", "", "tutor-1", "TUTOR"); w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/api/v1/bookings/id/missing", "", "tutor-1", "TUTOR"); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/api/v1/bookings/id/b1", "", "", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestList(t *testing.T) {
	var (
		gotOwner  string
		gotFilter repository.Filter
		gotLimit  int
		gotOffset int64
	)
	router := newTestRouter(&mockBookingService{
		listFunc: func(owner string, filter repository.Filter, limit int, offset int64) ([]*model.Booking, int64, error) {
			gotOwner, gotFilter, gotLimit, gotOffset = owner, filter, limit, offset
			return []*model.Booking{{ID: "b1"}, {ID: "b2"}}, 7, nil
		},
	})

	path := "/api/v1/bookings?tutor_id=tutor-1&from=2026-03-02T00:00:00Z&to=2026-03-09T00:00:00Z&status=confirmed,%20requested,confirmed&limit=2&offset=4"
	w := do(t, router, http.MethodGet, path, "", "tutor-1", "TUTOR")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	if gotOwner != "tutor:tutor-1" || gotLimit != 2 || gotOffset != 4 {
		t.Errorf("unexpected owner=%s limit=%d offset=%d", gotOwner, gotLimit, gotOffset)
	}
	if !gotFilter.From.Equal(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)) || !gotFilter.To.Equal(time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected range [%v, %v)", gotFilter.From, gotFilter.To)
	}
	if len(gotFilter.Statuses) != 2 || gotFilter.Statuses[0] != model.StatusConfirmed || gotFilter.Statuses[1] != model.StatusRequested {
		t.Errorf("unexpected statuses %v", gotFilter.Statuses)
	}

	var resp struct {
		Data       []model.Booking `json:"data"`
		TotalCount int64           `json:"total_count"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Data) != 2 || resp.TotalCount != 7 {
		t.Errorf("unexpected page %+v", resp)
	}

	w = do(t, router, http.MethodGet, "/api/v1/bookings?student_id=student-1", "", "student-1", "STUDENT")
	if w.Code != http.StatusOK || gotOwner != "student:student-1" {
		t.Errorf("expected student listing, got %d for %s", w.Code, gotOwner)
	}
}

func TestList_BadQueries(t *testing.T) {
	router := newTestRouter(&mockBookingService{
		listFunc: func(owner string, filter repository.Filter, limit int, offset int64) ([]*model.Booking, int64, error) {
			t.Fatal("service should not be called")
			return nil, 0, nil
		},
	})

	tests := []struct {
		name  string
		query string
	}{
		{"no owner", ""},
		{"both owners", "tutor_id=tutor-1&student_id=student-1"},
		{"unknown status", "tutor_id=tutor-1&status=LOST"},
		{"half a range", "tutor_id=tutor-1&from=2026-03-02T00:00:00Z"},
		{"inverted range", "tutor_id=tutor-1&from=2026-03-09T00:00:00Z&to=2026-03-02T00:00:00Z"},
		{"bad limit", "tutor_id=tutor-1&limit=many"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, http.MethodGet, "/api/v1/bookings?"+tt.query, "", "tutor-1", "TUTOR")
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestHolds(t *testing.T) {
	svc := &mockBookingService{}
	router := newTestRouter(svc)

	body := `{"tutor_id":"tutor-1","subject_id":"math","scheduled_start":"2026-03-02T10:00:00Z","scheduled_end":"2026-03-02T11:00:00Z"}`
	w := do(t, router, http.MethodPost, "/api/v1/holds", body, "student-1", "STUDENT")
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	var resp struct {
		Data model.Hold `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.Token != "sealed-token" {
		t.Errorf("unexpected hold %+v", resp.Data)
	}

	w = do(t, router, http.MethodPost, "/api/v1/holds/sealed-token/confirm", `{"note":"see you"}`, "student-1", "STUDENT")
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	if svc.holdToken != "sealed-token" || svc.confirmed == nil || svc.confirmed.Note != "see you" {
		t.Errorf("unexpected confirmation token=%s req=%+v", svc.holdToken, svc.confirmed)
	}

	w = do(t, router, http.MethodPost, "/api/v1/holds/other-token/confirm", "", "student-1", "STUDENT")
	if w.Code != http.StatusCreated || svc.holdToken != "other-token" {
		t.Errorf("expected bodyless confirm to succeed, got %d", w.Code)
	}

	w = do(t, router, http.MethodDelete, "/api/v1/holds/sealed-token", "", "student-1", "STUDENT")
	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", w.Code)
	}
}
