package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tutorbook/pkg/calendar"
	apperrors "tutorbook/pkg/errors"
	"tutorbook/pkg/logger"
	"tutorbook/pkg/middleware"
	"tutorbook/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type mockAvailabilityService struct {
	addWindowFunc     func(ctx context.Context, window *model.AvailabilityWindow) (*model.AvailabilityWindow, error)
	removeWindowFunc  func(ctx context.Context, tutorID, id string) error
	listEffectiveFunc func(ctx context.Context, tutorID string, from, to time.Time) ([]calendar.Interval, error)
}

func (m *mockAvailabilityService) AddWindow(ctx context.Context, window *model.AvailabilityWindow) (*model.AvailabilityWindow, error) {
	if m.addWindowFunc != nil {
		return m.addWindowFunc(ctx, window)
	}
	window.ID = "w1"
	return window, nil
}

func (m *mockAvailabilityService) RemoveWindow(ctx context.Context, tutorID, id string) error {
	if m.removeWindowFunc != nil {
		return m.removeWindowFunc(ctx, tutorID, id)
	}
	return nil
}

func (m *mockAvailabilityService) ListWindows(ctx context.Context, tutorID string) ([]*model.AvailabilityWindow, error) {
	return []*model.AvailabilityWindow{}, nil
}

func (m *mockAvailabilityService) ListEffectiveWindows(ctx context.Context, tutorID string, from, to time.Time) ([]calendar.Interval, error) {
	if m.listEffectiveFunc != nil {
		return m.listEffectiveFunc(ctx, tutorID, from, to)
	}
	return []calendar.Interval{}, nil
}

func newTestRouter(svc *mockAvailabilityService) http.Handler {
	log := logger.Discard()
	h := NewAvailabilityHandler(svc, 93*24*time.Hour, log)
	router := httprouter.New()
	h.RegisterRoutes(router)
	return middleware.ActorIdentification("", log)(router)
}

func TestAddWindow_Authorization(t *testing.T) {
	var stored *model.AvailabilityWindow
	router := newTestRouter(&mockAvailabilityService{
		addWindowFunc: func(ctx context.Context, w *model.AvailabilityWindow) (*model.AvailabilityWindow, error) {
			stored = w
			w.ID = "w1"
			return w, nil
		},
	})

	body := `{"tutor_id":"someone-else","recurrence":"WEEKLY","day_of_week":"Monday","start_time":"09:00","end_time":"12:00"}`

	tests := []struct {
		name       string
		actorID    string
		role       string
		wantStatus int
	}{
		{"anonymous", "", "", http.StatusUnauthorized},
		{"student", "tutor-1", "STUDENT", http.StatusForbidden},
		{"other tutor", "tutor-2", "TUTOR", http.StatusForbidden},
		{"owner", "tutor-1", "TUTOR", http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/tutors/tutor-1/availability", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			if tt.actorID != "" {
				req.Header.Set(middleware.HeaderActorID, tt.actorID)
				req.Header.Set(middleware.HeaderActorRole, tt.role)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
		})
	}

	if stored == nil || stored.TutorID != "tutor-1" {
		t.Errorf("tutor ID must come from the path, got %+v", stored)
	}
}

func TestAddWindow_ServiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"overlap", apperrors.Overlap("overlaps", nil), http.StatusConflict, apperrors.CodeOverlap},
		{"validation", apperrors.Validation("bad", nil), http.StatusUnprocessableEntity, apperrors.CodeValidation},
		{"internal", apperrors.Internal("db down", nil), http.StatusInternalServerError, apperrors.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&mockAvailabilityService{
				addWindowFunc: func(context.Context, *model.AvailabilityWindow) (*model.AvailabilityWindow, error) {
					return nil, tt.err
				},
			})

			req := httptest.NewRequest(http.MethodPost, "/api/v1/tutors/tutor-1/availability", strings.NewReader(`{"recurrence":"WEEKLY"}`))
			req.Header.Set(middleware.HeaderActorID, "tutor-1")
			req.Header.Set(middleware.HeaderActorRole, "TUTOR")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, w.Code)
			}
			var resp struct {
				Code string `json:"code"`
			}
			_ = json.Unmarshal(w.Body.Bytes(), &resp)
			if resp.Code != tt.wantCode {
				t.Errorf("expected code %s, got %s", tt.wantCode, resp.Code)
			}
		})
	}
}

func TestAddWindow_RejectsUnknownFields(t *testing.T) {
	router := newTestRouter(&mockAvailabilityService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tutors/tutor-1/availability", strings.NewReader(`{"colour":"blue"}`))
	req.Header.Set(middleware.HeaderActorID, "tutor-1")
	req.Header.Set(middleware.HeaderActorRole, "TUTOR")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestListEffective_QueryParameters(t *testing.T) {
	var gotFrom, gotTo time.Time
	router := newTestRouter(&mockAvailabilityService{
		listEffectiveFunc: func(ctx context.Context, tutorID string, from, to time.Time) ([]calendar.Interval, error) {
			gotFrom, gotTo = from, to
			return []calendar.Interval{{Start: from, End: from.Add(time.Hour)}}, nil
		},
	})

	tests := []struct {
		name       string
		query      string
		wantStatus int
	}{
		{"valid", "?from=2026-03-02T00:00:00Z&to=2026-03-09T00:00:00Z", http.StatusOK},
		{"offset times", "?from=2026-03-02T01:00:00%2B01:00&to=2026-03-09T00:00:00Z", http.StatusOK},
		{"missing to", "?from=2026-03-02T00:00:00Z", http.StatusBadRequest},
		{"not rfc3339", "?from=2026-03-02&to=2026-03-09", http.StatusBadRequest},
		{"reversed", "?from=2026-03-09T00:00:00Z&to=2026-03-02T00:00:00Z", http.StatusBadRequest},
		{"too wide", "?from=2026-01-01T00:00:00Z&to=2026-12-31T00:00:00Z", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/tutors/tutor-1/availability"+tt.query, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
		})
	}

	want := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	if !gotFrom.Equal(want) || gotTo.Location() != time.UTC {
		t.Errorf("expected UTC bounds starting %v, got %v to %v", want, gotFrom, gotTo)
	}
}

func TestRemoveWindow_NotFound(t *testing.T) {
	router := newTestRouter(&mockAvailabilityService{
		removeWindowFunc: func(ctx context.Context, tutorID, id string) error {
			return apperrors.NotFoundWithID("Availability window", id)
		},
	})

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/tutors/tutor-1/availability/abc", nil)
	req.Header.Set(middleware.HeaderActorID, "tutor-1")
	req.Header.Set(middleware.HeaderActorRole, "TUTOR")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}
