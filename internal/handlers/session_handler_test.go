package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/EshanRavindu17/OnlineTutoringPlatform-sub004/internal/models"
	"github.com/EshanRavindu17/OnlineTutoringPlatform-sub004/internal/repository"
	"github.com/EshanRavindu17/OnlineTutoringPlatform-sub004/internal/services"
)

type stubSessionService struct {
	bookResult     *models.SessionDetail
	bookErr        error
	listResult     []models.SessionDetail
	listErr        error
	getResult      *models.SessionDetail
	getErr         error
	startResult    *models.Session
	startErr       error
	completeResult *models.Session
	completeErr    error
	cancelResult   *models.SessionDetail
	cancelErr      error
	updateResult   *models.Session
	updateErr      error

	lastActorID    int64
	lastRole       string
	lastSessionID  int64
	lastBookInput  services.BookSessionInput
	lastReason     string
	lastStatus     string
	lastListFilter repository.SessionListFilter
}

func (s *stubSessionService) Book(_ context.Context, studentID int64, input services.BookSessionInput) (*models.SessionDetail, error) {
	s.lastActorID = studentID
	s.lastBookInput = input
	return s.bookResult, s.bookErr
}

func (s *stubSessionService) List(_ context.Context, actorID int64, role string, filter repository.SessionListFilter) ([]models.SessionDetail, error) {
	s.lastActorID = actorID
	s.lastRole = role
	s.lastListFilter = filter
	return s.listResult, s.listErr
}

func (s *stubSessionService) Get(_ context.Context, actorID int64, role string, sessionID int64) (*models.SessionDetail, error) {
	s.lastActorID = actorID
	s.lastRole = role
	s.lastSessionID = sessionID
	return s.getResult, s.getErr
}

func (s *stubSessionService) Start(_ context.Context, tutorID, sessionID int64) (*models.Session, error) {
	s.lastActorID = tutorID
	s.lastSessionID = sessionID
	return s.startResult, s.startErr
}

func (s *stubSessionService) Complete(_ context.Context, tutorID, sessionID int64) (*models.Session, error) {
	s.lastActorID = tutorID
	s.lastSessionID = sessionID
	return s.completeResult, s.completeErr
}

func (s *stubSessionService) Cancel(_ context.Context, tutorID, sessionID int64, reason string) (*models.SessionDetail, error) {
	s.lastActorID = tutorID
	s.lastSessionID = sessionID
	s.lastReason = reason
	return s.cancelResult, s.cancelErr
}

func (s *stubSessionService) UpdateStatus(_ context.Context, sessionID int64, requestedStatus string) (*models.Session, error) {
	s.lastSessionID = sessionID
	s.lastStatus = requestedStatus
	return s.updateResult, s.updateErr
}

func sessionTestApp(service *stubSessionService, role, userID string) *fiber.App {
	handler := &SessionHandler{service: service}

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if role != "" {
			c.Locals("role", role)
		}
		if userID != "" {
			c.Locals("user_id", userID)
		}
		return c.Next()
	})
	app.Post("/api/v1/sessions", handler.Book)
	app.Get("/api/v1/sessions", handler.List)
	app.Get("/api/v1/sessions/:id", handler.Get)
	app.Post("/api/v1/sessions/:id/start", handler.Start)
	app.Post("/api/v1/sessions/:id/complete", handler.Complete)
	app.Post("/api/v1/sessions/:id/cancel", handler.Cancel)
	app.Put("/api/v1/sessions/:id/status", handler.UpdateStatus)
	return app
}

func TestBookReturnsCreatedSession(t *testing.T) {
	service := &stubSessionService{
		bookResult: &models.SessionDetail{
			Session: models.Session{
				ID:        91,
				StudentID: 42,
				TutorID:   7,
				Status:    models.SessionScheduled,
			},
			Payment: &models.Payment{Status: models.PaymentPending, Amount: 80},
		},
	}
	app := sessionTestApp(service, "student", "42")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", strings.NewReader(`{
		"tutor_id": 7,
		"session_date": "2030-03-15",
		"slots": ["14:00", "15:00"]
	}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if service.lastActorID != 42 {
		t.Fatalf("expected actor id 42, got %d", service.lastActorID)
	}
	if service.lastBookInput.TutorID != 7 {
		t.Fatalf("expected tutor id 7, got %d", service.lastBookInput.TutorID)
	}
	want := time.Date(2030, 3, 15, 0, 0, 0, 0, time.UTC)
	if !service.lastBookInput.SessionDate.Equal(want) {
		t.Fatalf("expected session date %v, got %v", want, service.lastBookInput.SessionDate)
	}
	if len(service.lastBookInput.Slots) != 2 {
		t.Fatalf("expected 2 slots, got %v", service.lastBookInput.Slots)
	}
}

func TestBookRejectsNonStudents(t *testing.T) {
	app := sessionTestApp(&stubSessionService{}, "tutor", "7")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", strings.NewReader(`{"tutor_id": 7, "session_date": "2030-03-15", "slots": ["14:00"]}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestBookRejectsMalformedDate(t *testing.T) {
	app := sessionTestApp(&stubSessionService{}, "student", "42")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", strings.NewReader(`{"tutor_id": 7, "session_date": "15-03-2030", "slots": ["14:00"]}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestBookMapsSlotConflictToConflictStatus(t *testing.T) {
	service := &stubSessionService{bookErr: services.ErrSlotConflict}
	app := sessionTestApp(service, "student", "42")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", strings.NewReader(`{"tutor_id": 7, "session_date": "2030-03-15", "slots": ["14:00"]}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestListPassesFilterThrough(t *testing.T) {
	service := &stubSessionService{listResult: []models.SessionDetail{}}
	app := sessionTestApp(service, "tutor", "7")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions?status=scheduled&timeframe=upcoming", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastRole != "tutor" || service.lastActorID != 7 {
		t.Fatalf("expected tutor 7, got %s %d", service.lastRole, service.lastActorID)
	}
	if service.lastListFilter.Status != "scheduled" || service.lastListFilter.Timeframe != "upcoming" {
		t.Fatalf("unexpected filter %+v", service.lastListFilter)
	}
}

func TestListRejectsUnknownTimeframe(t *testing.T) {
	app := sessionTestApp(&stubSessionService{}, "student", "42")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions?timeframe=someday", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestStartRequiresTutorRole(t *testing.T) {
	app := sessionTestApp(&stubSessionService{}, "student", "42")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/5/start", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestStartReturnsUpdatedSession(t *testing.T) {
	now := time.Now()
	service := &stubSessionService{
		startResult: &models.Session{ID: 5, TutorID: 7, Status: models.SessionOngoing, StartTime: &now},
	}
	app := sessionTestApp(service, "tutor", "7")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/5/start", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastActorID != 7 || service.lastSessionID != 5 {
		t.Fatalf("expected tutor 7 session 5, got %d %d", service.lastActorID, service.lastSessionID)
	}

	var body struct {
		Session models.Session `json:"session"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Session.Status != models.SessionOngoing {
		t.Fatalf("expected ongoing session, got %q", body.Session.Status)
	}
}

func TestCompleteMapsGuardMissToNotFound(t *testing.T) {
	service := &stubSessionService{completeErr: services.ErrNotFound}
	app := sessionTestApp(service, "tutor", "7")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/5/complete", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestCancelPassesReasonAndMapsInvalidState(t *testing.T) {
	service := &stubSessionService{
		cancelResult: &models.SessionDetail{Session: models.Session{ID: 5, Status: models.SessionCanceled}},
	}
	app := sessionTestApp(service, "tutor", "7")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/5/cancel", strings.NewReader(`{"reason": "tutor unavailable"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastReason != "tutor unavailable" {
		t.Fatalf("expected reason forwarded, got %q", service.lastReason)
	}

	service.cancelErr = services.ErrInvalidState
	service.cancelResult = nil
	req = httptest.NewRequest(http.MethodPost, "/api/v1/sessions/5/cancel", nil)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for non-scheduled cancel, got %d", resp.StatusCode)
	}
}

func TestUpdateStatusIsAdminOnly(t *testing.T) {
	service := &stubSessionService{
		updateResult: &models.Session{ID: 5, Status: models.SessionCompleted},
	}

	tutorApp := sessionTestApp(service, "tutor", "7")
	req := httptest.NewRequest(http.MethodPut, "/api/v1/sessions/5/status", strings.NewReader(`{"status": "completed"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := tutorApp.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for tutor, got %d", resp.StatusCode)
	}

	adminApp := sessionTestApp(service, "admin", "1")
	req = httptest.NewRequest(http.MethodPut, "/api/v1/sessions/5/status", strings.NewReader(`{"status": "completed"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = adminApp.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d", resp.StatusCode)
	}
	if service.lastSessionID != 5 || service.lastStatus != "completed" {
		t.Fatalf("expected status update for session 5, got %d %q", service.lastSessionID, service.lastStatus)
	}
}

func TestGetRejectsBadSessionID(t *testing.T) {
	app := sessionTestApp(&stubSessionService{}, "student", "42")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/nope", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
