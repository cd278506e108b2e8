package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/EshanRavindu17/OnlineTutoringPlatform-sub004/internal/models"
	"github.com/EshanRavindu17/OnlineTutoringPlatform-sub004/internal/repository"
)

var (
	// ErrNotFound covers a missing id, a foreign owner and a status that
	// forbids the requested transition alike. The three cases are conflated
	// on purpose: distinguishing them at an authorization boundary would
	// leak which sessions exist.
	ErrNotFound      = errors.New("session not found")
	ErrForbidden     = errors.New("forbidden")
	ErrInvalidState  = errors.New("invalid state transition")
	ErrInvalidStatus = errors.New("invalid status")
	ErrInvalidInput  = errors.New("invalid input")
	ErrSlotConflict  = errors.New("slot conflict")
	ErrTutorNotFound = errors.New("tutor not found")
)

type userReader interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

type SessionService struct {
	db          *pgxpool.Pool
	sessionRepo *repository.SessionRepository
	paymentRepo *repository.PaymentRepository
	slotRepo    *repository.TimeSlotRepository
	userRepo    userReader
	meetings    MeetingProvider
	notifier    Notifier
}

func NewSessionService(
	db *pgxpool.Pool,
	sessionRepo *repository.SessionRepository,
	paymentRepo *repository.PaymentRepository,
	slotRepo *repository.TimeSlotRepository,
	userRepo userReader,
	meetings MeetingProvider,
	notifier Notifier,
) *SessionService {
	return &SessionService{
		db:          db,
		sessionRepo: sessionRepo,
		paymentRepo: paymentRepo,
		slotRepo:    slotRepo,
		userRepo:    userRepo,
		meetings:    meetings,
		notifier:    notifier,
	}
}

type BookSessionInput struct {
	TutorID     int64
	SessionDate time.Time
	Slots       []string
}

// Book creates a scheduled session: it claims the tutor's free slots,
// provisions the meeting, and records a pending payment priced from the
// tutor's hourly rate. The slot claim and the two inserts share one
// transaction.
func (s *SessionService) Book(ctx context.Context, studentID int64, input BookSessionInput) (*models.SessionDetail, error) {
	if input.TutorID <= 0 || len(input.Slots) == 0 {
		return nil, ErrInvalidInput
	}
	if studentID == input.TutorID {
		return nil, ErrInvalidInput
	}
	if _, err := sortedSlotTimes(input.Slots); err != nil {
		return nil, ErrInvalidInput
	}

	tutor, err := s.userRepo.GetByID(ctx, input.TutorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTutorNotFound
		}
		return nil, err
	}
	if tutor.Role != models.RoleTutor || tutor.HourlyRate == nil || *tutor.HourlyRate <= 0 {
		return nil, ErrInvalidInput
	}

	price := *tutor.HourlyRate * float64(SlotDurationHours(input.Slots))

	firstSlot, ok := FirstSlotStart(input.SessionDate, input.Slots)
	if !ok {
		return nil, ErrInvalidInput
	}
	meeting, err := s.meetings.CreateMeeting(
		ctx,
		fmt.Sprintf("Tutoring session with %s", tutor.Name),
		firstSlot,
		SlotDurationHours(input.Slots)*60,
	)
	if err != nil {
		return nil, fmt.Errorf("provision meeting: %w", err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txSessionRepo := repository.NewSessionRepository(tx)
	txPaymentRepo := repository.NewPaymentRepository(tx)
	txSlotRepo := repository.NewTimeSlotRepository(tx)

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", input.TutorID); err != nil {
		return nil, err
	}

	booked, err := txSlotRepo.BookFreeSlots(ctx, input.TutorID, input.SessionDate, input.Slots)
	if err != nil {
		return nil, err
	}
	if booked != int64(len(input.Slots)) {
		return nil, ErrSlotConflict
	}

	session, err := txSessionRepo.Create(ctx, repository.CreateSessionInput{
		StudentID:   studentID,
		TutorID:     input.TutorID,
		SessionDate: input.SessionDate,
		Slots:       input.Slots,
		MeetingURLs: []string{meeting.HostLink, meeting.JoinLink},
		Price:       price,
	})
	if err != nil {
		return nil, err
	}

	payment, err := txPaymentRepo.Create(ctx, repository.CreatePaymentInput{
		SessionID: session.ID,
		StudentID: studentID,
		TutorID:   input.TutorID,
		Amount:    price,
		Status:    models.PaymentPending,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.notifyBothParties(ctx, session, TemplateBookingConfirmation, map[string]any{
		"session_id": session.ID,
		"date":       session.SessionDate.Format("2006-01-02"),
		"time_range": SlotRange(session.Slots),
		"amount":     price,
	})

	return &models.SessionDetail{Session: *session, Payment: payment}, nil
}

// Start moves a scheduled session to ongoing and stamps start_time. The
// lookup is guarded by id, owner and status together; any miss is ErrNotFound.
func (s *SessionService) Start(ctx context.Context, tutorID, sessionID int64) (*models.Session, error) {
	if _, err := s.sessionRepo.GetOwnedWithStatus(ctx, sessionID, tutorID, models.SessionScheduled); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	session, err := s.sessionRepo.UpdateStatusIfCurrent(ctx, sessionID, models.SessionScheduled, models.SessionOngoing)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return session, nil
}

// Complete moves an ongoing session to completed, stamps end_time, and sends
// a best-effort completion notice to both parties. A failed send never rolls
// back the transition.
func (s *SessionService) Complete(ctx context.Context, tutorID, sessionID int64) (*models.Session, error) {
	if _, err := s.sessionRepo.GetOwnedWithStatus(ctx, sessionID, tutorID, models.SessionOngoing); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	session, err := s.sessionRepo.UpdateStatusIfCurrent(ctx, sessionID, models.SessionOngoing, models.SessionCompleted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	s.notifyBothParties(ctx, session, TemplateCompletion, map[string]any{
		"session_id": session.ID,
		"date":       session.SessionDate.Format("2006-01-02"),
		"time_range": SlotRange(session.Slots),
	})

	return session, nil
}

// UpdateStatus is the generic setter behind manual controller actions. It
// stamps start_time or end_time when the target status calls for it but does
// not enforce transition order; guarded callers use Start/Complete/Cancel.
func (s *SessionService) UpdateStatus(ctx context.Context, sessionID int64, requestedStatus string) (*models.Session, error) {
	status, err := normalizeSessionStatus(requestedStatus)
	if err != nil {
		return nil, err
	}

	session, err := s.sessionRepo.UpdateStatus(ctx, sessionID, status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return session, nil
}

// Cancel executes a tutor-initiated cancellation as one atomic unit: session
// status, payment refund flag and slot release commit together, then a
// best-effort cancellation notice goes out to both parties. Slot release is
// bookkeeping, not a financial record, so a failure there is logged and the
// cancellation proceeds.
func (s *SessionService) Cancel(ctx context.Context, tutorID, sessionID int64, reason string) (*models.SessionDetail, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txSessionRepo := repository.NewSessionRepository(tx)
	txPaymentRepo := repository.NewPaymentRepository(tx)
	session, err := txSessionRepo.GetOwnedForUpdate(ctx, sessionID, tutorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if session.Status != models.SessionScheduled {
		return nil, ErrInvalidState
	}

	session, err = txSessionRepo.UpdateStatusIfCurrent(ctx, sessionID, models.SessionScheduled, models.SessionCanceled)
	if err != nil {
		return nil, err
	}

	if err := txPaymentRepo.RefundBySessionID(ctx, sessionID); err != nil {
		return nil, err
	}

	if err := releaseSlotsScoped(ctx, tx, session); err != nil {
		log.Printf("[cancel] session %d: slot release failed: %v", sessionID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	refund := session.Price
	payment, err := s.paymentRepo.GetBySessionID(ctx, sessionID)
	if err == nil {
		refund = payment.Amount
	} else if !errors.Is(err, pgx.ErrNoRows) {
		log.Printf("[cancel] session %d: payment lookup failed: %v", sessionID, err)
	}

	s.notifyBothParties(ctx, session, TemplateCancellation, map[string]any{
		"session_id":    session.ID,
		"date":          session.SessionDate.Format("2006-01-02"),
		"time_range":    SlotRange(session.Slots),
		"reason":        reason,
		"refund_amount": refund,
	})

	detail := &models.SessionDetail{Session: *session}
	if payment != nil {
		detail.Payment = payment
	}
	return detail, nil
}

// releaseSlotsScoped frees the canceled session's slots inside a savepoint.
// A failed statement poisons the surrounding Postgres transaction, so the
// release runs in a nested tx that can be rolled back on its own; the status
// flip and refund still commit if only the slot write fails.
func releaseSlotsScoped(ctx context.Context, tx pgx.Tx, session *models.Session) error {
	inner, err := tx.Begin(ctx)
	if err != nil {
		return err
	}
	slotRepo := repository.NewTimeSlotRepository(inner)
	if _, err := slotRepo.ReleaseBookedSlots(ctx, session.TutorID, session.SessionDate, session.Slots); err != nil {
		_ = inner.Rollback(ctx)
		return err
	}
	return inner.Commit(ctx)
}

func (s *SessionService) List(ctx context.Context, actorID int64, role string, filter repository.SessionListFilter) ([]models.SessionDetail, error) {
	sessions, err := s.sessionRepo.List(ctx, repository.SessionListFilter{
		ActorID:   actorID,
		Role:      role,
		Status:    filter.Status,
		Timeframe: filter.Timeframe,
	})
	if err != nil {
		return nil, err
	}

	sessionIDs := make([]int64, 0, len(sessions))
	for _, session := range sessions {
		sessionIDs = append(sessionIDs, session.ID)
	}

	paymentsBySession, err := s.paymentRepo.ListBySessionIDs(ctx, sessionIDs)
	if err != nil {
		return nil, err
	}

	details := make([]models.SessionDetail, 0, len(sessions))
	for _, session := range sessions {
		detail := models.SessionDetail{Session: session}
		if payment, ok := paymentsBySession[session.ID]; ok {
			paymentCopy := payment
			detail.Payment = &paymentCopy
		}
		details = append(details, detail)
	}
	return details, nil
}

func (s *SessionService) Get(ctx context.Context, actorID int64, role string, sessionID int64) (*models.SessionDetail, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !canAccessSession(role, actorID, session) {
		return nil, ErrForbidden
	}

	detail := &models.SessionDetail{Session: *session}
	payment, err := s.paymentRepo.GetBySessionID(ctx, sessionID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err == nil {
		detail.Payment = payment
	}
	return detail, nil
}

// notifyBothParties sends student first, then tutor. Send failures are
// logged and swallowed; the primary operation has already committed.
func (s *SessionService) notifyBothParties(ctx context.Context, session *models.Session, template Template, data map[string]any) {
	student, err := s.userRepo.GetByID(ctx, session.StudentID)
	if err != nil {
		log.Printf("[notify] session %d: student lookup failed: %v", session.ID, err)
	} else if err := s.notifier.Send(ctx, student.Email, template, withRole(data, "student")); err != nil {
		log.Printf("[notify] session %d: student send failed: %v", session.ID, err)
	}

	tutor, err := s.userRepo.GetByID(ctx, session.TutorID)
	if err != nil {
		log.Printf("[notify] session %d: tutor lookup failed: %v", session.ID, err)
	} else if err := s.notifier.Send(ctx, tutor.Email, template, withRole(data, "tutor")); err != nil {
		log.Printf("[notify] session %d: tutor send failed: %v", session.ID, err)
	}
}

func withRole(data map[string]any, role string) map[string]any {
	out := make(map[string]any, len(data)+1)
	for k, v := range data {
		out[k] = v
	}
	out["role"] = role
	return out
}

func canAccessSession(role string, actorID int64, session *models.Session) bool {
	if role == models.RoleStudent {
		return session.StudentID == actorID
	}
	if role == models.RoleTutor {
		return session.TutorID == actorID
	}
	return role == models.RoleAdmin
}

func normalizeSessionStatus(status string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "scheduled":
		return models.SessionScheduled, nil
	case "ongoing":
		return models.SessionOngoing, nil
	case "complete", "completed":
		return models.SessionCompleted, nil
	case "cancel", "cancelled", "canceled":
		return models.SessionCanceled, nil
	default:
		return "", ErrInvalidStatus
	}
}
