package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/EshanRavindu17/OnlineTutoringPlatform-sub004/internal/models"
)

// A session may run this long past its recorded start before the completion
// sweep closes it.
const sessionMaxRuntime = time.Hour

type sweepSessionStore interface {
	ListScheduledDue(ctx context.Context, now time.Time) ([]models.Session, error)
	ListOngoingStartedBefore(ctx context.Context, cutoff time.Time) ([]models.Session, error)
	CancelByIDs(ctx context.Context, sessionIDs []int64) ([]int64, error)
	CompleteByIDs(ctx context.Context, sessionIDs []int64, endTime time.Time) ([]int64, error)
}

type sweepPaymentStore interface {
	RefundBySessionIDs(ctx context.Context, sessionIDs []int64) error
}

type enrollmentStore interface {
	InvalidateEnrollmentsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ItemFailure records one session whose notification step failed inside a
// sweep. The state transition itself has already committed.
type ItemFailure struct {
	SessionID int64  `json:"session_id"`
	Error     string `json:"error"`
}

type SweepReport struct {
	Count      int           `json:"count"`
	SessionIDs []int64       `json:"session_ids"`
	Failures   []ItemFailure `json:"failures,omitempty"`
}

type EnrollmentSweepReport struct {
	InvalidatedCount int64 `json:"invalidated_count"`
}

type SweepService struct {
	sessions sweepSessionStore
	payments sweepPaymentStore
	classes  enrollmentStore
	users    userReader
	notifier Notifier
	loc      *time.Location
	now      func() time.Time
}

func NewSweepService(
	sessions sweepSessionStore,
	payments sweepPaymentStore,
	classes enrollmentStore,
	users userReader,
	notifier Notifier,
	loc *time.Location,
) *SweepService {
	return &SweepService{
		sessions: sessions,
		payments: payments,
		classes:  classes,
		users:    users,
		notifier: notifier,
		loc:      loc,
		now:      time.Now,
	}
}

// ExpireOverdueSessions cancels scheduled sessions whose grace period has
// elapsed and flags their payments for refund, then sends a best-effort
// auto-cancellation notice per session. Sessions with unparseable slot data
// are left alone so a bad row stays visible as upcoming instead of silently
// disappearing.
//
// Unlike manual cancellation this sweep never releases time slots: an
// expired session's booked hours stay booked. Whether that is a deliberate
// no-show record or an oversight is an open product question, so the
// behavior is preserved as found.
func (s *SweepService) ExpireOverdueSessions(ctx context.Context) (*SweepReport, error) {
	now := storageClock(s.now(), s.loc)

	candidates, err := s.sessions.ListScheduledDue(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("list due sessions: %w", err)
	}

	expired := make([]models.Session, 0, len(candidates))
	ids := make([]int64, 0, len(candidates))
	for _, session := range candidates {
		deadline, ok := GracePeriodEnd(session.SessionDate, session.Slots)
		if !ok {
			log.Printf("[expiry-sweep] session %d: unparseable slots, skipping", session.ID)
			continue
		}
		if now.Before(deadline) {
			continue
		}
		expired = append(expired, session)
		ids = append(ids, session.ID)
	}

	updated, err := s.sessions.CancelByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("cancel expired sessions: %w", err)
	}
	if err := s.payments.RefundBySessionIDs(ctx, updated); err != nil {
		return nil, fmt.Errorf("refund expired sessions: %w", err)
	}

	updatedSet := make(map[int64]bool, len(updated))
	for _, id := range updated {
		updatedSet[id] = true
	}

	report := &SweepReport{Count: len(updated), SessionIDs: updated}
	for _, session := range expired {
		if !updatedSet[session.ID] {
			continue
		}
		if err := s.notifySweepOutcome(ctx, &session, TemplateAutoCancellation); err != nil {
			log.Printf("[expiry-sweep] session %d: notification failed: %v", session.ID, err)
			report.Failures = append(report.Failures, ItemFailure{SessionID: session.ID, Error: err.Error()})
		}
	}

	if report.Count > 0 {
		log.Printf("[expiry-sweep] expired %d session(s): %v", report.Count, report.SessionIDs)
	}
	return report, nil
}

// CompleteOverrunSessions closes ongoing sessions running past the runtime
// ceiling, stamping end_time, then notifies per session.
func (s *SweepService) CompleteOverrunSessions(ctx context.Context) (*SweepReport, error) {
	now := s.now().UTC()

	overrun, err := s.sessions.ListOngoingStartedBefore(ctx, now.Add(-sessionMaxRuntime))
	if err != nil {
		return nil, fmt.Errorf("list overrun sessions: %w", err)
	}

	ids := make([]int64, 0, len(overrun))
	for _, session := range overrun {
		ids = append(ids, session.ID)
	}

	updated, err := s.sessions.CompleteByIDs(ctx, ids, now)
	if err != nil {
		return nil, fmt.Errorf("complete overrun sessions: %w", err)
	}

	updatedSet := make(map[int64]bool, len(updated))
	for _, id := range updated {
		updatedSet[id] = true
	}

	report := &SweepReport{Count: len(updated), SessionIDs: updated}
	for _, session := range overrun {
		if !updatedSet[session.ID] {
			continue
		}
		if err := s.notifySweepOutcome(ctx, &session, TemplateCompletion); err != nil {
			log.Printf("[completion-sweep] session %d: notification failed: %v", session.ID, err)
			report.Failures = append(report.Failures, ItemFailure{SessionID: session.ID, Error: err.Error()})
		}
	}

	if report.Count > 0 {
		log.Printf("[completion-sweep] completed %d session(s): %v", report.Count, report.SessionIDs)
	}
	return report, nil
}

// InvalidateStaleEnrollments expires recurring-class enrollments older than
// one month. No notification side effect.
func (s *SweepService) InvalidateStaleEnrollments(ctx context.Context) (*EnrollmentSweepReport, error) {
	cutoff := s.now().UTC().AddDate(0, -1, 0)
	count, err := s.classes.InvalidateEnrollmentsBefore(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("invalidate enrollments: %w", err)
	}
	if count > 0 {
		log.Printf("[enrollment-sweep] invalidated %d enrollment(s)", count)
	}
	return &EnrollmentSweepReport{InvalidatedCount: count}, nil
}

// notifySweepOutcome notifies student then tutor for one swept session. The
// first failed send aborts this session's notifications only; the sweep
// loop carries on with the next session.
func (s *SweepService) notifySweepOutcome(ctx context.Context, session *models.Session, template Template) error {
	data := map[string]any{
		"session_id": session.ID,
		"date":       session.SessionDate.Format("2006-01-02"),
		"time_range": SlotRange(session.Slots),
	}
	if template == TemplateAutoCancellation {
		data["refund_amount"] = session.Price
	}

	student, err := s.users.GetByID(ctx, session.StudentID)
	if err != nil {
		return fmt.Errorf("student lookup: %w", err)
	}
	if err := s.notifier.Send(ctx, student.Email, template, withRole(data, "student")); err != nil {
		return fmt.Errorf("student send: %w", err)
	}

	tutor, err := s.users.GetByID(ctx, session.TutorID)
	if err != nil {
		return fmt.Errorf("tutor lookup: %w", err)
	}
	if err := s.notifier.Send(ctx, tutor.Email, template, withRole(data, "tutor")); err != nil {
		return fmt.Errorf("tutor send: %w", err)
	}
	return nil
}
