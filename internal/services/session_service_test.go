package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/EshanRavindu17/OnlineTutoringPlatform-sub004/internal/models"
)

func rate(v float64) *float64 { return &v }

func newBookValidationService(users *stubUsers, meetings *stubMeetings) *SessionService {
	// Validation paths fail before any transaction starts, so no pool is
	// needed here; transactional paths are covered by the integration tests.
	return NewSessionService(nil, nil, nil, nil, users, meetings, &stubNotifier{})
}

func TestBookRejectsInvalidInput(t *testing.T) {
	svc := newBookValidationService(&stubUsers{}, &stubMeetings{})
	date := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name      string
		studentID int64
		input     BookSessionInput
	}{
		{"missing tutor", 1, BookSessionInput{SessionDate: date, Slots: []string{"14:00"}}},
		{"no slots", 1, BookSessionInput{TutorID: 2, SessionDate: date}},
		{"self booking", 2, BookSessionInput{TutorID: 2, SessionDate: date, Slots: []string{"14:00"}}},
		{"malformed slot", 1, BookSessionInput{TutorID: 2, SessionDate: date, Slots: []string{"garbage"}}},
	}
	for _, tc := range cases {
		if _, err := svc.Book(context.Background(), tc.studentID, tc.input); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("%s: expected ErrInvalidInput, got %v", tc.name, err)
		}
	}
}

func TestBookRejectsUnknownTutor(t *testing.T) {
	svc := newBookValidationService(&stubUsers{}, &stubMeetings{})

	_, err := svc.Book(context.Background(), 1, BookSessionInput{
		TutorID:     99,
		SessionDate: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		Slots:       []string{"14:00"},
	})
	if !errors.Is(err, ErrTutorNotFound) {
		t.Fatalf("expected ErrTutorNotFound, got %v", err)
	}
}

func TestBookRejectsTutorWithoutRate(t *testing.T) {
	users := &stubUsers{users: map[int64]*models.User{
		2: {ID: 2, Role: models.RoleTutor},
		3: {ID: 3, Role: models.RoleStudent, HourlyRate: rate(40)},
	}}
	svc := newBookValidationService(users, &stubMeetings{})
	date := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

	if _, err := svc.Book(context.Background(), 1, BookSessionInput{TutorID: 2, SessionDate: date, Slots: []string{"14:00"}}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("tutor without rate: expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.Book(context.Background(), 1, BookSessionInput{TutorID: 3, SessionDate: date, Slots: []string{"14:00"}}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("student posing as tutor: expected ErrInvalidInput, got %v", err)
	}
}

func TestBookSurfacesMeetingProvisionFailure(t *testing.T) {
	users := &stubUsers{users: map[int64]*models.User{
		2: {ID: 2, Name: "Nadia", Role: models.RoleTutor, HourlyRate: rate(40)},
	}}
	svc := newBookValidationService(users, &stubMeetings{createErr: errors.New("zoom down")})

	_, err := svc.Book(context.Background(), 1, BookSessionInput{
		TutorID:     2,
		SessionDate: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		Slots:       []string{"14:00"},
	})
	if err == nil || !strings.Contains(err.Error(), "provision meeting") {
		t.Fatalf("expected wrapped provisioning error, got %v", err)
	}
}

func TestNormalizeSessionStatusAcceptsAliases(t *testing.T) {
	cases := map[string]string{
		"scheduled": models.SessionScheduled,
		"ONGOING":   models.SessionOngoing,
		"complete":  models.SessionCompleted,
		"completed": models.SessionCompleted,
		"cancel":    models.SessionCanceled,
		"cancelled": models.SessionCanceled,
		" canceled": models.SessionCanceled,
	}
	for input, want := range cases {
		got, err := normalizeSessionStatus(input)
		if err != nil {
			t.Fatalf("normalizeSessionStatus(%q): %v", input, err)
		}
		if got != want {
			t.Fatalf("normalizeSessionStatus(%q): expected %q, got %q", input, want, got)
		}
	}

	if _, err := normalizeSessionStatus("paused"); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus for unknown status, got %v", err)
	}
}

func TestCanAccessSessionChecksOwnership(t *testing.T) {
	session := &models.Session{ID: 1, StudentID: 10, TutorID: 20}

	if !canAccessSession(models.RoleStudent, 10, session) {
		t.Fatalf("owning student should have access")
	}
	if canAccessSession(models.RoleStudent, 11, session) {
		t.Fatalf("foreign student should not have access")
	}
	if !canAccessSession(models.RoleTutor, 20, session) {
		t.Fatalf("owning tutor should have access")
	}
	if canAccessSession(models.RoleTutor, 21, session) {
		t.Fatalf("foreign tutor should not have access")
	}
	if !canAccessSession(models.RoleAdmin, 999, session) {
		t.Fatalf("admin should have access to any session")
	}
}

func TestWithRoleCopiesWithoutMutating(t *testing.T) {
	data := map[string]any{"session_id": int64(1)}

	student := withRole(data, "student")
	tutor := withRole(data, "tutor")

	if student["role"] != "student" || tutor["role"] != "tutor" {
		t.Fatalf("expected per-recipient roles, got %v and %v", student["role"], tutor["role"])
	}
	if _, ok := data["role"]; ok {
		t.Fatalf("expected source map to stay untouched")
	}
}

// savepointTx hands out a stub nested transaction so the slot-release
// scoping can be exercised without a database.
type savepointTx struct {
	pgx.Tx
	inner *savepointInnerTx
}

func (t *savepointTx) Begin(ctx context.Context) (pgx.Tx, error) { return t.inner, nil }

type savepointInnerTx struct {
	pgx.Tx
	execErr    error
	committed  bool
	rolledBack bool
}

func (t *savepointInnerTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if t.execErr != nil {
		return pgconn.CommandTag{}, t.execErr
	}
	return pgconn.NewCommandTag("UPDATE 2"), nil
}

func (t *savepointInnerTx) Commit(ctx context.Context) error {
	t.committed = true
	return nil
}

func (t *savepointInnerTx) Rollback(ctx context.Context) error {
	t.rolledBack = true
	return nil
}

func TestReleaseSlotsScopedCommitsSavepointOnSuccess(t *testing.T) {
	inner := &savepointInnerTx{}
	session := &models.Session{
		TutorID:     7,
		SessionDate: time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC),
		Slots:       []string{"14:00", "15:00"},
	}

	if err := releaseSlotsScoped(context.Background(), &savepointTx{inner: inner}, session); err != nil {
		t.Fatalf("releaseSlotsScoped: %v", err)
	}
	if !inner.committed || inner.rolledBack {
		t.Fatalf("expected committed savepoint, got committed=%v rolledBack=%v", inner.committed, inner.rolledBack)
	}
}

func TestReleaseSlotsScopedRollsBackOnlyTheSavepoint(t *testing.T) {
	inner := &savepointInnerTx{execErr: errors.New("deadlock detected")}
	session := &models.Session{
		TutorID:     7,
		SessionDate: time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC),
		Slots:       []string{"14:00"},
	}

	err := releaseSlotsScoped(context.Background(), &savepointTx{inner: inner}, session)
	if err == nil || !strings.Contains(err.Error(), "deadlock") {
		t.Fatalf("expected the release error to surface, got %v", err)
	}
	if !inner.rolledBack || inner.committed {
		t.Fatalf("expected rolled-back savepoint, got committed=%v rolledBack=%v", inner.committed, inner.rolledBack)
	}
}
