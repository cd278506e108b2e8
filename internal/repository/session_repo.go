package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/EshanRavindu17/OnlineTutoringPlatform-sub004/internal/models"
)

const sessionColumns = "id, student_id, tutor_id, session_date, slots, status, start_time, end_time, meeting_urls, materials, price, created_at, updated_at"

type CreateSessionInput struct {
	StudentID   int64
	TutorID     int64
	SessionDate time.Time
	Slots       []string
	MeetingURLs []string
	Price       float64
}

type SessionListFilter struct {
	ActorID   int64
	Role      string
	Status    string
	Timeframe string
}

type SessionRepository struct {
	db DBTX
}

func NewSessionRepository(db DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

func scanSession(row pgx.Row) (*models.Session, error) {
	var session models.Session
	err := row.Scan(
		&session.ID,
		&session.StudentID,
		&session.TutorID,
		&session.SessionDate,
		&session.Slots,
		&session.Status,
		&session.StartTime,
		&session.EndTime,
		&session.MeetingURLs,
		&session.Materials,
		&session.Price,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func collectSessions(rows pgx.Rows) ([]models.Session, error) {
	defer rows.Close()

	sessions := make([]models.Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *SessionRepository) Create(ctx context.Context, input CreateSessionInput) (*models.Session, error) {
	query := fmt.Sprintf(`
		INSERT INTO sessions (student_id, tutor_id, session_date, slots, meeting_urls, price, status, materials)
		VALUES ($1, $2, $3, $4, $5, $6, 'scheduled', '[]'::jsonb)
		RETURNING %s
	`, sessionColumns)

	return scanSession(r.db.QueryRow(
		ctx,
		query,
		input.StudentID,
		input.TutorID,
		input.SessionDate,
		input.Slots,
		input.MeetingURLs,
		input.Price,
	))
}

func (r *SessionRepository) GetByID(ctx context.Context, sessionID int64) (*models.Session, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM sessions
		WHERE id = $1
	`, sessionColumns)
	return scanSession(r.db.QueryRow(ctx, query, sessionID))
}

// GetOwnedWithStatus resolves a session only when id, owning tutor and
// current status all match. A miss on any of the three comes back as
// pgx.ErrNoRows; callers deliberately cannot tell which condition failed,
// so a wrong-owner probe looks identical to a missing id.
func (r *SessionRepository) GetOwnedWithStatus(ctx context.Context, sessionID, tutorID int64, status string) (*models.Session, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM sessions
		WHERE id = $1 AND tutor_id = $2 AND status = $3
	`, sessionColumns)
	return scanSession(r.db.QueryRow(ctx, query, sessionID, tutorID, status))
}

func (r *SessionRepository) GetOwnedForUpdate(ctx context.Context, sessionID, tutorID int64) (*models.Session, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM sessions
		WHERE id = $1 AND tutor_id = $2
		FOR UPDATE
	`, sessionColumns)
	return scanSession(r.db.QueryRow(ctx, query, sessionID, tutorID))
}

func (r *SessionRepository) List(ctx context.Context, filter SessionListFilter) ([]models.Session, error) {
	actorColumn := "student_id"
	if filter.Role == models.RoleTutor {
		actorColumn = "tutor_id"
	}

	args := []any{filter.ActorID}
	whereParts := []string{fmt.Sprintf("%s = $1", actorColumn)}

	if status := strings.TrimSpace(filter.Status); status != "" {
		args = append(args, status)
		whereParts = append(whereParts, fmt.Sprintf("status = $%d", len(args)))
	}

	switch strings.TrimSpace(filter.Timeframe) {
	case "upcoming":
		whereParts = append(whereParts, "session_date >= CURRENT_DATE")
	case "past":
		whereParts = append(whereParts, "session_date < CURRENT_DATE")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM sessions
		WHERE %s
		ORDER BY session_date ASC, id ASC
	`, sessionColumns, strings.Join(whereParts, " AND "))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

// UpdateStatusIfCurrent transitions status only when the session is still in
// currentStatus, stamping start_time on entry to ongoing and end_time on
// entry to completed. Returns pgx.ErrNoRows when the guard misses.
func (r *SessionRepository) UpdateStatusIfCurrent(ctx context.Context, sessionID int64, currentStatus, nextStatus string) (*models.Session, error) {
	query := fmt.Sprintf(`
		UPDATE sessions
		SET status = $3,
		    start_time = CASE WHEN $3 = 'ongoing' THEN NOW() ELSE start_time END,
		    end_time = CASE WHEN $3 = 'completed' THEN NOW() ELSE end_time END,
		    updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING %s
	`, sessionColumns)
	return scanSession(r.db.QueryRow(ctx, query, sessionID, currentStatus, nextStatus))
}

func (r *SessionRepository) UpdateStatus(ctx context.Context, sessionID int64, status string) (*models.Session, error) {
	query := fmt.Sprintf(`
		UPDATE sessions
		SET status = $2,
		    start_time = CASE WHEN $2 = 'ongoing' THEN NOW() ELSE start_time END,
		    end_time = CASE WHEN $2 = 'completed' THEN NOW() ELSE end_time END,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING %s
	`, sessionColumns)
	return scanSession(r.db.QueryRow(ctx, query, sessionID, status))
}

// ListScheduledDue returns scheduled sessions whose date is today or earlier,
// the candidate set for the expiry sweep.
func (r *SessionRepository) ListScheduledDue(ctx context.Context, now time.Time) ([]models.Session, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM sessions
		WHERE status = 'scheduled' AND session_date <= $1::date
		ORDER BY session_date ASC, id ASC
	`, sessionColumns)

	rows, err := r.db.Query(ctx, query, now)
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

// ListScheduledOnDate returns scheduled sessions on the given calendar date;
// the reminder service narrows these to its window in memory because slot
// times live in a text array.
func (r *SessionRepository) ListScheduledOnDate(ctx context.Context, date time.Time) ([]models.Session, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM sessions
		WHERE status = 'scheduled' AND session_date = $1::date
		ORDER BY id ASC
	`, sessionColumns)

	rows, err := r.db.Query(ctx, query, date)
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

func (r *SessionRepository) ListOngoingStartedBefore(ctx context.Context, cutoff time.Time) ([]models.Session, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM sessions
		WHERE status = 'ongoing' AND start_time IS NOT NULL AND start_time <= $1
		ORDER BY id ASC
	`, sessionColumns)

	rows, err := r.db.Query(ctx, query, cutoff)
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

// CancelByIDs bulk-cancels still-scheduled sessions and reports which ids
// actually flipped, so a concurrent manual action on one of them is not
// double-counted.
func (r *SessionRepository) CancelByIDs(ctx context.Context, sessionIDs []int64) ([]int64, error) {
	if len(sessionIDs) == 0 {
		return nil, nil
	}

	query := `
		UPDATE sessions
		SET status = 'canceled', updated_at = NOW()
		WHERE id = ANY($1) AND status = 'scheduled'
		RETURNING id
	`
	rows, err := r.db.Query(ctx, query, sessionIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	updated := make([]int64, 0, len(sessionIDs))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		updated = append(updated, id)
	}
	return updated, rows.Err()
}

// CompleteByIDs bulk-completes still-ongoing sessions, stamping end_time.
func (r *SessionRepository) CompleteByIDs(ctx context.Context, sessionIDs []int64, endTime time.Time) ([]int64, error) {
	if len(sessionIDs) == 0 {
		return nil, nil
	}

	query := `
		UPDATE sessions
		SET status = 'completed', end_time = $2, updated_at = NOW()
		WHERE id = ANY($1) AND status = 'ongoing'
		RETURNING id
	`
	rows, err := r.db.Query(ctx, query, sessionIDs, endTime)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	updated := make([]int64, 0, len(sessionIDs))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		updated = append(updated, id)
	}
	return updated, rows.Err()
}
