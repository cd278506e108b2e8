package repository

import (
	"context"
	"time"

	"github.com/EshanRavindu17/OnlineTutoringPlatform-sub004/internal/models"
)

type ClassRepository struct {
	db DBTX
}

func NewClassRepository(db DBTX) *ClassRepository {
	return &ClassRepository{db: db}
}

// ListUpcomingBetween returns upcoming class occurrences whose start falls in
// [from, to). Occurrence time is a single column, so the window applies in
// SQL directly.
func (r *ClassRepository) ListUpcomingBetween(ctx context.Context, from, to time.Time) ([]models.ClassOccurrence, error) {
	query := `
		SELECT id, class_id, tutor_id, title, date_time, status, meeting_urls, created_at
		FROM class_occurrences
		WHERE status = 'upcoming' AND date_time >= $1 AND date_time < $2
		ORDER BY date_time ASC, id ASC
	`
	rows, err := r.db.Query(ctx, query, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	occurrences := make([]models.ClassOccurrence, 0)
	for rows.Next() {
		var occ models.ClassOccurrence
		if err := rows.Scan(
			&occ.ID,
			&occ.ClassID,
			&occ.TutorID,
			&occ.Title,
			&occ.DateTime,
			&occ.Status,
			&occ.MeetingURLs,
			&occ.CreatedAt,
		); err != nil {
			return nil, err
		}
		occurrences = append(occurrences, occ)
	}
	return occurrences, rows.Err()
}

// ListEnrolledStudents resolves the currently-active enrollments of a class
// to the student accounts behind them.
func (r *ClassRepository) ListEnrolledStudents(ctx context.Context, classID int64) ([]models.User, error) {
	query := `
		SELECT u.id, u.email, u.password_hash, u.name, u.role, u.hourly_rate, u.created_at, u.updated_at
		FROM class_enrollments e
		JOIN users u ON u.id = e.student_id
		WHERE e.class_id = $1 AND e.status = 'active'
		ORDER BY u.id ASC
	`
	rows, err := r.db.Query(ctx, query, classID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	students := make([]models.User, 0)
	for rows.Next() {
		var user models.User
		if err := rows.Scan(
			&user.ID,
			&user.Email,
			&user.PasswordHash,
			&user.Name,
			&user.Role,
			&user.HourlyRate,
			&user.CreatedAt,
			&user.UpdatedAt,
		); err != nil {
			return nil, err
		}
		students = append(students, user)
	}
	return students, rows.Err()
}

// InvalidateEnrollmentsBefore marks enrollments created before the cutoff as
// invalid and returns how many changed.
func (r *ClassRepository) InvalidateEnrollmentsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		UPDATE class_enrollments
		SET status = 'invalid'
		WHERE created_at < $1 AND status <> 'invalid'
	`
	tag, err := r.db.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
