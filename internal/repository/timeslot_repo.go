package repository

import (
	"context"
	"time"

	"github.com/EshanRavindu17/OnlineTutoringPlatform-sub004/internal/models"
)

type TimeSlotRepository struct {
	db DBTX
}

func NewTimeSlotRepository(db DBTX) *TimeSlotRepository {
	return &TimeSlotRepository{db: db}
}

func (r *TimeSlotRepository) ListByTutorAndDate(ctx context.Context, tutorID int64, date time.Time) ([]models.TimeSlot, error) {
	query := `
		SELECT id, tutor_id, slot_date, start_at, status
		FROM time_slots
		WHERE tutor_id = $1 AND slot_date = $2::date
		ORDER BY start_at ASC
	`
	rows, err := r.db.Query(ctx, query, tutorID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	slots := make([]models.TimeSlot, 0)
	for rows.Next() {
		var slot models.TimeSlot
		if err := rows.Scan(&slot.ID, &slot.TutorID, &slot.SlotDate, &slot.StartAt, &slot.Status); err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}
	return slots, rows.Err()
}

// BookFreeSlots flips the tutor's matching free slots to booked and returns
// how many were claimed. A caller requiring all-or-nothing compares the
// count to len(startAts) inside its transaction.
func (r *TimeSlotRepository) BookFreeSlots(ctx context.Context, tutorID int64, date time.Time, startAts []string) (int64, error) {
	if len(startAts) == 0 {
		return 0, nil
	}
	query := `
		UPDATE time_slots
		SET status = 'booked'
		WHERE tutor_id = $1 AND slot_date = $2::date AND start_at = ANY($3) AND status = 'free'
	`
	tag, err := r.db.Exec(ctx, query, tutorID, date, startAts)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ReleaseBookedSlots returns the matching booked slots to free. Used by
// manual cancellation only; the expiry sweep leaves booked slots in place.
func (r *TimeSlotRepository) ReleaseBookedSlots(ctx context.Context, tutorID int64, date time.Time, startAts []string) (int64, error) {
	if len(startAts) == 0 {
		return 0, nil
	}
	query := `
		UPDATE time_slots
		SET status = 'free'
		WHERE tutor_id = $1 AND slot_date = $2::date AND start_at = ANY($3) AND status = 'booked'
	`
	tag, err := r.db.Exec(ctx, query, tutorID, date, startAts)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
