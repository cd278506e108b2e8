package models

import "time"

// TimeSlot statuses.
const (
	SlotFree   = "free"
	SlotBooked = "booked"
)

// TimeSlot is one bookable tutor hour. A booked slot corresponds 1:1 to an
// entry in some session's slots list.
type TimeSlot struct {
	ID       int64     `json:"id"`
	TutorID  int64     `json:"tutor_id"`
	SlotDate time.Time `json:"slot_date"`
	StartAt  string    `json:"start_at"`
	Status   string    `json:"status"`
}
