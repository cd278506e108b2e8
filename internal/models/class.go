package models

import "time"

// ClassOccurrence statuses.
const (
	OccurrenceUpcoming  = "upcoming"
	OccurrenceCompleted = "completed"
)

// Enrollment statuses.
const (
	EnrollmentActive  = "active"
	EnrollmentInvalid = "invalid"
)

// ClassOccurrence is one scheduled meeting of a recurring group class. It is
// reminder-eligible but has no expiry/completion state machine.
type ClassOccurrence struct {
	ID          int64     `json:"id"`
	ClassID     int64     `json:"class_id"`
	TutorID     int64     `json:"tutor_id"`
	Title       string    `json:"title"`
	DateTime    time.Time `json:"date_time"`
	Status      string    `json:"status"`
	MeetingURLs []string  `json:"meeting_urls"`
	CreatedAt   time.Time `json:"created_at"`
}

func (o *ClassOccurrence) HostLink() string {
	if len(o.MeetingURLs) > 0 {
		return o.MeetingURLs[0]
	}
	return ""
}

func (o *ClassOccurrence) JoinLink() string {
	if len(o.MeetingURLs) > 1 {
		return o.MeetingURLs[1]
	}
	return ""
}

type Enrollment struct {
	ID        int64     `json:"id"`
	ClassID   int64     `json:"class_id"`
	StudentID int64     `json:"student_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
