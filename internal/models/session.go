package models

import "time"

// Session statuses. Completed and canceled are terminal.
const (
	SessionScheduled = "scheduled"
	SessionOngoing   = "ongoing"
	SessionCompleted = "completed"
	SessionCanceled  = "canceled"
)

// Payment statuses.
const (
	PaymentPending = "pending"
	PaymentSuccess = "success"
	PaymentRefund  = "refund"
)

type Session struct {
	ID          int64      `json:"id"`
	StudentID   int64      `json:"student_id"`
	TutorID     int64      `json:"tutor_id"`
	SessionDate time.Time  `json:"session_date"`
	Slots       []string   `json:"slots"`
	Status      string     `json:"status"`
	StartTime   *time.Time `json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
	MeetingURLs []string   `json:"meeting_urls"`
	Materials   []Material `json:"materials"`
	Price       float64    `json:"price"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// HostLink returns the tutor-side meeting URL. By convention meeting_urls
// is stored as [hostLink, joinLink].
func (s *Session) HostLink() string {
	if len(s.MeetingURLs) > 0 {
		return s.MeetingURLs[0]
	}
	return ""
}

// JoinLink returns the participant-side meeting URL.
func (s *Session) JoinLink() string {
	if len(s.MeetingURLs) > 1 {
		return s.MeetingURLs[1]
	}
	return ""
}

type Payment struct {
	ID        int64     `json:"id"`
	SessionID int64     `json:"session_id"`
	StudentID int64     `json:"student_id"`
	TutorID   int64     `json:"tutor_id"`
	Amount    float64   `json:"amount"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type SessionDetail struct {
	Session
	Payment *Payment `json:"payment,omitempty"`
}
