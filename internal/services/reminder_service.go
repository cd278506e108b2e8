package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/EshanRavindu17/OnlineTutoringPlatform-sub004/internal/models"
)

// Width of the reminder window. The reminder jobs run on the same cadence so
// consecutive windows tile without gaps or overlap.
const reminderWindowBuffer = 10 * time.Minute

// Pause between consecutive sends to stay under the mail provider's rate
// limit.
const defaultSendDelay = 500 * time.Millisecond

type reminderSessionStore interface {
	ListScheduledOnDate(ctx context.Context, date time.Time) ([]models.Session, error)
}

type classStore interface {
	ListUpcomingBetween(ctx context.Context, from, to time.Time) ([]models.ClassOccurrence, error)
	ListEnrolledStudents(ctx context.Context, classID int64) ([]models.User, error)
}

type ReminderReport struct {
	HoursAhead         int           `json:"hours_ahead"`
	WindowStart        time.Time     `json:"window_start"`
	WindowEnd          time.Time     `json:"window_end"`
	SessionsMatched    int           `json:"sessions_matched"`
	OccurrencesMatched int           `json:"occurrences_matched"`
	RemindersSent      int           `json:"reminders_sent"`
	Failures           []ItemFailure `json:"failures,omitempty"`
}

// ReminderService runs the fixed-lookahead reminder passes. It is
// read-mostly: it never mutates session or occurrence state.
type ReminderService struct {
	sessions  reminderSessionStore
	classes   classStore
	users     userReader
	meetings  MeetingProvider
	notifier  Notifier
	loc       *time.Location
	now       func() time.Time
	sendDelay time.Duration
}

func NewReminderService(
	sessions reminderSessionStore,
	classes classStore,
	users userReader,
	meetings MeetingProvider,
	notifier Notifier,
	loc *time.Location,
) *ReminderService {
	return &ReminderService{
		sessions:  sessions,
		classes:   classes,
		users:     users,
		meetings:  meetings,
		notifier:  notifier,
		loc:       loc,
		now:       time.Now,
		sendDelay: defaultSendDelay,
	}
}

// Run executes one reminder pass for the given lookahead (24 or 1 in
// production; any positive value works for operational testing). Sessions
// are matched by their first slot, occurrences by their single start column.
// Per-recipient failures are isolated: they are recorded on the report and
// the pass continues.
func (r *ReminderService) Run(ctx context.Context, hoursAhead int) (*ReminderReport, error) {
	if hoursAhead <= 0 {
		return nil, ErrInvalidInput
	}

	windowStart := storageClock(r.now(), r.loc).Add(time.Duration(hoursAhead) * time.Hour)
	windowEnd := windowStart.Add(reminderWindowBuffer)

	report := &ReminderReport{
		HoursAhead:  hoursAhead,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
	}

	sessions, err := r.sessions.ListScheduledOnDate(ctx, windowStart)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	for _, session := range sessions {
		start, ok := FirstSlotStart(session.SessionDate, session.Slots)
		if !ok {
			continue
		}
		if start.Before(windowStart) || !start.Before(windowEnd) {
			continue
		}
		report.SessionsMatched++
		r.remindSession(ctx, &session, hoursAhead, report)
	}

	occurrences, err := r.classes.ListUpcomingBetween(ctx, windowStart, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("list occurrences: %w", err)
	}
	report.OccurrencesMatched = len(occurrences)
	for _, occ := range occurrences {
		r.remindOccurrence(ctx, &occ, hoursAhead, report)
	}

	log.Printf("[reminder-%dh] window %s - %s: %d session(s), %d occurrence(s), %d reminder(s) sent",
		hoursAhead,
		windowStart.Format("15:04"),
		windowEnd.Format("15:04"),
		report.SessionsMatched,
		report.OccurrencesMatched,
		report.RemindersSent,
	)
	return report, nil
}

// remindSession sends the student their join link, then the tutor a freshly
// refreshed host link.
func (r *ReminderService) remindSession(ctx context.Context, session *models.Session, hoursAhead int, report *ReminderReport) {
	hostLink := r.refreshHostLink(ctx, session.HostLink())

	data := map[string]any{
		"session_id":  session.ID,
		"hours_ahead": hoursAhead,
		"date":        session.SessionDate.Format("2006-01-02"),
		"time_range":  SlotRange(session.Slots),
	}

	student, err := r.users.GetByID(ctx, session.StudentID)
	if err != nil {
		report.Failures = append(report.Failures, ItemFailure{SessionID: session.ID, Error: fmt.Sprintf("student lookup: %v", err)})
	} else {
		studentData := withRole(data, "student")
		studentData["meeting_url"] = session.JoinLink()
		if err := r.notifier.Send(ctx, student.Email, TemplateReminder, studentData); err != nil {
			report.Failures = append(report.Failures, ItemFailure{SessionID: session.ID, Error: fmt.Sprintf("student send: %v", err)})
		} else {
			report.RemindersSent++
		}
	}

	r.pause()

	tutor, err := r.users.GetByID(ctx, session.TutorID)
	if err != nil {
		report.Failures = append(report.Failures, ItemFailure{SessionID: session.ID, Error: fmt.Sprintf("tutor lookup: %v", err)})
		return
	}
	tutorData := withRole(data, "tutor")
	tutorData["meeting_url"] = hostLink
	if err := r.notifier.Send(ctx, tutor.Email, TemplateReminder, tutorData); err != nil {
		report.Failures = append(report.Failures, ItemFailure{SessionID: session.ID, Error: fmt.Sprintf("tutor send: %v", err)})
		return
	}
	report.RemindersSent++
}

// remindOccurrence refreshes the host link once, reminds every enrolled
// student with the join link, then sends the tutor one aggregate reminder.
func (r *ReminderService) remindOccurrence(ctx context.Context, occ *models.ClassOccurrence, hoursAhead int, report *ReminderReport) {
	hostLink := r.refreshHostLink(ctx, occ.HostLink())

	data := map[string]any{
		"class_id":    occ.ClassID,
		"title":       occ.Title,
		"hours_ahead": hoursAhead,
		"starts_at":   occ.DateTime.Format("2006-01-02 15:04"),
	}

	students, err := r.classes.ListEnrolledStudents(ctx, occ.ClassID)
	if err != nil {
		report.Failures = append(report.Failures, ItemFailure{SessionID: occ.ID, Error: fmt.Sprintf("enrollment lookup: %v", err)})
		return
	}

	for _, student := range students {
		studentData := withRole(data, "student")
		studentData["meeting_url"] = occ.JoinLink()
		if err := r.notifier.Send(ctx, student.Email, TemplateReminder, studentData); err != nil {
			report.Failures = append(report.Failures, ItemFailure{SessionID: occ.ID, Error: fmt.Sprintf("student %d send: %v", student.ID, err)})
		} else {
			report.RemindersSent++
		}
		r.pause()
	}

	tutor, err := r.users.GetByID(ctx, occ.TutorID)
	if err != nil {
		report.Failures = append(report.Failures, ItemFailure{SessionID: occ.ID, Error: fmt.Sprintf("tutor lookup: %v", err)})
		return
	}
	tutorData := withRole(data, "tutor")
	tutorData["meeting_url"] = hostLink
	tutorData["student_count"] = len(students)
	if err := r.notifier.Send(ctx, tutor.Email, TemplateReminder, tutorData); err != nil {
		report.Failures = append(report.Failures, ItemFailure{SessionID: occ.ID, Error: fmt.Sprintf("tutor send: %v", err)})
		return
	}
	report.RemindersSent++
}

// refreshHostLink exchanges a stored host link for a live one. On failure it
// falls back to the stored link: a slightly stale link beats none at all.
func (r *ReminderService) refreshHostLink(ctx context.Context, oldLink string) string {
	if oldLink == "" {
		return ""
	}
	fresh, err := r.meetings.RefreshHostLink(ctx, oldLink)
	if err != nil {
		log.Printf("[reminder] host link refresh failed, using stored link: %v", err)
		return oldLink
	}
	return fresh
}

func (r *ReminderService) pause() {
	if r.sendDelay > 0 {
		time.Sleep(r.sendDelay)
	}
}
