// ABOUTME: Signal detector contracts and the priority chain runner
// ABOUTME: Detectors read external mail/calendar sources and never touch the lead store
package detect

import (
	"context"
	"time"

	"github.com/harperreed/leadsync/models"
)

// DefaultBookingWindow is how far past lead creation calendar events are considered.
const DefaultBookingWindow = 7 * 24 * time.Hour

// Dimension is the completion flag a detector can raise.
type Dimension int

const (
	// Booking detectors confirm an appointment.
	Booking Dimension = iota
	// Reply detectors find questionnaire reply content.
	Reply
)

func (d Dimension) String() string {
	if d == Booking {
		return "booking"
	}
	return "reply"
}

// Window bounds the search for signals.
type Window struct {
	Start time.Time
	End   time.Time
}

// WindowFor returns the detection window of a lead.
func WindowFor(lead *models.Lead, bookingWindow time.Duration) Window {
	if bookingWindow <= 0 {
		bookingWindow = DefaultBookingWindow
	}
	return Window{Start: lead.CreatedAt, End: lead.CreatedAt.Add(bookingWindow)}
}

// Match is a positive detection.
type Match struct {
	Method    models.MatchMethod
	Content   string
	EventTime *time.Time
	EventID   string
	ThreadID  string
	MessageID string
}

// HasContent reports whether the match carries reply text.
func (m *Match) HasContent() bool {
	return m != nil && m.Content != ""
}

// Detector is one signal strategy. A nil match with a nil error is NoMatch.
type Detector interface {
	Name() string
	Dimension() Dimension
	Detect(ctx context.Context, lead *models.Lead, w Window) (*Match, error)
}

// MailSource searches the watched mailbox.
type MailSource interface {
	SearchMessages(ctx context.Context, query string) ([]*models.Message, error)
	GetThread(ctx context.Context, threadID string) ([]*models.Message, error)
}

// CalendarSource lists events on the owner's calendar.
type CalendarSource interface {
	ListEvents(ctx context.Context, owner string, timeMin, timeMax time.Time) ([]*models.CalendarEvent, error)
}

// FirstMatch runs detectors in order and returns the first match. A detector
// error is handed to onErr and treated as no match for that detector only.
func FirstMatch(ctx context.Context, detectors []Detector, lead *models.Lead, w Window, onErr func(Detector, error)) (*Match, Detector) {
	for _, d := range detectors {
		if ctx.Err() != nil {
			return nil, nil
		}
		m, err := d.Detect(ctx, lead, w)
		if err != nil {
			if onErr != nil {
				onErr(d, err)
			}
			continue
		}
		if m != nil {
			return m, d
		}
	}
	return nil, nil
}

// newest returns the latest message accepted by keep.
func newest(msgs []*models.Message, keep func(*models.Message) bool) *models.Message {
	var best *models.Message
	for _, m := range msgs {
		if m == nil || !keep(m) {
			continue
		}
		if best == nil || m.SentAt.After(best.SentAt) {
			best = m
		}
	}
	return best
}
