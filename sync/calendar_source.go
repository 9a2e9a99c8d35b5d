// ABOUTME: Google Calendar-backed event source for the booking detector
// ABOUTME: Lists expanded events in a time window and keeps only live, timed-or-dated events
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/api/calendar/v3"

	"github.com/harperreed/leadsync/models"
)

const maxCalendarResults = 250

// CalendarSource implements detect.CalendarSource on the Calendar API.
type CalendarSource struct {
	service *calendar.Service
	limiter *rate.Limiter
	logger  *slog.Logger
}

// CalendarOption configures a CalendarSource.
type CalendarOption func(*CalendarSource)

// WithCalendarLogger sets the logger.
func WithCalendarLogger(l *slog.Logger) CalendarOption {
	return func(s *CalendarSource) { s.logger = l }
}

// NewCalendarSource wraps a Calendar service. A nil limiter means no throttling.
func NewCalendarSource(service *calendar.Service, limiter *rate.Limiter, opts ...CalendarOption) *CalendarSource {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	s := &CalendarSource{service: service, limiter: limiter, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListEvents returns events on the owner's calendar starting between
// timeMin and timeMax. An empty owner reads the primary calendar.
func (s *CalendarSource) ListEvents(ctx context.Context, owner string, timeMin, timeMax time.Time) ([]*models.CalendarEvent, error) {
	calendarID := strings.TrimSpace(owner)
	if calendarID == "" {
		calendarID = "primary"
	}

	var events []*models.CalendarEvent
	pageToken := ""
	for {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		call := s.service.Events.List(calendarID).
			TimeMin(timeMin.Format(time.RFC3339)).
			TimeMax(timeMax.Format(time.RFC3339)).
			SingleEvents(true).
			OrderBy("startTime").
			MaxResults(maxCalendarResults).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		response, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("failed to list events: %w", err)
		}

		for _, item := range response.Items {
			if skip, reason := shouldSkipEvent(item); skip {
				if item != nil {
					s.logger.Debug("skipping calendar event", "event_id", item.Id, "reason", reason)
				}
				continue
			}
			if ev := toCalendarEvent(item); ev != nil {
				events = append(events, ev)
			}
		}

		pageToken = response.NextPageToken
		if pageToken == "" {
			break
		}
	}
	return events, nil
}

// shouldSkipEvent reports whether an event cannot confirm a booking.
// Returns (true, reason) when it should be skipped.
func shouldSkipEvent(event *calendar.Event) (bool, string) {
	if event == nil {
		return true, "nil event"
	}
	if event.Start == nil || (event.Start.DateTime == "" && event.Start.Date == "") {
		return true, "missing start time"
	}
	if event.Status == "cancelled" {
		return true, "cancelled"
	}
	if len(event.Attendees) == 0 {
		return true, "no attendees"
	}
	return false, ""
}

func toCalendarEvent(event *calendar.Event) *models.CalendarEvent {
	start, err := eventStart(event.Start)
	if err != nil {
		return nil
	}

	attendees := make([]string, 0, len(event.Attendees))
	for _, a := range event.Attendees {
		if a == nil || a.Email == "" {
			continue
		}
		attendees = append(attendees, strings.ToLower(strings.TrimSpace(a.Email)))
	}

	return &models.CalendarEvent{
		ID:        event.Id,
		Summary:   event.Summary,
		Attendees: attendees,
		Start:     start,
	}
}

// eventStart parses a timed start, or an all-day date as UTC midnight.
func eventStart(dt *calendar.EventDateTime) (time.Time, error) {
	if dt.DateTime != "" {
		return time.Parse(time.RFC3339, dt.DateTime)
	}
	return time.Parse("2006-01-02", dt.Date)
}
