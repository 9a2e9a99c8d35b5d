// ABOUTME: Calendar-Booking detector
// ABOUTME: Finds an event in the booking window whose attendees include the lead
package detect

import (
	"context"
	"fmt"

	"github.com/harperreed/leadsync/models"
)

// CalendarDetector confirms scheduling straight from the owner's calendar.
type CalendarDetector struct {
	Source CalendarSource
	Owner  string
}

func (d *CalendarDetector) Name() string         { return string(models.MatchCalendarAPI) }
func (d *CalendarDetector) Dimension() Dimension { return Booking }

func (d *CalendarDetector) Detect(ctx context.Context, lead *models.Lead, w Window) (*Match, error) {
	events, err := d.Source.ListEvents(ctx, d.Owner, w.Start, w.End)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	for _, ev := range events {
		if ev == nil || !ev.HasAttendee(lead.Email) {
			continue
		}
		start := ev.Start
		return &Match{
			Method:    models.MatchCalendarAPI,
			EventTime: &start,
			EventID:   ev.ID,
		}, nil
	}
	return nil, nil
}
