// ABOUTME: Attachment/Link detector for invitation-style mail
// ABOUTME: Checks ICS attachments, invitation subjects, and scheduling links in that order
package detect

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/leadsync/models"
)

var invitePrefixes = []string{"invitation:", "updated invitation:", "new event:"}

// AttachmentDetector finds bookings confirmed through invitation mail.
type AttachmentDetector struct {
	Mail  MailSource
	Owner string
	// IgnoreLinks holds tokens of the business's own booking page, which
	// appears in outgoing mail and proves nothing.
	IgnoreLinks []string
	// Location is used for floating ICS times and free-text dates.
	Location *time.Location
}

func (d *AttachmentDetector) Name() string         { return "attachment_link" }
func (d *AttachmentDetector) Dimension() Dimension { return Booking }

func (d *AttachmentDetector) Detect(ctx context.Context, lead *models.Lead, w Window) (*Match, error) {
	key := lead.Key()
	if key == "" {
		return nil, nil
	}

	msgs, err := invitations(ctx, d.Mail, w.Start)
	if err != nil {
		return nil, fmt.Errorf("search invitations: %w", err)
	}

	owner := models.NormalizeEmail(d.Owner)
	for _, msg := range msgs {
		if msg == nil || !msg.SentAt.After(w.Start) {
			continue
		}
		if m := d.fromICS(msg, key); m != nil {
			return m, nil
		}
		if m := d.fromSubject(msg, key); m != nil {
			return m, nil
		}
		if owner != "" && msg.FromAddress() == owner {
			continue
		}
		if m := d.fromLink(msg, key); m != nil {
			return m, nil
		}
	}
	return nil, nil
}

func (d *AttachmentDetector) fromICS(msg *models.Message, key string) *Match {
	for i := range msg.Attachments {
		att := &msg.Attachments[i]
		if !att.IsCalendar() {
			continue
		}
		for _, ev := range ParseICS(att.Data, d.Location) {
			if !ev.Involves(key) {
				continue
			}
			id := ev.UID
			if id == "" {
				id = "msg:" + msg.ID
			}
			return &Match{
				Method:    models.MatchICSAttachment,
				EventTime: ev.Start,
				EventID:   id,
				ThreadID:  msg.ThreadID,
				MessageID: msg.ID,
			}
		}
	}
	return nil
}

func (d *AttachmentDetector) fromSubject(msg *models.Message, key string) *Match {
	subject := strings.ToLower(strings.TrimSpace(msg.Subject))
	if !hasInvitePrefix(subject) || !models.ContainsAddress(subject, key) {
		return nil
	}
	m := &Match{
		Method:    models.MatchInviteSubject,
		EventID:   "msg:" + msg.ID,
		ThreadID:  msg.ThreadID,
		MessageID: msg.ID,
	}
	if t, ok := ExtractDateTime(msg.Subject, d.Location); ok {
		m.EventTime = &t
	}
	return m
}

func (d *AttachmentDetector) fromLink(msg *models.Message, key string) *Match {
	if !msg.Mentions(key) {
		return nil
	}
	for _, tok := range SchedulingLinks(msg.Subject + "\n" + msg.Body) {
		if d.ignored(tok) {
			continue
		}
		m := &Match{
			Method:    models.MatchSchedulingLink,
			EventID:   "link:" + tok,
			ThreadID:  msg.ThreadID,
			MessageID: msg.ID,
		}
		if t, ok := ExtractDateTime(msg.Subject+"\n"+msg.Body, d.Location); ok {
			m.EventTime = &t
		}
		return m
	}
	return nil
}

func (d *AttachmentDetector) ignored(tok string) bool {
	for _, ig := range d.IgnoreLinks {
		if ig == "" {
			continue
		}
		if tok == ig || strings.HasPrefix(tok, ig+"?") || strings.HasPrefix(tok, ig+"/") {
			return true
		}
	}
	return false
}

func hasInvitePrefix(subject string) bool {
	for _, p := range invitePrefixes {
		if strings.HasPrefix(subject, p) {
			return true
		}
	}
	return false
}
