// ABOUTME: Thread-Continuity and Broad-Search reply detectors
// ABOUTME: Pull the newest post-creation message from the lead's thread or the whole mailbox
package detect

import (
	"context"
	"fmt"
	"strings"

	"github.com/harperreed/leadsync/models"
)

// ThreadDetector looks for a reply added to the lead's original thread.
type ThreadDetector struct {
	Mail  MailSource
	Owner string
}

func (d *ThreadDetector) Name() string         { return string(models.MatchThreadContinuity) }
func (d *ThreadDetector) Dimension() Dimension { return Reply }

func (d *ThreadDetector) Detect(ctx context.Context, lead *models.Lead, w Window) (*Match, error) {
	if strings.TrimSpace(lead.ThreadID) == "" {
		return nil, nil
	}

	msgs, err := d.Mail.GetThread(ctx, lead.ThreadID)
	if err != nil {
		return nil, fmt.Errorf("get thread %s: %w", lead.ThreadID, err)
	}

	owner := models.NormalizeEmail(d.Owner)
	msg := newest(msgs, func(m *models.Message) bool {
		if !m.SentAt.After(w.Start) {
			return false
		}
		return owner == "" || m.FromAddress() != owner
	})
	if msg == nil {
		return nil, nil
	}

	return &Match{
		Method:    models.MatchThreadContinuity,
		Content:   strings.TrimSpace(msg.Body),
		ThreadID:  msg.ThreadID,
		MessageID: msg.ID,
	}, nil
}

// BroadSearchDetector searches the whole mailbox for mail from the lead.
type BroadSearchDetector struct {
	Mail MailSource
}

func (d *BroadSearchDetector) Name() string         { return string(models.MatchBroadSearch) }
func (d *BroadSearchDetector) Dimension() Dimension { return Reply }

func (d *BroadSearchDetector) Detect(ctx context.Context, lead *models.Lead, w Window) (*Match, error) {
	key := lead.Key()
	if key == "" {
		return nil, nil
	}

	msgs, err := d.Mail.SearchMessages(ctx, BroadSearchQuery(key, w.Start))
	if err != nil {
		return nil, fmt.Errorf("search messages: %w", err)
	}

	msg := newest(msgs, func(m *models.Message) bool {
		return m.FromAddress() == key && m.SentAt.After(w.Start)
	})
	if msg == nil {
		return nil, nil
	}

	return &Match{
		Method:    models.MatchBroadSearch,
		Content:   strings.TrimSpace(msg.Body),
		ThreadID:  msg.ThreadID,
		MessageID: msg.ID,
	}, nil
}
