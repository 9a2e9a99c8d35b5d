// ABOUTME: Per-pass memo of the mailbox-wide invitation search
// ABOUTME: Lets every lead in a pass share one search instead of refetching the same messages
package detect

import (
	"context"
	"sync"
	"time"

	"github.com/harperreed/leadsync/models"
)

type passCacheKey struct{}

type inviteCache struct {
	mu    sync.Mutex
	start time.Time
	msgs  []*models.Message
	ok    bool
}

// WithPassCache returns a context whose invitation searches are shared until
// the context is dropped. Call it once per reconciliation pass.
func WithPassCache(ctx context.Context) context.Context {
	return context.WithValue(ctx, passCacheKey{}, &inviteCache{})
}

// invitations returns invitation mail sent after start. A cached search from
// an earlier start covers any later one: results come newest first, so the
// capped page for the earlier start holds every capped result for the later.
func invitations(ctx context.Context, mail MailSource, start time.Time) ([]*models.Message, error) {
	c, _ := ctx.Value(passCacheKey{}).(*inviteCache)
	if c == nil {
		return mail.SearchMessages(ctx, InviteQuery(start))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ok && !c.start.After(start) {
		return c.msgs, nil
	}
	msgs, err := mail.SearchMessages(ctx, InviteQuery(start))
	if err != nil {
		return nil, err
	}
	c.start, c.msgs, c.ok = start, msgs, true
	return msgs, nil
}
