// ABOUTME: Gmail-backed mail source for the reply and invitation detectors
// ABOUTME: Pages message searches, fetches raw RFC 822 mail, and throttles API calls
package sync

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/api/gmail/v1"

	"github.com/harperreed/leadsync/models"
)

const (
	gmailUser = "me"
	// maxGmailResults is the page size for message listing.
	maxGmailResults = 100
	// DefaultMaxMessages bounds how many messages one search fetches. Gmail
	// lists newest first, so the cap keeps the most recent mail.
	DefaultMaxMessages = 50
)

// GmailSource implements detect.MailSource on the Gmail API.
type GmailSource struct {
	service     *gmail.Service
	limiter     *rate.Limiter
	maxMessages int
	logger      *slog.Logger
}

// GmailOption configures a GmailSource.
type GmailOption func(*GmailSource)

// WithMaxMessages caps the messages fetched per search.
func WithMaxMessages(n int) GmailOption {
	return func(s *GmailSource) {
		if n > 0 {
			s.maxMessages = n
		}
	}
}

// WithGmailLogger sets the logger.
func WithGmailLogger(l *slog.Logger) GmailOption {
	return func(s *GmailSource) { s.logger = l }
}

// NewGmailSource wraps a Gmail service. A nil limiter means no throttling.
func NewGmailSource(service *gmail.Service, limiter *rate.Limiter, opts ...GmailOption) *GmailSource {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	s := &GmailSource{
		service:     service,
		limiter:     limiter,
		maxMessages: DefaultMaxMessages,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SearchMessages runs a Gmail search query and returns the parsed messages.
func (s *GmailSource) SearchMessages(ctx context.Context, query string) ([]*models.Message, error) {
	var ids []string
	pageToken := ""

	for len(ids) < s.maxMessages {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		call := s.service.Users.Messages.List(gmailUser).
			Q(query).
			MaxResults(maxGmailResults).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		response, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("failed to list messages: %w", err)
		}
		if response == nil || len(response.Messages) == 0 {
			break
		}

		for _, ref := range response.Messages {
			if len(ids) == s.maxMessages {
				break
			}
			ids = append(ids, ref.Id)
		}

		pageToken = response.NextPageToken
		if pageToken == "" {
			break
		}
	}

	return s.fetchAll(ctx, ids)
}

// GetThread returns every message in a thread.
func (s *GmailSource) GetThread(ctx context.Context, threadID string) ([]*models.Message, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	thread, err := s.service.Users.Threads.Get(gmailUser, threadID).
		Format("minimal").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get thread: %w", err)
	}

	ids := make([]string, 0, len(thread.Messages))
	for _, m := range thread.Messages {
		ids = append(ids, m.Id)
	}
	return s.fetchAll(ctx, ids)
}

// fetchAll fetches messages by id. A message that cannot be fetched or
// parsed is skipped so one bad message does not hide the rest.
func (s *GmailSource) fetchAll(ctx context.Context, ids []string) ([]*models.Message, error) {
	msgs := make([]*models.Message, 0, len(ids))
	for _, id := range ids {
		msg, err := s.fetch(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Warn("skipping message", "message_id", id, "error", err)
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func (s *GmailSource) fetch(ctx context.Context, id string) (*models.Message, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	raw, err := s.service.Users.Messages.Get(gmailUser, id).
		Format("raw").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return messageFromRaw(raw)
}

// messageFromRaw decodes a Gmail raw-format message.
func messageFromRaw(raw *gmail.Message) (*models.Message, error) {
	data, err := decodeRaw(raw.Raw)
	if err != nil {
		return nil, fmt.Errorf("decode raw message: %w", err)
	}

	msg, err := ParseRawMessage(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	msg.ID = raw.Id
	msg.ThreadID = raw.ThreadId
	if msg.SentAt.IsZero() && raw.InternalDate > 0 {
		msg.SentAt = time.UnixMilli(raw.InternalDate).UTC()
	}
	return msg, nil
}

// decodeRaw accepts padded and unpadded base64url.
func decodeRaw(s string) ([]byte, error) {
	data, err := base64.URLEncoding.DecodeString(s)
	if err == nil {
		return data, nil
	}
	return base64.RawURLEncoding.DecodeString(s)
}
