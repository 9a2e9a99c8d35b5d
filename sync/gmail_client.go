// ABOUTME: Google Gmail API client for reply and invitation detection
// ABOUTME: Creates an authenticated read-only Gmail service from an OAuth token
package sync

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// NewGmailClient creates a new Google Gmail API client.
func NewGmailClient(ctx context.Context, config *oauth2.Config, token *oauth2.Token) (*gmail.Service, error) {
	if token == nil {
		return nil, fmt.Errorf("token cannot be nil")
	}

	service, err := gmail.NewService(ctx, option.WithHTTPClient(config.Client(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}
	return service, nil
}
