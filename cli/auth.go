// ABOUTME: Google OAuth setup command
// ABOUTME: Runs the local callback flow and saves the token for the Gmail and Calendar detectors
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os/exec"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/harperreed/leadsync/config"
	"github.com/harperreed/leadsync/sync"
)

const authTimeout = 5 * time.Minute

// AuthCommand authorizes read access to the owner's mailbox and calendar.
func AuthCommand(cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("auth", flag.ExitOnError)
	addr := fs.String("addr", ":8080", "Listen address for the OAuth callback")
	noBrowser := fs.Bool("no-browser", false, "Print the URL instead of opening a browser")
	_ = fs.Parse(args)

	if !cfg.GoogleEnabled() {
		return fmt.Errorf("google client_id and client_secret must be configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), authTimeout)
	defer cancel()

	oauthConfig := sync.NewOAuthConfig(cfg.Google.ClientID, cfg.Google.ClientSecret)
	state := uuid.NewString()

	// Start local server for OAuth callback
	callbackChan := make(chan *oauth2.Token, 1)
	errChan := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/callback", callbackHandler(ctx, oauthConfig, state, callbackChan, errChan))

	server := &http.Server{Addr: *addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()
	defer func() { _ = server.Shutdown(context.Background()) }()

	authURL := oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline)

	fmt.Println("Opening browser for Google OAuth...")
	fmt.Printf("\nIf browser doesn't open, visit this URL:\n%s\n\n", authURL)
	if !*noBrowser {
		_ = openBrowser(authURL)
	}

	select {
	case token := <-callbackChan:
		path := tokenPath(cfg)
		if err := sync.SaveToken(path, token); err != nil {
			return fmt.Errorf("failed to save token: %w", err)
		}

		fmt.Printf("\n✓ Authenticated successfully\n")
		fmt.Printf("✓ Token saved to %s\n\n", path)
		fmt.Println("Ready! Run 'leadsync reconcile' to check leads.")
		return nil

	case err := <-errChan:
		return fmt.Errorf("OAuth flow failed: %w", err)

	case <-ctx.Done():
		return fmt.Errorf("OAuth flow timed out after %s", authTimeout)
	}
}

func callbackHandler(ctx context.Context, oauthConfig *oauth2.Config, state string, tokens chan<- *oauth2.Token, errs chan<- error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fail := func(err error) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			select {
			case errs <- err:
			default:
			}
		}

		if r.URL.Query().Get("state") != state {
			fail(fmt.Errorf("state mismatch in OAuth callback"))
			return
		}
		code := r.URL.Query().Get("code")
		if code == "" {
			fail(fmt.Errorf("no authorization code received"))
			return
		}

		token, err := oauthConfig.Exchange(ctx, code)
		if err != nil {
			fail(fmt.Errorf("failed to exchange code: %w", err))
			return
		}

		select {
		case tokens <- token:
		default:
		}
		_, _ = fmt.Fprintf(w, "Authorization successful! You can close this window.")
	}
}

func openBrowser(url string) error {
	var cmd string
	var args []string

	switch runtime.GOOS {
	case "darwin":
		cmd = "open"
		args = []string{url}
	case "windows":
		cmd = "cmd"
		args = []string{"/c", "start", url}
	default:
		cmd = "xdg-open"
		args = []string{url}
	}

	return exec.Command(cmd, args...).Start()
}
