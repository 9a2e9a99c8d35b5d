package sync

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func rawMessage(id, threadID, raw string, internalDate int64) map[string]any {
	return map[string]any{
		"id":           id,
		"threadId":     threadID,
		"raw":          base64.URLEncoding.EncodeToString([]byte(raw)),
		"internalDate": strconv.FormatInt(internalDate, 10),
	}
}

const undatedReply = "From: jane@example.com\r\n" +
	"Subject: Re: hello\r\n" +
	"Content-Type: text/plain\r\n" +
	"\r\n" +
	"Kids: 2\r\n"

func newGmailTestSource(t *testing.T, handler http.HandlerFunc, opts ...GmailOption) *GmailSource {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	service, err := gmail.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return NewGmailSource(service, nil, opts...)
}

func TestGmailSourceSearchMessages(t *testing.T) {
	var queries []string
	source := newGmailTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/messages"):
			queries = append(queries, r.URL.Query().Get("q"))
			if r.URL.Query().Get("pageToken") == "" {
				writeJSON(t, w, map[string]any{
					"messages":      []map[string]string{{"id": "m1"}},
					"nextPageToken": "page-2",
				})
				return
			}
			writeJSON(t, w, map[string]any{"messages": []map[string]string{{"id": "m2"}}})
		case strings.HasSuffix(r.URL.Path, "/messages/m1"):
			assert.Equal(t, "raw", r.URL.Query().Get("format"))
			writeJSON(t, w, rawMessage("m1", "t1", plainReply, 0))
		case strings.HasSuffix(r.URL.Path, "/messages/m2"):
			writeJSON(t, w, rawMessage("m2", "t2", undatedReply, 1772550000000))
		default:
			http.NotFound(w, r)
		}
	})

	msgs, err := source.SearchMessages(context.Background(), "from:jane@example.com")
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	assert.Equal(t, []string{"from:jane@example.com", "from:jane@example.com"}, queries)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "t1", msgs[0].ThreadID)
	assert.Equal(t, "Service interest: Estate Planning\nKids: 2", msgs[0].Body)

	assert.Equal(t, "m2", msgs[1].ID)
	assert.True(t, msgs[1].SentAt.Equal(time.UnixMilli(1772550000000)))
}

func TestGmailSourceMaxMessages(t *testing.T) {
	source := newGmailTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/messages"):
			writeJSON(t, w, map[string]any{
				"messages":      []map[string]string{{"id": "m1"}, {"id": "m2"}, {"id": "m3"}},
				"nextPageToken": "more",
			})
		case strings.Contains(r.URL.Path, "/messages/"):
			id := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
			writeJSON(t, w, rawMessage(id, "t", plainReply, 0))
		default:
			http.NotFound(w, r)
		}
	}, WithMaxMessages(2))

	msgs, err := source.SearchMessages(context.Background(), "q")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m2", msgs[1].ID)
}

func TestGmailSourceSkipsBrokenMessage(t *testing.T) {
	source := newGmailTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/threads/t1"):
			writeJSON(t, w, map[string]any{
				"id":       "t1",
				"messages": []map[string]string{{"id": "bad"}, {"id": "good"}},
			})
		case strings.HasSuffix(r.URL.Path, "/messages/good"):
			writeJSON(t, w, rawMessage("good", "t1", plainReply, 0))
		default:
			http.Error(w, `{"error":{"code":500,"message":"boom"}}`, http.StatusInternalServerError)
		}
	})

	msgs, err := source.GetThread(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "good", msgs[0].ID)
}

func TestGmailSourceListError(t *testing.T) {
	source := newGmailTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":403,"message":"denied"}}`, http.StatusForbidden)
	})

	_, err := source.SearchMessages(context.Background(), "q")
	assert.Error(t, err)
}

func TestDecodeRaw(t *testing.T) {
	padded := base64.URLEncoding.EncodeToString([]byte("ab"))
	unpadded := base64.RawURLEncoding.EncodeToString([]byte("ab"))

	for _, in := range []string{padded, unpadded} {
		got, err := decodeRaw(in)
		require.NoError(t, err)
		assert.Equal(t, "ab", string(got))
	}
}

func TestCalendarSourceListEvents(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.True(t, strings.HasSuffix(r.URL.Path, "/calendars/owner@reedlaw.com/events"), r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("singleEvents"))
		if r.URL.Query().Get("pageToken") == "" {
			writeJSON(t, w, map[string]any{
				"items": []map[string]any{
					{
						"id":        "evt-1",
						"status":    "confirmed",
						"start":     map[string]string{"dateTime": "2026-03-05T14:00:00-05:00"},
						"attendees": []map[string]string{{"email": "owner@reedlaw.com"}, {"email": "Jane@Example.com"}},
					},
					{
						"id":        "evt-2",
						"status":    "cancelled",
						"start":     map[string]string{"dateTime": "2026-03-05T15:00:00Z"},
						"attendees": []map[string]string{{"email": "jane@example.com"}},
					},
				},
				"nextPageToken": "p2",
			})
			return
		}
		writeJSON(t, w, map[string]any{
			"items": []map[string]any{
				{
					"id":        "evt-3",
					"start":     map[string]string{"date": "2026-03-06"},
					"attendees": []map[string]string{{"email": "bob@example.com"}},
				},
			},
		})
	}))
	t.Cleanup(srv.Close)

	service, err := calendar.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	var logs bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})).With("component", "calendar")
	source := NewCalendarSource(service, nil, WithCalendarLogger(log))
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	events, err := source.ListEvents(context.Background(), "owner@reedlaw.com", start, start.AddDate(0, 0, 7))
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
	require.Len(t, events, 2)
	assert.Equal(t, "evt-1", events[0].ID)
	assert.Equal(t, []string{"owner@reedlaw.com", "jane@example.com"}, events[0].Attendees)
	assert.True(t, events[0].Start.Equal(time.Date(2026, 3, 5, 19, 0, 0, 0, time.UTC)))
	assert.Equal(t, "evt-3", events[1].ID)
	assert.True(t, events[1].Start.Equal(time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC)))

	assert.Contains(t, logs.String(), `"component":"calendar"`)
	assert.Contains(t, logs.String(), `"event_id":"evt-2"`)
	assert.Contains(t, logs.String(), `"reason":"cancelled"`)
}

func TestShouldSkipEvent(t *testing.T) {
	attendees := []*calendar.EventAttendee{{Email: "jane@example.com"}}
	tests := []struct {
		name   string
		event  *calendar.Event
		skip   bool
		reason string
	}{
		{"nil", nil, true, "nil event"},
		{"no start", &calendar.Event{Attendees: attendees}, true, "missing start time"},
		{"empty start", &calendar.Event{Start: &calendar.EventDateTime{}, Attendees: attendees}, true, "missing start time"},
		{"cancelled", &calendar.Event{Status: "cancelled", Start: &calendar.EventDateTime{Date: "2026-03-05"}, Attendees: attendees}, true, "cancelled"},
		{"no attendees", &calendar.Event{Start: &calendar.EventDateTime{Date: "2026-03-05"}}, true, "no attendees"},
		{"all-day kept", &calendar.Event{Start: &calendar.EventDateTime{Date: "2026-03-05"}, Attendees: attendees}, false, ""},
		{"timed kept", &calendar.Event{Start: &calendar.EventDateTime{DateTime: "2026-03-05T10:00:00Z"}, Attendees: attendees}, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			skip, reason := shouldSkipEvent(tt.event)
			assert.Equal(t, tt.skip, skip)
			assert.Equal(t, tt.reason, reason)
		})
	}
}
