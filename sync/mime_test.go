package sync

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const plainReply = "From: Jane Doe <Jane@Example.com>\r\n" +
	"To: intake@reedlaw.com\r\n" +
	"Subject: Re: Your consultation\r\n" +
	"Date: Tue, 03 Mar 2026 10:15:00 -0500\r\n" +
	"Message-ID: <abc@example.com>\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Service interest: Estate Planning\r\n" +
	"Kids: 2\r\n"

const htmlOnly = "From: jane@example.com\r\n" +
	"Subject: Answers\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<html><head><style>p{color:red}</style></head><body>" +
	"<p>Service interest: Probate</p><div>Kids:   none</div><script>x()</script></body></html>\r\n"

const alternativeWithHTML = "From: jane@example.com\r\n" +
	"Subject: Both\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/alternative; boundary=\"alt\"\r\n" +
	"\r\n" +
	"--alt\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Plain wins\r\n" +
	"--alt\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<p>HTML loses</p>\r\n" +
	"--alt--\r\n"

const inviteWithCalendar = "From: calendar-notification@google.com\r\n" +
	"Subject: Invitation: Consultation @ Thu Mar 5, 2026\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/mixed; boundary=\"outer\"\r\n" +
	"\r\n" +
	"--outer\r\n" +
	"Content-Type: multipart/alternative; boundary=\"inner\"\r\n" +
	"\r\n" +
	"--inner\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"You have been invited\r\n" +
	"--inner\r\n" +
	"Content-Type: text/calendar; charset=utf-8; method=REQUEST\r\n" +
	"\r\n" +
	"BEGIN:VCALENDAR\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:evt-123\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n" +
	"--inner--\r\n" +
	"--outer\r\n" +
	"Content-Type: application/ics; name=\"invite.ics\"\r\n" +
	"Content-Disposition: attachment; filename=\"invite.ics\"\r\n" +
	"\r\n" +
	"BEGIN:VCALENDAR\r\n" +
	"END:VCALENDAR\r\n" +
	"--outer\r\n" +
	"Content-Type: application/pdf\r\n" +
	"Content-Disposition: attachment; filename=\"brochure.pdf\"\r\n" +
	"\r\n" +
	"%PDF-1.4\r\n" +
	"--outer--\r\n"

const unknownCharset = "From: jane@example.com\r\n" +
	"Subject: Odd\r\n" +
	"Content-Type: text/plain; charset=x-made-up\r\n" +
	"\r\n" +
	"Still readable\r\n"

func TestParseRawMessagePlain(t *testing.T) {
	msg, err := ParseRawMessage(strings.NewReader(plainReply))
	require.NoError(t, err)

	assert.Equal(t, "Jane@Example.com", msg.From)
	assert.Equal(t, "jane@example.com", msg.FromAddress())
	assert.Equal(t, "Re: Your consultation", msg.Subject)
	assert.Equal(t, "Service interest: Estate Planning\nKids: 2", msg.Body)
	assert.True(t, msg.SentAt.Equal(time.Date(2026, 3, 3, 15, 15, 0, 0, time.UTC)))
	assert.Empty(t, msg.Attachments)
}

func TestParseRawMessageHTMLFallback(t *testing.T) {
	msg, err := ParseRawMessage(strings.NewReader(htmlOnly))
	require.NoError(t, err)

	assert.Equal(t, "Service interest: Probate\n\nKids: none", msg.Body)
}

func TestParseRawMessagePrefersPlain(t *testing.T) {
	msg, err := ParseRawMessage(strings.NewReader(alternativeWithHTML))
	require.NoError(t, err)

	assert.Equal(t, "Plain wins", msg.Body)
}

func TestParseRawMessageCalendarParts(t *testing.T) {
	msg, err := ParseRawMessage(strings.NewReader(inviteWithCalendar))
	require.NoError(t, err)

	assert.Equal(t, "You have been invited", msg.Body)
	require.Len(t, msg.Attachments, 2)

	assert.Equal(t, "text/calendar", msg.Attachments[0].ContentType)
	assert.Contains(t, string(msg.Attachments[0].Data), "UID:evt-123")

	assert.Equal(t, "invite.ics", msg.Attachments[1].Filename)
	assert.True(t, msg.Attachments[1].IsCalendar())
}

func TestParseRawMessageUnknownCharset(t *testing.T) {
	msg, err := ParseRawMessage(strings.NewReader(unknownCharset))
	require.NoError(t, err)

	assert.Equal(t, "Still readable", msg.Body)
}

func TestHTMLToText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"paragraphs", "<p>One</p><p>Two</p>", "One\n\nTwo"},
		{"line breaks", "Name: Jane<br>Kids: 2", "Name: Jane\nKids: 2"},
		{"list", "<ul><li>Wills</li><li>Trusts</li></ul>", "Wills\nTrusts"},
		{"entities", "Tom &amp; Jerry", "Tom & Jerry"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTMLToText(tt.in))
		})
	}
}
