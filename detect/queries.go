// ABOUTME: Gmail search query construction for the mail detectors
// ABOUTME: Uses epoch-second after: bounds so same-day replies are not missed
package detect

import (
	"fmt"
	"strings"
	"time"
)

// inviteTerms are OR'd together to find calendar-invitation-style mail.
var inviteTerms = []string{
	"filename:ics",
	"subject:invitation",
	`subject:"new event"`,
	"calendly.com",
	"cal.com",
	"savvycal.com",
	"acuityscheduling.com",
	"tidycal.com",
	"youcanbook.me",
	"zcal.co",
	"meetings.hubspot.com",
	"calendar.app.google",
}

// BroadSearchQuery matches anything the lead sent after since.
func BroadSearchQuery(email string, since time.Time) string {
	return fmt.Sprintf("from:%s after:%d -in:spam -in:trash", email, since.Unix())
}

// InviteQuery matches invitation-style messages received after since.
func InviteQuery(since time.Time) string {
	return fmt.Sprintf("after:%d -in:spam -in:trash {%s}", since.Unix(), strings.Join(inviteTerms, " "))
}
