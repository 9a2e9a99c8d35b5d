// ABOUTME: RFC 822 message parsing into detector-facing messages
// ABOUTME: Prefers text/plain, flattens HTML when needed, and keeps calendar payloads
package sync

import (
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/harperreed/leadsync/models"
)

const (
	// maxBodySize caps the text taken from one body part.
	maxBodySize = 64 * 1024
	// maxAttachmentSize caps a kept attachment. Only calendar payloads are kept.
	maxAttachmentSize = 256 * 1024
)

// ParseRawMessage decodes a raw RFC 822 message. Unknown charsets are
// tolerated; the text may be garbled but is still usable for detection.
func ParseRawMessage(r io.Reader) (*models.Message, error) {
	mr, err := mail.CreateReader(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("create mail reader: %w", err)
	}
	if mr == nil {
		return nil, fmt.Errorf("create mail reader returned nil")
	}
	defer func() { _ = mr.Close() }()

	msg := &models.Message{}
	if from, err := mr.Header.AddressList("From"); err == nil && len(from) > 0 {
		msg.From = from[0].Address
	}
	if subject, err := mr.Header.Subject(); err == nil {
		msg.Subject = subject
	}
	if date, err := mr.Header.Date(); err == nil {
		msg.SentAt = date
	}
	if id, err := mr.Header.MessageID(); err == nil {
		msg.ID = id
	}

	var plain, htmlBody string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			return nil, fmt.Errorf("next part: %w", err)
		}
		if part == nil {
			continue
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			switch {
			case contentType == "text/plain" && plain == "":
				plain = readText(part.Body)
			case contentType == "text/html" && htmlBody == "":
				htmlBody = readText(part.Body)
			case isCalendarType(contentType):
				if att, ok := readAttachment(part.Body, "", contentType); ok {
					msg.Attachments = append(msg.Attachments, att)
				}
			}
		case *mail.AttachmentHeader:
			contentType, _, _ := h.ContentType()
			filename, _ := h.Filename()
			att := models.Attachment{Filename: filename, ContentType: contentType}
			if !att.IsCalendar() {
				continue
			}
			if att, ok := readAttachment(part.Body, filename, contentType); ok {
				msg.Attachments = append(msg.Attachments, att)
			}
		}
	}

	switch {
	case plain != "":
		msg.Body = plain
	case htmlBody != "":
		msg.Body = HTMLToText(htmlBody)
	}
	return msg, nil
}

func isCalendarType(contentType string) bool {
	return contentType == "text/calendar" || contentType == "application/ics"
}

func readText(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, maxBodySize))
	if err != nil && len(body) == 0 {
		return ""
	}
	return strings.TrimSpace(strings.ReplaceAll(string(body), "\r\n", "\n"))
}

func readAttachment(r io.Reader, filename, contentType string) (models.Attachment, bool) {
	data, err := io.ReadAll(io.LimitReader(r, maxAttachmentSize+1))
	if err != nil || len(data) == 0 || len(data) > maxAttachmentSize {
		return models.Attachment{}, false
	}
	return models.Attachment{Filename: filename, ContentType: contentType, Data: data}, true
}

var skipElements = map[atom.Atom]bool{
	atom.Script: true,
	atom.Style:  true,
	atom.Head:   true,
}

// HTMLToText flattens an HTML body into lines of visible text.
func HTMLToText(raw string) string {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return strings.TrimSpace(raw)
	}
	var b strings.Builder
	writeText(doc, &b)
	return cleanLines(b.String())
}

func writeText(n *html.Node, b *strings.Builder) {
	if n.Type == html.ElementNode {
		if skipElements[n.DataAtom] {
			return
		}
		if isBlock(n.DataAtom) {
			b.WriteString("\n")
		}
	}
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(c, b)
	}
	if n.Type == html.ElementNode && (n.DataAtom == atom.Br || n.DataAtom == atom.Li || isBlock(n.DataAtom)) {
		b.WriteString("\n")
	}
}

func isBlock(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.Tr, atom.Blockquote, atom.Pre,
		atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
		atom.Ul, atom.Ol, atom.Table, atom.Hr:
		return true
	}
	return false
}

// cleanLines collapses spaces within lines and runs of blank lines.
func cleanLines(s string) string {
	var out []string
	prevEmpty := false
	for _, line := range strings.Split(s, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if prevEmpty {
				continue
			}
			prevEmpty = true
		} else {
			prevEmpty = false
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
