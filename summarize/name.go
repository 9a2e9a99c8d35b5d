// ABOUTME: Display name resolution for summaries and outgoing mail
// ABOUTME: Parsed field, stored name, reply signature or greeting, then the address local part
package summarize

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/harperreed/leadsync/models"
)

var (
	nameKeyPattern  = regexp.MustCompile(`(?i)^(your |full |client |first |contact )?name\??$`)
	greetingPattern = regexp.MustCompile(`\b(?:[Mm]y name is|[Tt]his is|I am|I'm)\s+([A-Z][a-zA-Z'-]+(?:\s+[A-Z][a-zA-Z'-]+)?)`)
	signOffLine     = regexp.MustCompile(`(?i)^(thanks|thank you|best|best regards|kind regards|regards|cheers|sincerely|warmly|all the best)\s*[,.!]*\s*$`)
	nameLine        = regexp.MustCompile(`^[A-Z][a-zA-Z'-]+(?:\s+[A-Z][a-zA-Z'.-]+){0,2}$`)
)

var placeholderNames = map[string]bool{
	"":          true,
	"-":         true,
	"n/a":       true,
	"na":        true,
	"none":      true,
	"unknown":   true,
	"lead":      true,
	"client":    true,
	"customer":  true,
	"friend":    true,
	"there":     true,
	"test":      true,
	"no name":   true,
	"anonymous": true,
}

// ResolveName picks the name used to address a lead. The first source that
// yields a name wins.
func ResolveName(lead *models.Lead, fields *models.FieldMap, raw string) string {
	if name := nameFromFields(fields); name != "" {
		return name
	}
	if lead != nil && !IsPlaceholderName(lead.Name, lead.Email) {
		return strings.TrimSpace(lead.Name)
	}
	if name := nameFromReply(raw); name != "" {
		return name
	}
	if lead != nil {
		return NameFromAddress(lead.Email)
	}
	return ""
}

// IsPlaceholderName reports whether name carries no real identity.
func IsPlaceholderName(name, email string) bool {
	n := strings.ToLower(strings.TrimSpace(name))
	if placeholderNames[n] {
		return true
	}
	return email != "" && n == models.NormalizeEmail(email)
}

func nameFromFields(fields *models.FieldMap) string {
	var found string
	fields.Each(func(k string, v models.FieldValue) {
		if found != "" || v.IsList {
			return
		}
		if !nameKeyPattern.MatchString(strings.TrimSpace(k)) {
			return
		}
		val := strings.TrimSpace(v.Text)
		if val != "" && len(val) <= 60 && !placeholderNames[strings.ToLower(val)] {
			found = val
		}
	})
	return found
}

// nameFromReply looks for a signature line after a sign-off, then for a
// self-introduction in the greeting.
func nameFromReply(raw string) string {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	for i, l := range lines {
		if strings.HasPrefix(strings.TrimSpace(l), ">") {
			break
		}
		if !signOffLine.MatchString(strings.TrimSpace(l)) {
			continue
		}
		for _, next := range lines[i+1:] {
			next = strings.TrimSpace(next)
			if next == "" {
				continue
			}
			if nameLine.MatchString(next) {
				return next
			}
			break
		}
	}

	if m := greetingPattern.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return ""
}

// NameFromAddress turns "jane.doe42@example.com" into "Jane Doe".
func NameFromAddress(email string) string {
	local, _, _ := strings.Cut(models.NormalizeEmail(email), "@")
	local, _, _ = strings.Cut(local, "+")

	parts := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || unicode.IsDigit(r)
	})
	for i, p := range parts {
		r := []rune(p)
		r[0] = unicode.ToUpper(r[0])
		parts[i] = string(r)
	}
	return strings.Join(parts, " ")
}
