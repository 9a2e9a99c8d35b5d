// ABOUTME: Deterministic reply parsing used when the model is off or fails
// ABOUTME: Tries template anchors, then a questionnaire block, then key: value lines
package parser

import (
	"regexp"
	"strings"

	"github.com/harperreed/leadsync/models"
)

var (
	keyValuePattern = regexp.MustCompile(`^\s*(?:[-*•]\s*|\d{1,2}[.)]\s*)?([A-Za-z][A-Za-z0-9 '/&()?-]{0,79}?)\s*:\s*(\S.*)$`)
	bulletPattern   = regexp.MustCompile(`^\s*(?:[-*•]|\d{1,2}[.)])\s+(.+)$`)
	blockMarker     = regexp.MustCompile(`(?i)\bquestionnaire\b`)
)

// Fallback runs the deterministic tiers in order, stopping at the first
// tier that recovers a field. cleaned is the output of CleanReply; raw is
// the original reply, used by the questionnaire block tier.
func Fallback(cleaned, raw string, questions []string) *models.FieldMap {
	if fields := matchAnchors(cleaned, questions); fields.Len() > 0 {
		return fields
	}
	if fields := questionnaireBlock(raw); fields.Len() > 0 {
		return fields
	}
	return harvestKeyValues(cleaned)
}

// matchAnchors finds each question in text and captures what follows it,
// up to the next blank line or the next question.
func matchAnchors(text string, questions []string) *models.FieldMap {
	fields := models.NewFieldMap()
	if len(questions) == 0 || strings.TrimSpace(text) == "" {
		return fields
	}

	lines := splitLines(text)
	lower := make([]string, len(lines))
	for i, l := range lines {
		lower[i] = strings.ToLower(l)
	}

	isAnchorLine := func(i int) bool {
		for _, q := range questions {
			if strings.Contains(lower[i], strings.ToLower(anchorText(q))) {
				return true
			}
		}
		return false
	}

	for _, q := range questions {
		needle := strings.ToLower(anchorText(q))
		if needle == "" {
			continue
		}
		for i := range lines {
			pos := strings.Index(lower[i], needle)
			if pos < 0 {
				continue
			}

			var answer []string
			rest := strings.TrimSpace(lines[i][pos+len(needle):])
			rest = strings.TrimLeft(rest, "?:-– ")
			if rest != "" {
				answer = append(answer, rest)
			}
			for j := i + 1; j < len(lines); j++ {
				if strings.TrimSpace(lines[j]) == "" {
					if len(answer) == 0 {
						// allow one blank line between question and answer
						continue
					}
					break
				}
				if isAnchorLine(j) {
					break
				}
				answer = append(answer, strings.TrimSpace(lines[j]))
			}

			if len(answer) > 0 {
				setAnswer(fields, q, answer)
			}
			break
		}
	}
	return fields
}

// anchorText is the part of a question searched for in replies.
func anchorText(q string) string {
	return strings.TrimSpace(strings.TrimRight(strings.TrimSpace(q), "?:"))
}

// setAnswer stores a multi-line bulleted answer as a list.
func setAnswer(fields *models.FieldMap, key string, answer []string) {
	if len(answer) > 1 {
		var items []string
		for _, a := range answer {
			m := bulletPattern.FindStringSubmatch(a)
			if m == nil {
				items = nil
				break
			}
			items = append(items, strings.TrimSpace(m[1]))
		}
		if len(items) > 0 {
			fields.SetList(key, items)
			return
		}
	}
	fields.Set(key, strings.Join(answer, " "))
}

// questionnaireBlock parses a section introduced by a line mentioning the
// questionnaire and ending where quoted material starts.
func questionnaireBlock(raw string) *models.FieldMap {
	fields := models.NewFieldMap()
	lines := splitLines(raw)
	end := quoteStart(lines)

	start := -1
	for i := 0; i < end; i++ {
		l := strings.TrimSpace(lines[i])
		if strings.HasPrefix(l, ">") {
			continue
		}
		if blockMarker.MatchString(l) {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return fields
	}

	var block []string
	for _, l := range lines[start:end] {
		if strings.HasPrefix(strings.TrimSpace(l), ">") {
			continue
		}
		block = append(block, l)
	}

	var question string
	var answer []string
	flush := func() {
		if question != "" && len(answer) > 0 {
			setAnswer(fields, question, answer)
		}
		question, answer = "", nil
	}

	for _, l := range block {
		line := strings.TrimSpace(l)
		switch {
		case line == "":
			if len(answer) > 0 {
				flush()
			}
		case strings.HasSuffix(line, "?"):
			flush()
			question = strings.TrimSpace(stripBullet(line))
		case question != "":
			answer = append(answer, line)
		default:
			if m := keyValuePattern.FindStringSubmatch(line); m != nil && !isURLKey(m[1], m[2]) {
				fields.Set(strings.TrimSpace(m[1]), strings.TrimSpace(m[2]))
			}
		}
	}
	flush()
	return fields
}

// harvestKeyValues collects every "key: value" line.
func harvestKeyValues(text string) *models.FieldMap {
	fields := models.NewFieldMap()
	for _, l := range splitLines(text) {
		m := keyValuePattern.FindStringSubmatch(l)
		if m == nil || isURLKey(m[1], m[2]) {
			continue
		}
		fields.Set(strings.TrimSpace(m[1]), strings.TrimSpace(m[2]))
	}
	return fields
}

func isURLKey(key, value string) bool {
	k := strings.ToLower(strings.TrimSpace(key))
	return k == "http" || k == "https" || k == "mailto" || strings.HasPrefix(value, "//")
}

func stripBullet(line string) string {
	if m := bulletPattern.FindStringSubmatch(line); m != nil {
		return m[1]
	}
	return line
}

// Reconstruct renders fields as "key: value" lines.
func Reconstruct(fields *models.FieldMap) string {
	var b strings.Builder
	fields.Each(func(k string, v models.FieldValue) {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(v.String())
	})
	return b.String()
}
