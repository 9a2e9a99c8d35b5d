// ABOUTME: Reply cleanup: quoted history and signature stripping
// ABOUTME: Leaves only the text the lead actually wrote in this message
package parser

import (
	"regexp"
	"strings"
)

var (
	onWrotePattern   = regexp.MustCompile(`(?i)^on\s.+wrote:\s*$`)
	separatorPattern = regexp.MustCompile(`(?i)^-{2,}\s*(original message|forwarded message)\s*-{2,}\s*$`)
	outlookRule      = regexp.MustCompile(`^_{10,}\s*$`)
	headerFromLine   = regexp.MustCompile(`(?i)^from:\s+\S`)
	headerNextLine   = regexp.MustCompile(`(?i)^(sent|date|to|subject):\s`)
	mobileSignature  = regexp.MustCompile(`(?i)^(sent from my|get outlook for|sent via)\b`)
	signOffPattern   = regexp.MustCompile(`(?i)^(thanks|thank you|thanks so much|many thanks|best|best regards|kind regards|warm regards|regards|cheers|sincerely|warmly|talk soon|all the best)\s*[,.!]*\s*$`)
)

// signOffTail is how many trailing non-empty lines are searched for a sign-off.
const signOffTail = 6

// CleanReply strips quoted replies, forwarded headers, and signature blocks.
func CleanReply(raw string) string {
	lines := splitLines(raw)
	lines = cutQuoted(lines)
	lines = cutSignature(lines)
	return joinTrimmed(lines)
}

func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.Split(s, "\n")
}

// quoteStart returns the index where quoted history begins, or len(lines).
func quoteStart(lines []string) int {
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		switch {
		case onWrotePattern.MatchString(line):
			return i
		case strings.HasPrefix(strings.ToLower(line), "on ") && i+1 < len(lines) &&
			strings.HasSuffix(strings.TrimSpace(lines[i+1]), "wrote:"):
			return i
		case separatorPattern.MatchString(line), outlookRule.MatchString(line):
			return i
		case headerFromLine.MatchString(line) && i+1 < len(lines) &&
			headerNextLine.MatchString(strings.TrimSpace(lines[i+1])):
			return i
		}
	}
	return len(lines)
}

func cutQuoted(lines []string) []string {
	lines = lines[:quoteStart(lines)]
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if strings.HasPrefix(strings.TrimSpace(l), ">") {
			continue
		}
		out = append(out, l)
	}
	return out
}

func cutSignature(lines []string) []string {
	for i, l := range lines {
		t := strings.TrimRight(l, " \t")
		if t == "--" || t == "-- " || mobileSignature.MatchString(strings.TrimSpace(l)) {
			lines = lines[:i]
			break
		}
	}

	seen := 0
	for i := len(lines) - 1; i >= 0 && seen < signOffTail; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		seen++
		if signOffPattern.MatchString(line) {
			return lines[:i]
		}
	}
	return lines
}

// joinTrimmed joins lines, dropping leading/trailing blanks and runs of
// more than one blank line.
func joinTrimmed(lines []string) string {
	var out []string
	blank := false
	for _, l := range lines {
		l = strings.TrimRight(l, " \t")
		if strings.TrimSpace(l) == "" {
			if len(out) > 0 {
				blank = true
			}
			continue
		}
		if blank {
			out = append(out, "")
			blank = false
		}
		out = append(out, l)
	}
	return strings.Join(out, "\n")
}
