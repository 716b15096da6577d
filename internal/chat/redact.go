package chat

import "regexp"

// redactionPlaceholder replaces a matched PII span in a message body.
const redactionPlaceholder = "[redacted]"

// patterns is the regex scrubber: email addresses, phone numbers, and
// card-like digit runs. Deliberately small and explicit rather than a
// general-purpose PII library — the webhook surface is single-tenant and
// the false-positive cost of over-redacting is low.
var patterns = []*regexp.Regexp{
	regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`),
	regexp.MustCompile(`\+?\d[\d\-\. ]{8,}\d`),
	regexp.MustCompile(`\b(?:\d[ \-]?){13,16}\b`),
}

// denyList is a small set of literal tokens scrubbed regardless of shape,
// case-insensitively.
var denyList = []string{
	"ssn:",
	"social security",
}

// Redact scrubs message for the patterns above, returning the scrubbed text
// and whether anything was removed.
func Redact(message string) (string, bool) {
	redacted := false
	out := message
	for _, p := range patterns {
		if p.MatchString(out) {
			redacted = true
			out = p.ReplaceAllString(out, redactionPlaceholder)
		}
	}
	for _, term := range denyList {
		re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(term))
		if re.MatchString(out) {
			redacted = true
			out = re.ReplaceAllString(out, redactionPlaceholder)
		}
	}
	return out, redacted
}
