package backend

import (
	"regexp"
	"strings"
)

var (
	wordPattern   = regexp.MustCompile(`[a-z0-9']+`)
	orderPattern  = regexp.MustCompile(`(?i)\b(?:ord(?:er)?[-# ]?)?(\d{5,})\b|#(\d{3,})`)
	amountPattern = regexp.MustCompile(`[$€£]\s?\d+(?:[.,]\d{2})?`)
	datePattern   = regexp.MustCompile(`(?i)\b(\d{4}-\d{2}-\d{2}|today|yesterday|last week|last month)\b`)
	emailPattern  = regexp.MustCompile(`[\w.+-]+@[\w-]+\.[\w.]+`)
)

var urgencyWords = []string{"urgent", "emergency", "asap", "critical", "immediately"}

var productWords = []string{"order", "package", "subscription", "account", "card", "invoice", "refund", "laptop", "phone"}

var intentWords = []struct {
	intent string
	words  []string
}{
	{"billing", []string{"charge", "charged", "refund", "payment", "invoice", "billing", "paid"}},
	{"order_status", []string{"order", "track", "tracking", "delivery", "shipping", "arrived", "package"}},
	{"account_access", []string{"login", "password", "locked", "account", "access", "sign"}},
}

func words(s string) []string {
	return wordPattern.FindAllString(strings.ToLower(s), -1)
}

func containsAny(haystack []string, needles []string) bool {
	for _, w := range haystack {
		for _, n := range needles {
			if w == n {
				return true
			}
		}
	}
	return false
}

func classifyIntent(ws []string) string {
	for _, iw := range intentWords {
		if containsAny(ws, iw.words) {
			return iw.intent
		}
	}
	return "general"
}

// sharesKeyword reports whether a and b share a word longer than three letters.
func sharesKeyword(a, b string) bool {
	seen := make(map[string]bool)
	for _, w := range words(a) {
		if len(w) > 3 {
			seen[w] = true
		}
	}
	for _, w := range words(b) {
		if seen[w] {
			return true
		}
	}
	return false
}

func unique(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
