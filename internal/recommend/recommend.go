// Package recommend asks a language model whether an asset is worth buying
// and reduces the answer to a fixed set of labels.
package recommend

import (
	"context"
	"strings"
	"unicode"

	"coinpulse/internal/provider"
)

// Label is the short verdict shown next to an asset.
type Label string

const (
	Buy           Label = "BUY"
	DontTouch     Label = "DONT_TOUCH"
	Error         Label = "ERROR"
	NotConfigured Label = "NOT_CONFIGURED"
)

// Result always carries a non-empty Detail.
type Result struct {
	Label  Label  `json:"label"`
	Detail string `json:"detail"`
}

// Gateway turns an asset into a recommendation. It never fails; problems
// are reported as Error or NotConfigured results.
type Gateway interface {
	Recommend(ctx context.Context, a provider.Asset) Result
}

const emptyReplyDetail = "The model returned an empty response."

var negations = map[string]struct{}{
	"DON'T": {}, "DONT": {}, "DO'NT": {}, "NOT": {}, "NEVER": {},
	"WOULDN'T": {}, "SHOULDN'T": {}, "CAN'T": {}, "CANNOT": {}, "AVOID": {},
}

// Parse normalizes a raw model reply. The RECOMMENDATION line decides the
// label when present, otherwise the whole reply does. Anything that is not
// an affirmative buy is DontTouch.
func Parse(raw string) Result {
	text := strings.TrimSpace(raw)
	var verdict, details string
	for _, line := range strings.Split(text, "\n") {
		l := strings.TrimLeft(strings.TrimSpace(line), "*#->_ ")
		upper := strings.ToUpper(l)
		switch {
		case verdict == "" && strings.HasPrefix(upper, "RECOMMENDATION:"):
			verdict = cleanValue(l[len("RECOMMENDATION:"):])
		case details == "" && strings.HasPrefix(upper, "DETAILS:"):
			details = cleanValue(l[len("DETAILS:"):])
		}
	}

	target := verdict
	if target == "" {
		target = text
	}
	label := DontTouch
	if IsBuy(target) {
		label = Buy
	}

	if details == "" {
		details = text
	}
	if details == "" {
		details = emptyReplyDetail
	}
	return Result{Label: label, Detail: details}
}

// IsBuy reports whether s contains the word BUY without a negation in the
// two words before it. "NO" only negates when it directly precedes BUY, so
// "No-brainer: BUY" stays affirmative.
func IsBuy(s string) bool {
	s = strings.ReplaceAll(s, "’", "'")
	words := strings.FieldsFunc(strings.ToUpper(s), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
	for i, w := range words {
		if w != "BUY" {
			continue
		}
		negated := i > 0 && words[i-1] == "NO"
		for j := max(0, i-2); j < i; j++ {
			if _, ok := negations[words[j]]; ok {
				negated = true
			}
		}
		if !negated {
			return true
		}
	}
	return false
}

func cleanValue(s string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), "*[]"))
}
