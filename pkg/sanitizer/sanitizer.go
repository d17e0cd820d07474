package sanitizer

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/nyaruka/phonenumbers"
)

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

var (
	reIdentifierJunk = regexp.MustCompile(`[^a-z0-9_\-]+`)
	reTrimDashes     = regexp.MustCompile(`-+`)

	supportedRegions = []string{
		"IL",
		"US",
	}
)

func trimAndLower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

// SanitizeIdentifier turns a resource or service id into lowercase letters,
// digits, '_' and '-'. "Dr Smith" becomes "dr-smith".
func SanitizeIdentifier(input string) string {
	p := Pipeline{
		trimAndLower,
		func(s string) string { return reIdentifierJunk.ReplaceAllString(s, "-") },
		func(s string) string { return reTrimDashes.ReplaceAllString(s, "-") },
		func(s string) string { return strings.Trim(s, "-") },
	}
	return p.Apply(input)
}

func SanitizeNotes(input string) string {
	p := Pipeline{
		stripControl,
		strings.TrimSpace,
	}
	return p.Apply(input)
}

// SanitizePhone formats parseable numbers as E.164 and leaves anything else
// trimmed for the validator to reject.
func SanitizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ""
	}

	for _, region := range supportedRegions {
		parsed, err := phonenumbers.Parse(phone, region)
		if err == nil && phonenumbers.IsPossibleNumber(parsed) {
			return phonenumbers.Format(parsed, phonenumbers.E164)
		}
	}
	return phone
}

// SanitizeSlice applies strategy and drops empties and duplicates, keeping order.
func SanitizeSlice(values []string, strategy Strategy) []string {
	seen := make(map[string]struct{})
	out := []string{}

	for _, v := range values {
		s := strategy(v)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	return out
}
