package sanitizer

import (
	"strings"
	"unicode"
)

// zero-width characters pasted from chat apps and calendars
var invisible = strings.NewReplacer(
	"\u200b", "",
	"\u200c", "",
	"\u200d", "",
	"\ufeff", "",
)

func collapseSpaces(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}

// NormalizeName is used for client names: invisible and control characters
// are dropped and whitespace runs become a single space.
func NormalizeName(name string) string {
	p := Pipeline{
		invisible.Replace,
		func(s string) string {
			return strings.Map(func(r rune) rune {
				if unicode.IsControl(r) && !unicode.IsSpace(r) {
					return -1
				}
				return r
			}, s)
		},
		collapseSpaces,
	}
	return p.Apply(name)
}

// NormalizeEmail lowercases the address and strips a mailto: prefix or the
// angle brackets of a "Name <addr>" form.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(invisible.Replace(email))
	if i := strings.LastIndexByte(email, '<'); i >= 0 && strings.HasSuffix(email, ">") {
		email = email[i+1 : len(email)-1]
	}
	email = strings.ToLower(strings.TrimSpace(email))
	return strings.TrimPrefix(email, "mailto:")
}

// NormalizeDate accepts YYYY/MM/DD and YYYY.MM.DD and rewrites them to the
// dashed form. Other input is only trimmed.
func NormalizeDate(date string) string {
	date = strings.TrimSpace(date)
	if len(date) != len("2006-01-02") {
		return date
	}
	sep := date[4]
	if (sep != '/' && sep != '.') || date[7] != sep {
		return date
	}
	return strings.ReplaceAll(date, string(sep), "-")
}
