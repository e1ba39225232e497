package sanitizer

import (
	"regexp"
	"strings"
	"unicode"
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
	reValidTZ         = regexp.MustCompile(`^[A-Za-z0-9_+\-/]+$`)
	reMultiSlash      = regexp.MustCompile(`/+`)
	reMultiUnderscore = regexp.MustCompile(`_+`)
)

func TrimAndNormalize(s string) string {
	s = strings.TrimSpace(s)

	if s == "" {
		return ""
	}

	var result strings.Builder
	var lastWasSpace bool

	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				result.WriteRune(' ')
				lastWasSpace = true
			}
		} else {
			result.WriteRune(r)
			lastWasSpace = false
		}
	}

	return result.String()
}

func NormalizeIdentifier(id string) string {
	return strings.TrimSpace(id)
}

func NormalizeEnum(value string) string {
	return strings.ToUpper(strings.TrimSpace(value))
}

func NormalizeWeekday(day string) string {
	day = strings.TrimSpace(day)
	if day == "" {
		return ""
	}
	return strings.ToUpper(day[:1]) + strings.ToLower(day[1:])
}

// NormalizeTimeZone tidies an IANA zone name. Names with characters no zone
// uses are returned trimmed so validation reports them as given.
func NormalizeTimeZone(tz string) string {
	p := Pipeline{
		strings.TrimSpace,
		func(s string) string { return reMultiSlash.ReplaceAllString(s, "/") },
		func(s string) string { return reMultiUnderscore.ReplaceAllString(s, "_") },
		func(s string) string { return strings.Trim(s, "/") },
	}

	trimmed := strings.TrimSpace(tz)
	if !reValidTZ.MatchString(trimmed) {
		return trimmed
	}
	return p.Apply(trimmed)
}

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
