package registry

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// namePatterns match self-introductions in Brazilian Portuguese. The first
// capture group is the candidate name.
var namePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:me chamo|meu nome é|pode me chamar de|sou o|sou a)\s+([\p{L}\p{N}_]+)`),
	regexp.MustCompile(`(?i)^([\p{L}\p{N}_]+)(?:\s+aqui)?$`),
}

// DetectName tries to extract the user's name from a message and saves it on
// the session. currentName short-circuits detection: once a name is known it
// is never overwritten by a later introduction. Returns the name in effect
// after the call, which is empty when nothing was detected.
func (r *Registry) DetectName(sessionID, message, currentName string) string {
	if currentName != "" {
		return currentName
	}

	msg := strings.TrimSpace(message)
	for _, p := range namePatterns {
		m := p.FindStringSubmatch(msg)
		if m == nil || m[1] == "" {
			continue
		}
		name := m[1]
		if n := utf8.RuneCountInString(name); n < 2 || n > 20 {
			continue
		}
		name = capitalize(name)
		r.SetUserName(sessionID, name)
		return name
	}
	return ""
}

// capitalize uppercases the first rune and lowercases the rest.
func capitalize(s string) string {
	runes := []rune(strings.ToLower(s))
	if len(runes) == 0 {
		return s
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
