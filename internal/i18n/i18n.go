// Package i18n holds the localized status, error and label strings shown to listeners.
package i18n

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/language"
)

const (
	// DefaultLanguage is used for unknown languages and for keys a catalog lacks
	DefaultLanguage = "en"
	// BerneseGermanMessages is a Swiss dialect spoken in the Canton of Bern
	BerneseGermanMessages = "ch_be"
)

var catalogs = map[string]map[string]string{
	DefaultLanguage:       englishMessages,
	BerneseGermanMessages: berneseGermanMessages,
}

// aliases maps BCP 47 base languages onto catalog names that are not tags themselves.
var aliases = map[string]string{
	"gsw": BerneseGermanMessages,
}

// Localizer formats messages from one catalog, falling back to English.
type Localizer struct {
	language string
	messages map[string]string
	fallback map[string]string
}

// NewLocalizer creates a localizer for lang. Anything ParseLanguage does not recognize
// gets English.
func NewLocalizer(lang string) *Localizer {
	code, _ := ParseLanguage(lang)
	return &Localizer{
		language: code,
		messages: catalogs[code],
		fallback: catalogs[DefaultLanguage],
	}
}

// Language returns the catalog in use.
func (l *Localizer) Language() string {
	return l.language
}

// T formats the message for key. Unknown keys come back unchanged.
func (l *Localizer) T(key string, args ...any) string {
	message, ok := l.messages[key]
	if !ok {
		message, ok = l.fallback[key]
	}
	if !ok {
		return key
	}
	if len(args) == 0 {
		return message
	}
	return fmt.Sprintf(message, args...)
}

// Has reports whether key exists in the catalog or its fallback.
func (l *Localizer) Has(key string) bool {
	if _, ok := l.messages[key]; ok {
		return true
	}
	_, ok := l.fallback[key]
	return ok
}

// Status describes a device status such as core.StatusDegraded.
func (l *Localizer) Status(status fmt.Stringer) string {
	key := "status.device." + status.String()
	if !l.Has(key) {
		key = "status.device.unknown"
	}
	return l.T(key)
}

// ParseLanguage resolves a configured language to a catalog name. Case and separators are
// ignored; region tags like "en-GB" resolve to their base language. It reports false when
// nothing matched and DefaultLanguage was chosen.
func ParseLanguage(lang string) (string, bool) {
	code := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(lang)), "-", "_")
	if _, ok := catalogs[code]; ok {
		return code, true
	}
	if code == "" {
		return DefaultLanguage, false
	}

	tag, err := language.Parse(strings.ReplaceAll(code, "_", "-"))
	if err != nil {
		return DefaultLanguage, false
	}
	base, _ := tag.Base()
	if _, ok := catalogs[base.String()]; ok {
		return base.String(), true
	}
	if alias, ok := aliases[base.String()]; ok {
		return alias, true
	}
	return DefaultLanguage, false
}

// GetSupportedLanguages returns the catalog names, default first.
func GetSupportedLanguages() []string {
	langs := make([]string, 0, len(catalogs))
	for code := range catalogs {
		if code != DefaultLanguage {
			langs = append(langs, code)
		}
	}
	slices.Sort(langs)
	return append([]string{DefaultLanguage}, langs...)
}
