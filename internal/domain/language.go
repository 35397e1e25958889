package domain

import "strings"

// DefaultLanguage is the fallback report language.
const DefaultLanguage = "en"

// languageNames maps supported report language codes to the names used
// when prompting and labeling.
var languageNames = map[string]string{
	"en": "English",
	"es": "Spanish (Español)",
	"fr": "French (Français)",
	"de": "German (Deutsch)",
	"pt": "Portuguese (Português)",
	"hi": "Hindi (हिन्दी)",
	"zh": "Chinese (中文)",
	"ja": "Japanese (日本語)",
}

// SupportedLanguages returns the supported language codes.
func SupportedLanguages() []string {
	return []string{"en", "es", "fr", "de", "pt", "hi", "zh", "ja"}
}

// NormalizeLanguage lowercases a language code and falls back to
// English for unsupported values.
func NormalizeLanguage(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if _, ok := languageNames[code]; !ok {
		return DefaultLanguage
	}
	return code
}

// LanguageName returns the display name of a supported language code.
func LanguageName(code string) string {
	if name, ok := languageNames[NormalizeLanguage(code)]; ok {
		return name
	}
	return languageNames[DefaultLanguage]
}
