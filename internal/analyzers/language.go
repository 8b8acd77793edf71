package analyzers

import (
	"strings"
	"unicode"
)

// Supported language codes.
const (
	LanguageEnglish = "en"
	LanguageHindi   = "hi"
	LanguageUnknown = "unknown"
)

var hindiWords = []string{"hai", "नहीं", "क्या", "हो", "था", "थी", "होता", "होती"}

// DetectLanguage classifies text as English or Hindi using character-set
// ratios over the Devanagari block, with a short Hindi word lookup as a
// tie-breaker. Deterministic and stateless.
func DetectLanguage(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return LanguageUnknown
	}

	var total, devanagari, latin int
	for _, r := range text {
		total++
		switch {
		case r >= 0x0900 && r <= 0x097F:
			devanagari++
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			latin++
		}
	}

	if float64(devanagari)/float64(total) > 0.1 {
		return LanguageHindi
	}
	if float64(latin)/float64(total) > 0.1 {
		return LanguageEnglish
	}

	lower := strings.ToLower(text)
	for _, word := range hindiWords {
		if strings.Contains(lower, word) {
			return LanguageHindi
		}
	}
	return LanguageEnglish
}

// IsSupportedLanguage reports whether the engine understands the language.
func IsSupportedLanguage(lang string) bool {
	return lang == LanguageEnglish || lang == LanguageHindi
}

// LanguageName returns the display name for a language code.
func LanguageName(code string) string {
	switch code {
	case LanguageEnglish:
		return "English"
	case LanguageHindi:
		return "Hindi"
	default:
		return "Unknown"
	}
}

func capsRatio(text string) float64 {
	if text == "" {
		return 0
	}
	var total, upper int
	for _, r := range text {
		total++
		if unicode.IsUpper(r) {
			upper++
		}
	}
	return float64(upper) / float64(total)
}
