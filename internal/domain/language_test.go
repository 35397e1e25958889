package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeLanguage(t *testing.T) {
	tests := []struct {
		code     string
		expected string
	}{
		{"en", "en"},
		{"ES", "es"},
		{" ja ", "ja"},
		{"xx", "en"},
		{"", "en"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, NormalizeLanguage(tt.code), "code %q", tt.code)
	}
}

func TestLanguageName(t *testing.T) {
	assert.Equal(t, "German (Deutsch)", LanguageName("de"))
	assert.Equal(t, "English", LanguageName("unknown"))
	assert.Len(t, SupportedLanguages(), 8)
}
