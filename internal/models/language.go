package models

import (
	"fmt"
	"strings"
)

// Language selects the instruction template; it never affects retrieval.
type Language int

const (
	English Language = iota
	French
)

// Languages lists every supported language.
var Languages = []Language{English, French}

// ParseLanguage maps a language code to a Language. An empty code means English.
func ParseLanguage(code string) (Language, error) {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case "", "en":
		return English, nil
	case "fr":
		return French, nil
	default:
		return English, &ValidationError{Field: "language", Reason: fmt.Sprintf("unsupported language %q", code)}
	}
}

// Code returns the two-letter code of the language.
func (l Language) Code() string {
	switch l {
	case English:
		return "en"
	case French:
		return "fr"
	default:
		return fmt.Sprintf("Language(%d)", int(l))
	}
}

func (l Language) String() string { return l.Code() }
