package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// DefaultLanguage is the language every localized fact is guaranteed to carry.
const DefaultLanguage = "en"

// ErrEmptyContent is returned for fact content that has nothing to display.
var ErrEmptyContent = errors.New("fact content is empty")

// Challenge is the puzzle for one calendar date. Answer and Alternatives are never served.
type Challenge struct {
	Date         string   `json:"date"`
	Answer       string   `json:"answer"`
	Alternatives []string `json:"alternatives"`
	Facts        []Fact   `json:"facts"`
	Category     string   `json:"category"`
}

// Fact is one clue of a challenge, revealed progressively during play.
type Fact struct {
	FactType string  `json:"factType"`
	Content  Content `json:"content"`
}

// Content is either a single display string or a map of language code to display string.
type Content struct {
	text   string
	byLang map[string]string
	isText bool
}

// Text returns Content holding a plain string shown for every language.
func Text(s string) Content {
	return Content{text: s, isText: true}
}

// Localized returns Content holding one string per language code.
func Localized(byLang map[string]string) Content {
	m := make(map[string]string, len(byLang))
	for k, v := range byLang {
		m[k] = v
	}
	return Content{byLang: m}
}

// IsText reports whether c is a plain string rather than a language map.
func (c Content) IsText() bool { return c.isText }

// Languages returns the language codes present in a localized content, sorted.
func (c Content) Languages() []string {
	keys := make([]string, 0, len(c.byLang))
	for k := range c.byLang {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Validate reports whether c always resolves to a non-empty string: plain text must not be blank
// and a language map must carry a non-blank DefaultLanguage entry.
func (c Content) Validate() error {
	switch {
	case c.isText:
		if strings.TrimSpace(c.text) == "" {
			return ErrEmptyContent
		}
	case c.byLang == nil:
		return ErrEmptyContent
	case strings.TrimSpace(c.byLang[DefaultLanguage]) == "":
		return fmt.Errorf("fact content: missing %q entry", DefaultLanguage)
	}
	return nil
}

// Entries returns a copy of the language map of a localized content; nil for plain text.
func (c Content) Entries() map[string]string {
	if c.isText || c.byLang == nil {
		return nil
	}
	m := make(map[string]string, len(c.byLang))
	for k, v := range c.byLang {
		m[k] = v
	}
	return m
}

// Resolve returns the display string for lang. Plain strings pass through unchanged.
// A missing or empty entry falls back to "en", then to the first non-empty entry in key order.
func (c Content) Resolve(lang string) string {
	if c.isText {
		return c.text
	}
	if v := c.byLang[lang]; v != "" {
		return v
	}
	if v := c.byLang[DefaultLanguage]; v != "" {
		return v
	}
	for _, k := range c.Languages() {
		if v := c.byLang[k]; v != "" {
			return v
		}
	}
	return ""
}

// MarshalJSON encodes plain content as a JSON string and localized content as an object.
func (c Content) MarshalJSON() ([]byte, error) {
	if c.isText {
		return json.Marshal(c.text)
	}
	if c.byLang == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(c.byLang)
}

// UnmarshalJSON accepts either a JSON string or an object of language code to string. Null is rejected.
func (c *Content) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		return ErrEmptyContent
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Text(s)
		return nil
	case data[0] == '{':
		var m map[string]string
		if err := json.Unmarshal(data, &m); err != nil {
			return fmt.Errorf("fact content: %w", err)
		}
		*c = Content{byLang: m}
		return nil
	default:
		return fmt.Errorf("fact content: expected string or object, got %s", data)
	}
}

// PublicChallenge is the served shape of a challenge: no answer, no alternatives, content resolved.
type PublicChallenge struct {
	Date     string       `json:"date"`
	Category string       `json:"category,omitempty"`
	Facts    []PublicFact `json:"facts"`
}

// PublicFact is a fact with its content resolved to a single string.
type PublicFact struct {
	FactType string `json:"factType"`
	Content  string `json:"content"`
}

// Public strips the answer-bearing fields and resolves every fact to lang.
func (c *Challenge) Public(lang string) PublicChallenge {
	out := PublicChallenge{
		Date:     c.Date,
		Category: c.Category,
		Facts:    make([]PublicFact, len(c.Facts)),
	}
	for i, f := range c.Facts {
		out.Facts[i] = PublicFact{FactType: f.FactType, Content: f.Content.Resolve(lang)}
	}
	return out
}
