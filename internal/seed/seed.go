// Package seed loads challenges from YAML, TOML or JSON files and upserts them into a repository.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"daily-trivia/internal/challenge/domain"
	"daily-trivia/internal/challenge/repository"
)

const dateLayout = "2006-01-02"

// Format is a seed file encoding.
type Format string

// Supported formats.
const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
	FormatJSON Format = "json"
)

// File is the top-level shape of a seed file.
type File struct {
	Challenges []Record `yaml:"challenges" toml:"challenges" json:"challenges"`
}

// Record is one challenge as written in a seed file.
type Record struct {
	Date         string       `yaml:"date" toml:"date" json:"date"`
	Answer       string       `yaml:"answer" toml:"answer" json:"answer"`
	Alternatives []string     `yaml:"alternatives" toml:"alternatives" json:"alternatives"`
	Category     string       `yaml:"category" toml:"category" json:"category"`
	Facts        []FactRecord `yaml:"facts" toml:"facts" json:"facts"`
}

// FactRecord is one clue. Content is either a string or a table of language code to string.
type FactRecord struct {
	FactType string `yaml:"factType" toml:"factType" json:"factType"`
	Content  any    `yaml:"content" toml:"content" json:"content"`
}

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	case ".json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("seed: unsupported file extension %q", filepath.Ext(path))
}

// LoadFile reads and parses the seed file at path.
func LoadFile(path string) ([]*domain.Challenge, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}
	return Parse(data, format)
}

// Parse decodes data and validates every record. Dates must be YYYY-MM-DD and unique within the file.
func Parse(data []byte, format Format) ([]*domain.Challenge, error) {
	var f File
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &f)
	case FormatTOML:
		err = toml.Unmarshal(data, &f)
	case FormatJSON:
		err = json.Unmarshal(data, &f)
	default:
		return nil, fmt.Errorf("seed: unsupported format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("seed: decode %s: %w", format, err)
	}

	seen := make(map[string]bool, len(f.Challenges))
	out := make([]*domain.Challenge, 0, len(f.Challenges))
	for i, rec := range f.Challenges {
		c, err := rec.toDomain()
		if err != nil {
			return nil, fmt.Errorf("seed: challenge %d: %w", i, err)
		}
		if seen[c.Date] {
			return nil, fmt.Errorf("seed: challenge %d: duplicate date %s", i, c.Date)
		}
		seen[c.Date] = true
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (r Record) toDomain() (*domain.Challenge, error) {
	if _, err := time.Parse(dateLayout, r.Date); err != nil {
		return nil, fmt.Errorf("invalid date %q: want YYYY-MM-DD", r.Date)
	}
	if strings.TrimSpace(r.Answer) == "" {
		return nil, fmt.Errorf("%s: answer is required", r.Date)
	}
	facts := make([]domain.Fact, 0, len(r.Facts))
	for j, fr := range r.Facts {
		content, err := toContent(fr.Content)
		if err != nil {
			return nil, fmt.Errorf("%s: fact %d: %w", r.Date, j, err)
		}
		facts = append(facts, domain.Fact{FactType: fr.FactType, Content: content})
	}
	alternatives := r.Alternatives
	if alternatives == nil {
		alternatives = []string{}
	}
	return &domain.Challenge{
		Date:         r.Date,
		Answer:       r.Answer,
		Alternatives: alternatives,
		Facts:        facts,
		Category:     r.Category,
	}, nil
}

// toContent accepts the shapes the three decoders produce for a string or a string table.
// The result must resolve to a non-empty string for every language.
func toContent(v any) (domain.Content, error) {
	var content domain.Content
	switch c := v.(type) {
	case string:
		content = domain.Text(c)
	case map[string]any:
		byLang := make(map[string]string, len(c))
		for lang, text := range c {
			s, ok := text.(string)
			if !ok {
				return domain.Content{}, fmt.Errorf("content[%s] must be a string, got %T", lang, text)
			}
			byLang[lang] = s
		}
		content = domain.Localized(byLang)
	case nil:
		return domain.Content{}, fmt.Errorf("content is required")
	default:
		return domain.Content{}, fmt.Errorf("content must be a string or a language table, got %T", v)
	}
	if err := content.Validate(); err != nil {
		return domain.Content{}, err
	}
	return content, nil
}

// Apply upserts challenges in order and returns how many were written. It stops at the first failure.
func Apply(ctx context.Context, repo repository.Repository, challenges []*domain.Challenge, logger *zap.Logger) (int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	for i, c := range challenges {
		if err := repo.Upsert(ctx, c); err != nil {
			return i, fmt.Errorf("seed: upsert %s: %w", c.Date, err)
		}
		logger.Debug("seeded challenge", zap.String("date", c.Date), zap.Int("facts", len(c.Facts)))
	}
	return len(challenges), nil
}
