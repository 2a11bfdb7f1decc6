package seed

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"daily-trivia/internal/challenge/domain"
	"daily-trivia/internal/challenge/repository"
	"daily-trivia/internal/db"
)

const yamlSeed = `
challenges:
  - date: "2024-01-02"
    answer: France
    category: countries
    facts:
      - factType: capital
        content: Paris
  - date: "2024-01-01"
    answer: Japan
    alternatives: [JP]
    facts:
      - factType: geography
        content:
          en: An island nation
          es: Una nación isla
`

const tomlSeed = `
[[challenges]]
date = "2024-01-01"
answer = "Japan"
alternatives = ["JP"]

[[challenges.facts]]
factType = "geography"
content = { en = "An island nation", es = "Una nación isla" }

[[challenges]]
date = "2024-01-02"
answer = "France"
category = "countries"

[[challenges.facts]]
factType = "capital"
content = "Paris"
`

const jsonSeed = `{"challenges":[
 {"date":"2024-01-02","answer":"France","category":"countries","facts":[{"factType":"capital","content":"Paris"}]},
 {"date":"2024-01-01","answer":"Japan","alternatives":["JP"],"facts":[{"factType":"geography","content":{"en":"An island nation","es":"Una nación isla"}}]}
]}`

func wantPublic() []domain.PublicChallenge {
	return []domain.PublicChallenge{
		{Date: "2024-01-01", Facts: []domain.PublicFact{{FactType: "geography", Content: "Una nación isla"}}},
		{Date: "2024-01-02", Category: "countries", Facts: []domain.PublicFact{{FactType: "capital", Content: "Paris"}}},
	}
}

func TestParse_AllFormats(t *testing.T) {
	tests := []struct {
		format Format
		data   string
	}{
		{FormatYAML, yamlSeed},
		{FormatTOML, tomlSeed},
		{FormatJSON, jsonSeed},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			got, err := Parse([]byte(tt.data), tt.format)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			public := make([]domain.PublicChallenge, 0, len(got))
			for _, c := range got {
				public = append(public, c.Public("es"))
			}
			if diff := cmp.Diff(wantPublic(), public); diff != "" {
				t.Errorf("Parse mismatch (-want +got):\n%s", diff)
			}
			if got[0].Answer != "Japan" || len(got[0].Alternatives) != 1 {
				t.Errorf("hidden fields = %q %v", got[0].Answer, got[0].Alternatives)
			}
			if got[1].Alternatives == nil {
				t.Error("missing alternatives should decode as an empty list")
			}
		})
	}
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{"bad date", "challenges:\n  - date: 01/02/2024\n    answer: X\n", "invalid date"},
		{"missing answer", "challenges:\n  - date: \"2024-01-01\"\n", "answer is required"},
		{"duplicate date", "challenges:\n  - {date: \"2024-01-01\", answer: A}\n  - {date: \"2024-01-01\", answer: B}\n", "duplicate date"},
		{"numeric content", "challenges:\n  - date: \"2024-01-01\"\n    answer: A\n    facts:\n      - {factType: x, content: 42}\n", "string or a language table"},
		{"non-string entry", "challenges:\n  - date: \"2024-01-01\"\n    answer: A\n    facts:\n      - factType: x\n        content: {en: [a]}\n", "content[en]"},
		{"missing content", "challenges:\n  - date: \"2024-01-01\"\n    answer: A\n    facts:\n      - factType: x\n", "content is required"},
		{"empty text", "challenges:\n  - date: \"2024-01-01\"\n    answer: A\n    facts:\n      - {factType: x, content: \"\"}\n", "content is empty"},
		{"blank text", "challenges:\n  - date: \"2024-01-01\"\n    answer: A\n    facts:\n      - {factType: x, content: \"   \"}\n", "content is empty"},
		{"all entries empty", "challenges:\n  - date: \"2024-01-01\"\n    answer: A\n    facts:\n      - factType: x\n        content: {fr: \"\"}\n", `missing "en"`},
		{"no en entry", "challenges:\n  - date: \"2024-01-01\"\n    answer: A\n    facts:\n      - factType: x\n        content: {es: Hola}\n", `missing "en"`},
		{"empty table", "challenges:\n  - date: \"2024-01-01\"\n    answer: A\n    facts:\n      - factType: x\n        content: {}\n", `missing "en"`},
		{"malformed", "challenges: [", "decode yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data), FormatYAML)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Parse err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path    string
		want    Format
		wantErr bool
	}{
		{"seeds/challenges.yaml", FormatYAML, false},
		{"challenges.YML", FormatYAML, false},
		{"challenges.toml", FormatTOML, false},
		{"challenges.json", FormatJSON, false},
		{"challenges.csv", "", true},
	}
	for _, tt := range tests {
		got, err := FormatFromPath(tt.path)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("FormatFromPath(%q) = %q, %v", tt.path, got, err)
		}
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "challenges.toml")
	if err := os.WriteFile(path, []byte(tomlSeed), 0o600); err != nil {
		t.Fatal(err)
	}
	got, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("loaded %d challenges, want 2", len(got))
	}
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadFile on a missing file should fail")
	}
}

func TestApply_UpsertsIntoRepository(t *testing.T) {
	conn, err := db.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer conn.Close()
	repo := repository.NewSQLRepository(conn, repository.SQLite)
	ctx := context.Background()

	challenges, err := Parse([]byte(yamlSeed), FormatYAML)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	// Applying twice is idempotent.
	for i := 0; i < 2; i++ {
		n, err := Apply(ctx, repo, challenges, nil)
		if err != nil || n != 2 {
			t.Fatalf("Apply #%d = %d, %v", i+1, n, err)
		}
	}
	got, err := repo.GetByDate(ctx, "2024-01-01")
	if err != nil || got == nil {
		t.Fatalf("GetByDate = %v, %v", got, err)
	}
	if diff := cmp.Diff(wantPublic()[0], got.Public("es")); diff != "" {
		t.Errorf("stored challenge mismatch (-want +got):\n%s", diff)
	}
}

type failingRepo struct {
	repository.Repository
	failOn string
}

func (f failingRepo) Upsert(ctx context.Context, c *domain.Challenge) error {
	if c.Date == f.failOn {
		return errors.New("disk full")
	}
	return nil
}

func TestApply_StopsAtFirstFailure(t *testing.T) {
	challenges := []*domain.Challenge{{Date: "2024-01-01"}, {Date: "2024-01-02"}, {Date: "2024-01-03"}}
	n, err := Apply(context.Background(), failingRepo{failOn: "2024-01-02"}, challenges, nil)
	if err == nil || !strings.Contains(err.Error(), "2024-01-02") {
		t.Errorf("Apply err = %v", err)
	}
	if n != 1 {
		t.Errorf("Apply wrote %d, want 1", n)
	}
}
