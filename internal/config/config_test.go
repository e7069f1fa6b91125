package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeProfile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadProfile(t *testing.T) {
	path := writeProfile(t, `
words: \b(protest|march)\b
exclude_titles: gallery
exclude_urls: videos?
recipients:
  - reader@example.com
`)

	p, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if !p.WordsRe.MatchString("protest downtown") {
		t.Error("words pattern not compiled")
	}
	if !p.ExcludeTitlesRe.MatchString("Photo GALLERY") {
		t.Error("exclusion patterns should be case insensitive")
	}
	if len(p.Recipients) != 1 || p.Recipients[0] != "reader@example.com" {
		t.Errorf("recipients = %v", p.Recipients)
	}
}

func TestLoadProfileRequiresWords(t *testing.T) {
	path := writeProfile(t, "recipients: []\n")
	if _, err := LoadProfile(path); err == nil {
		t.Fatal("expected an error for a profile without words")
	}
}

func TestLoadProfileRejectsBadPattern(t *testing.T) {
	path := writeProfile(t, "words: '['\n")
	if _, err := LoadProfile(path); err == nil {
		t.Fatal("expected an error for an invalid pattern")
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{DatabaseDriver: "mysql", ShingleLength: 8}
	if err := cfg.Validate(); err == nil {
		t.Error("unknown driver should fail validation")
	}

	cfg = &Config{DatabaseDriver: "postgres", ShingleLength: 8}
	if err := cfg.Validate(); err == nil {
		t.Error("postgres without DATABASE_URL should fail validation")
	}

	cfg = &Config{DatabaseDriver: "sqlite", ShingleLength: 8}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}
