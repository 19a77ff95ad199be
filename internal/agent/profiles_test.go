package agent

import (
	"os"
	"path/filepath"
	"testing"
)

func TestProfileServiceLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profiles.toml")

	content := `
[profiles.analyst]
model = "cortex-analyst"
system_prompt = "You are a data analyst."
description = "Structured data questions"

[profiles.Search]
model = "cortex-search"
description = "Document search"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write profile file: %v", err)
	}

	service := &ProfileService{profiles: make(map[string]Profile)}
	if err := service.Load(path); err != nil {
		t.Fatalf("failed to load profiles: %v", err)
	}

	profile := service.Get("analyst")
	if profile.Model != "cortex-analyst" {
		t.Errorf("expected model cortex-analyst, got %q", profile.Model)
	}
	if profile.SystemPrompt != "You are a data analyst." {
		t.Errorf("unexpected system prompt: %q", profile.SystemPrompt)
	}

	// Lookup is case insensitive
	if got := service.Get("search"); got.Model != "cortex-search" {
		t.Errorf("expected case insensitive lookup, got %+v", got)
	}

	profiles := service.GetProfiles()
	if len(profiles) != 2 {
		t.Fatalf("expected 2 profiles, got %d", len(profiles))
	}
	if profiles[0].Name != "Search" && profiles[0].Name != "analyst" {
		t.Errorf("unexpected profile ordering: %+v", profiles)
	}
}

func TestProfileServiceMissingFile(t *testing.T) {
	service := &ProfileService{profiles: make(map[string]Profile)}

	if err := service.Load(filepath.Join(t.TempDir(), "missing.toml")); err != nil {
		t.Errorf("missing file should not be an error, got %v", err)
	}

	// Unknown names fall back to an empty profile carrying the name
	profile := service.Get("nope")
	if profile.Name != "nope" || profile.Model != "" {
		t.Errorf("unexpected fallback profile: %+v", profile)
	}
}
