package preset

import (
	"strings"
	"testing"
)

func TestLoadEmbeddedCatalog(t *testing.T) {
	catalog, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(catalog.Presets) == 0 {
		t.Fatalf("embedded catalog has no presets")
	}
	if len(catalog.Options[GroupTimeMachine]) == 0 {
		t.Fatalf("embedded catalog has no time machine options")
	}
	if len(catalog.Options[GroupRestore]) == 0 {
		t.Fatalf("embedded catalog has no restore options")
	}
	if len(catalog.Stories) == 0 {
		t.Fatalf("embedded catalog has no stories")
	}
}

func TestEveryConfiguredMappingResolves(t *testing.T) {
	catalog, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	resolver := NewResolver(catalog)
	for group, mappings := range catalog.Options {
		for key := range mappings {
			if _, err := resolver.ResolveOption(group, key); err != nil {
				t.Fatalf("ResolveOption(%s, %s) returned error: %v", group, key, err)
			}
		}
	}
	for theme := range catalog.Stories {
		if _, err := resolver.ResolveStory(theme); err != nil {
			t.Fatalf("ResolveStory(%s) returned error: %v", theme, err)
		}
	}
}

func TestParseRejectsDanglingMapping(t *testing.T) {
	raw := `
presets:
  - id: base
    label: Base
    prompt: p
    strength: 0.5
    mode: image_to_image
    requires_source: true
options:
  time_machine:
    "1960s":
      use: missing-preset
`
	_, err := Parse([]byte(raw))
	if err == nil {
		t.Fatalf("expected error for dangling mapping")
	}
	if !strings.Contains(err.Error(), "missing-preset") {
		t.Fatalf("error should name the dangling target, got %v", err)
	}
}

func TestParseRejectsBadDefinitions(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{
			name: "duplicate id",
			raw: `
presets:
  - {id: a, label: A, prompt: p, strength: 0.5, mode: restore}
  - {id: a, label: A2, prompt: p, strength: 0.5, mode: restore}
`,
		},
		{
			name: "strength out of range",
			raw: `
presets:
  - {id: a, label: A, prompt: p, strength: 1.5, mode: restore}
`,
		},
		{
			name: "unknown mode",
			raw: `
presets:
  - {id: a, label: A, prompt: p, strength: 0.5, mode: teleport}
`,
		},
		{
			name: "empty story",
			raw: `
presets:
  - {id: a, label: A, prompt: p, strength: 0.5, mode: story}
stories:
  empty: []
`,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse([]byte(tc.raw)); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
