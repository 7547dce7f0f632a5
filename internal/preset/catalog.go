package preset

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"timelens/internal/domain"
)

//go:embed presets.yaml
var defaultCatalogYAML []byte

// Option groups configured in the catalog.
const (
	GroupTimeMachine = "time_machine"
	GroupRestore     = "restore"
)

// Definition is an immutable transformation recipe. The catalog is loaded
// once at startup; resolution always hands out copies so callers can never
// mutate the catalog.
type Definition struct {
	ID             string                `yaml:"id"`
	Label          string                `yaml:"label"`
	Prompt         string                `yaml:"prompt"`
	NegativePrompt string                `yaml:"negative_prompt"`
	Strength       float64               `yaml:"strength"`
	ModelHint      string                `yaml:"model_hint"`
	Mode           domain.GenerationMode `yaml:"mode"`
	RequiresSource bool                  `yaml:"requires_source"`
}

// Overrides selectively replaces fields of a base definition. Strength is a
// pointer so an explicit zero can be told apart from "keep the base value".
type Overrides struct {
	Prompt         string   `yaml:"prompt"`
	NegativePrompt string   `yaml:"negative_prompt"`
	Strength       *float64 `yaml:"strength"`
	ModelHint      string   `yaml:"model_hint"`
}

// Mapping points an option key (a time-machine era, a restore operation, a
// story beat) at a base preset with optional overrides.
type Mapping struct {
	Use       string    `yaml:"use"`
	Overrides Overrides `yaml:"overrides"`
}

// Catalog holds every preset definition plus the option-group and story
// mappings. It is read-only after Load.
type Catalog struct {
	Presets map[string]Definition
	Options map[string]map[string]Mapping
	Stories map[string][]Mapping
}

type catalogFile struct {
	Presets []Definition                  `yaml:"presets"`
	Options map[string]map[string]Mapping `yaml:"options"`
	Stories map[string][]Mapping          `yaml:"stories"`
}

// Load reads the catalog from path, falling back to the embedded default
// catalog when path is empty. The result is validated: duplicate preset ids,
// out-of-range strengths, unknown modes and dangling mappings are all
// configuration errors surfaced at startup, not at request time.
func Load(path string) (*Catalog, error) {
	raw := defaultCatalogYAML
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("preset: read catalog: %w", err)
		}
		raw = data
	}
	return Parse(raw)
}

// Parse decodes and validates catalog YAML.
func Parse(raw []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("preset: decode catalog: %w", err)
	}

	catalog := &Catalog{
		Presets: make(map[string]Definition, len(file.Presets)),
		Options: file.Options,
		Stories: file.Stories,
	}
	if catalog.Options == nil {
		catalog.Options = map[string]map[string]Mapping{}
	}
	if catalog.Stories == nil {
		catalog.Stories = map[string][]Mapping{}
	}

	for _, def := range file.Presets {
		if def.ID == "" {
			return nil, fmt.Errorf("preset: definition without id")
		}
		if _, dup := catalog.Presets[def.ID]; dup {
			return nil, fmt.Errorf("preset: duplicate id %q", def.ID)
		}
		if def.Strength < 0 || def.Strength > 1 {
			return nil, fmt.Errorf("preset %q: strength %v out of range [0,1]", def.ID, def.Strength)
		}
		switch def.Mode {
		case domain.ModeImageToImage, domain.ModeTextToImage, domain.ModeRestore, domain.ModeStory:
		default:
			return nil, fmt.Errorf("preset %q: unknown mode %q", def.ID, def.Mode)
		}
		catalog.Presets[def.ID] = def
	}

	if err := catalog.validateMappings(); err != nil {
		return nil, err
	}
	return catalog, nil
}

func (c *Catalog) validateMappings() error {
	for _, group := range sortedKeys(c.Options) {
		for _, key := range sortedKeys(c.Options[group]) {
			mapping := c.Options[group][key]
			if _, ok := c.Presets[mapping.Use]; !ok {
				return fmt.Errorf("option %s/%s: target preset %q not in catalog", group, key, mapping.Use)
			}
		}
	}
	for _, theme := range sortedKeys(c.Stories) {
		beats := c.Stories[theme]
		if len(beats) == 0 {
			return fmt.Errorf("story %q: no beats configured", theme)
		}
		for i, beat := range beats {
			if _, ok := c.Presets[beat.Use]; !ok {
				return fmt.Errorf("story %q beat %d: target preset %q not in catalog", theme, i, beat.Use)
			}
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
