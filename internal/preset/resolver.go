package preset

import (
	"timelens/internal/domain"
)

// Resolver answers preset and option lookups against a loaded catalog.
type Resolver struct {
	catalog *Catalog
}

// NewResolver wraps a validated catalog.
func NewResolver(catalog *Catalog) *Resolver {
	return &Resolver{catalog: catalog}
}

// Resolve returns the definition for id with overrides merged shallowly on
// top. Override fields win; unset fields keep the base value.
func (r *Resolver) Resolve(id string, overrides *Overrides) (Definition, error) {
	base, ok := r.catalog.Presets[id]
	if !ok {
		return Definition{}, &domain.UnknownPresetError{ID: id}
	}
	return merge(base, overrides), nil
}

// ResolveOption maps a group/key pair to its concrete definition. A missing
// mapping, or a mapping whose target preset is absent from the catalog,
// yields a MissingMappingError so the caller can degrade to "temporarily
// unavailable" instead of crashing.
func (r *Resolver) ResolveOption(group, key string) (Definition, error) {
	mappings, ok := r.catalog.Options[group]
	if !ok {
		return Definition{}, &domain.MissingMappingError{Group: group, Key: key}
	}
	mapping, ok := mappings[key]
	if !ok {
		return Definition{}, &domain.MissingMappingError{Group: group, Key: key}
	}
	base, ok := r.catalog.Presets[mapping.Use]
	if !ok {
		return Definition{}, &domain.MissingMappingError{Group: group, Key: key}
	}
	return merge(base, &mapping.Overrides), nil
}

// ResolveStory returns the resolved definition for every beat of the theme,
// in sequence order.
func (r *Resolver) ResolveStory(theme string) ([]Definition, error) {
	beats, ok := r.catalog.Stories[theme]
	if !ok || len(beats) == 0 {
		return nil, &domain.MissingMappingError{Group: "story", Key: theme}
	}
	defs := make([]Definition, 0, len(beats))
	for _, beat := range beats {
		base, ok := r.catalog.Presets[beat.Use]
		if !ok {
			return nil, &domain.MissingMappingError{Group: "story", Key: theme}
		}
		defs = append(defs, merge(base, &beat.Overrides))
	}
	return defs, nil
}

// Groups returns the configured option groups.
func (r *Resolver) Groups() []string {
	return sortedKeys(r.catalog.Options)
}

func merge(base Definition, overrides *Overrides) Definition {
	out := base
	if overrides == nil {
		return out
	}
	if overrides.Prompt != "" {
		out.Prompt = overrides.Prompt
	}
	if overrides.NegativePrompt != "" {
		out.NegativePrompt = overrides.NegativePrompt
	}
	if overrides.Strength != nil {
		out.Strength = *overrides.Strength
	}
	if overrides.ModelHint != "" {
		out.ModelHint = overrides.ModelHint
	}
	return out
}
