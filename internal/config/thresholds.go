package config

import (
	_ "embed"
	"fmt"
	"log"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"diskmind/internal/smart"
)

//go:embed presets.yaml
var presetsYAML []byte

// DefaultPreset is used when no preset is configured.
const DefaultPreset = "backblaze"

// disabledOp in an override file removes the attribute from the table.
const disabledOp = "-"

// Resolver turns a preset name into fully merged thresholds: the shipped
// preset with the override file's rules layered on top, attribute by
// attribute.
type Resolver struct {
	presets   map[string]smart.Thresholds
	overrides map[string]smart.Thresholds
}

// NewResolver loads the shipped presets and, if overridesPath is set, the
// user overrides. The override file has the same shape as the presets.
func NewResolver(overridesPath string) (*Resolver, error) {
	presets, err := parsePresets(presetsYAML)
	if err != nil {
		return nil, fmt.Errorf("shipped presets: %w", err)
	}
	r := &Resolver{presets: presets, overrides: map[string]smart.Thresholds{}}

	if overridesPath == "" {
		return r, nil
	}
	data, err := os.ReadFile(overridesPath)
	if os.IsNotExist(err) {
		log.Printf("⚠️  Thresholds file %s not found, using shipped presets", overridesPath)
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read thresholds file: %w", err)
	}
	overrides, err := parsePresets(data)
	if err != nil {
		return nil, fmt.Errorf("thresholds file %s: %w", overridesPath, err)
	}
	r.overrides = overrides
	log.Printf("✅ Loaded threshold overrides for %d preset(s) from %s", len(overrides), overridesPath)
	return r, nil
}

// Names lists the known presets, shipped and override-only, sorted.
func (r *Resolver) Names() []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range []map[string]smart.Thresholds{r.presets, r.overrides} {
		for name := range m {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names
}

// Resolve returns a private copy of the merged thresholds for preset.
// An unknown preset resolves to empty tables together with an error, so
// callers that ignore the error classify everything as ok.
func (r *Resolver) Resolve(preset string) (smart.Thresholds, error) {
	if preset == "" {
		preset = DefaultPreset
	}
	base, shipped := r.presets[preset]
	over, overridden := r.overrides[preset]
	if !shipped && !overridden {
		return smart.Thresholds{}, fmt.Errorf("unknown threshold preset %q", preset)
	}
	return smart.Thresholds{
		ATA:  mergeRuleSet(base.ATA, over.ATA),
		NVMe: mergeRuleSet(base.NVMe, over.NVMe),
	}, nil
}

func parsePresets(data []byte) (map[string]smart.Thresholds, error) {
	var presets map[string]smart.Thresholds
	if err := yaml.Unmarshal(data, &presets); err != nil {
		return nil, err
	}
	if presets == nil {
		presets = map[string]smart.Thresholds{}
	}
	return presets, nil
}

func mergeRuleSet(base, over smart.RuleSet) smart.RuleSet {
	return smart.RuleSet{
		Critical: mergeTable(base.Critical, over.Critical),
		Warning:  mergeTable(base.Warning, over.Warning),
	}
}

func mergeTable(base, over smart.RuleTable) smart.RuleTable {
	out := make(smart.RuleTable, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		if v.Op == disabledOp || v.Op == "" {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out
}
