package memory

import (
	"fmt"
	"strings"
	"sync"
)

// MemoGroup is one letter pool the player memorizes per round. Groups keep
// their own length progression.
type MemoGroup struct {
	Label    string
	Letters  []string
	StartLen int
	MinLen   int
	MaxLen   int
}

// TrainingPreset bundles the groups of a training mode in display and recall
// order.
type TrainingPreset struct {
	Name   string
	Groups []MemoGroup
}

var presetMu sync.RWMutex

const (
	classicEdgeAlphabet   = "IJKLMNOPQRST"
	classicCornerAlphabet = "ABCDEFGH"
)

var DefaultPresets = map[string]TrainingPreset{
	"classic": {
		Name: "classic",
		Groups: []MemoGroup{
			{
				Label:    "Edges",
				Letters:  SplitLetters(classicEdgeAlphabet),
				StartLen: 5,
				MinLen:   5,
				MaxLen:   len(classicEdgeAlphabet),
			},
			{
				Label:    "Corners",
				Letters:  SplitLetters(classicCornerAlphabet),
				StartLen: 3,
				MinLen:   3,
				MaxLen:   len(classicCornerAlphabet),
			},
		},
	},
	"edges": {
		Name: "edges",
		Groups: []MemoGroup{
			{
				Label:    "Edges",
				Letters:  SplitLetters(classicEdgeAlphabet),
				StartLen: 5,
				MinLen:   5,
				MaxLen:   len(classicEdgeAlphabet),
			},
		},
	},
	"corners": {
		Name: "corners",
		Groups: []MemoGroup{
			{
				Label:    "Corners",
				Letters:  SplitLetters(classicCornerAlphabet),
				StartLen: 3,
				MinLen:   3,
				MaxLen:   len(classicCornerAlphabet),
			},
		},
	},
}

func GetPreset(name string) (TrainingPreset, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "default", "3x3", "blind":
		name = "classic"
	default:
		name = strings.ToLower(strings.TrimSpace(name))
	}
	presetMu.RLock()
	p, ok := DefaultPresets[name]
	presetMu.RUnlock()
	if ok {
		return p.clone(), nil
	}
	return TrainingPreset{}, fmt.Errorf("unknown training preset: %s", name)
}

// PresetNames returns the registered preset names for help text.
func PresetNames() []string {
	presetMu.RLock()
	defer presetMu.RUnlock()
	names := make([]string, 0, len(DefaultPresets))
	for name := range DefaultPresets {
		names = append(names, name)
	}
	return names
}

func (p TrainingPreset) clone() TrainingPreset {
	dup := p
	if len(p.Groups) > 0 {
		dup.Groups = make([]MemoGroup, len(p.Groups))
		for i, g := range p.Groups {
			dup.Groups[i] = g.clone()
		}
	}
	return dup
}

func (g MemoGroup) clone() MemoGroup {
	dup := g
	dup.Letters = append([]string(nil), g.Letters...)
	return dup
}

// SplitLetters breaks an alphabet string into single-letter strings, the
// shape the generator and scorer work with.
func SplitLetters(alphabet string) []string {
	out := make([]string, 0, len(alphabet))
	for _, r := range alphabet {
		out = append(out, string(r))
	}
	return out
}

// ValidatePreset checks that a preset can always produce sequences. The
// adjacency guard makes runs longer than two impossible with fewer than three
// letters, and a zero duplicate chance caps length at the alphabet size.
func ValidatePreset(p TrainingPreset, duplicateChance float64) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("preset name required")
	}
	if len(p.Groups) == 0 {
		return fmt.Errorf("preset %s must define at least one group", p.Name)
	}
	if duplicateChance < 0 || duplicateChance > 1 {
		return fmt.Errorf("duplicate chance %f out of range 0-1", duplicateChance)
	}
	seen := make(map[string]struct{}, len(p.Groups))
	for _, g := range p.Groups {
		label := strings.TrimSpace(g.Label)
		if label == "" {
			return fmt.Errorf("preset %s has a group without label", p.Name)
		}
		key := strings.ToLower(label)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("preset %s has duplicate group label %q", p.Name, g.Label)
		}
		seen[key] = struct{}{}
		if err := validateGroup(p.Name, g, duplicateChance); err != nil {
			return err
		}
	}
	return nil
}

func validateGroup(preset string, g MemoGroup, duplicateChance float64) error {
	switch {
	case len(g.Letters) == 0:
		return fmt.Errorf("group %s/%s must define letters", preset, g.Label)
	case g.MinLen <= 0:
		return fmt.Errorf("group %s/%s min length must be > 0: %d", preset, g.Label, g.MinLen)
	case g.MaxLen < g.MinLen:
		return fmt.Errorf("group %s/%s max length (%d) must be >= min length (%d)", preset, g.Label, g.MaxLen, g.MinLen)
	case g.StartLen < g.MinLen || g.StartLen > g.MaxLen:
		return fmt.Errorf("group %s/%s start length (%d) must be within %d-%d", preset, g.Label, g.StartLen, g.MinLen, g.MaxLen)
	case g.MaxLen >= 3 && len(g.Letters) < 3:
		return fmt.Errorf("group %s/%s needs at least 3 letters for sequences of length %d", preset, g.Label, g.MaxLen)
	case g.MaxLen == 2 && len(g.Letters) < 2:
		return fmt.Errorf("group %s/%s needs at least 2 letters for sequences of length 2", preset, g.Label)
	case duplicateChance == 0 && g.MaxLen > len(g.Letters):
		return fmt.Errorf("group %s/%s max length (%d) exceeds alphabet size (%d) with duplicates disabled", preset, g.Label, g.MaxLen, len(g.Letters))
	}

	letterSeen := make(map[string]struct{}, len(g.Letters))
	for i, letter := range g.Letters {
		if len([]rune(letter)) != 1 {
			return fmt.Errorf("group %s/%s letter at index %d must be a single character: %q", preset, g.Label, i, letter)
		}
		upper := strings.ToUpper(letter)
		if upper < "A" || upper > "Z" {
			return fmt.Errorf("group %s/%s letter at index %d must be A-Z: %q", preset, g.Label, i, letter)
		}
		if letter != upper {
			return fmt.Errorf("group %s/%s letter at index %d must be uppercase: %q", preset, g.Label, i, letter)
		}
		if _, dup := letterSeen[upper]; dup {
			return fmt.Errorf("group %s/%s has duplicate letter %q", preset, g.Label, letter)
		}
		letterSeen[upper] = struct{}{}
	}
	return nil
}
