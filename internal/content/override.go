package content

import (
	"regexp"
	"sort"
	"strconv"
)

// Override is one resolved offer entry. It is one of IdentifierOverride,
// SectionOverride or ItemOverride.
type Override interface{ isOverride() }

// IdentifierOverride shallow-merges Fields into every node whose targetId equals TargetID.
type IdentifierOverride struct {
	TargetID string
	Fields   Node
}

// SectionOverride replaces a whole section (legacy "hero" / "strip" keys).
type SectionOverride struct {
	Section string
	Value   Node
}

// ItemOverride replaces one element of the icon sequence (legacy "icon[N]" keys, 1-based).
type ItemOverride struct {
	Index int
	Value Node
}

func (IdentifierOverride) isOverride() {}
func (SectionOverride) isOverride()    {}
func (ItemOverride) isOverride()       {}

var itemKey = regexp.MustCompile(`(?i)^icon\[(\d+)\]$`)

// Resolve classifies offer entries for the given strategy. Entries whose shape
// does not fit the strategy are dropped. Output is ordered by key.
func Resolve(offer Offer, strategy Strategy) []Override {
	keys := make([]string, 0, len(offer))
	for k := range offer {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []Override
	for _, k := range keys {
		v := offer[k]
		switch strategy {
		case StrategyPositional:
			if o, ok := resolvePositional(k, v); ok {
				out = append(out, o)
			}
		default:
			if fields, ok := v.(map[string]any); ok && k != "" {
				out = append(out, IdentifierOverride{TargetID: k, Fields: fields})
			}
		}
	}
	return out
}

func resolvePositional(key string, v any) (Override, bool) {
	if arr, ok := v.([]any); ok {
		if len(arr) == 0 {
			return nil, false
		}
		v = arr[0]
	}
	node, ok := v.(map[string]any)
	if !ok || len(node) == 0 {
		return nil, false
	}
	switch key {
	case SectionHero, SectionStrip:
		return SectionOverride{Section: key, Value: node}, true
	}
	m := itemKey.FindStringSubmatch(key)
	if m == nil {
		return nil, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil, false
	}
	return ItemOverride{Index: max(0, n-1), Value: node}, true
}
