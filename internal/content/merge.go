package content

import "fmt"

type Strategy string

const (
	// StrategyTargetID addresses nodes by their targetId field at any depth.
	StrategyTargetID Strategy = "target_id"
	// StrategyPositional is the legacy icon[N] / hero / strip addressing.
	StrategyPositional Strategy = "positional"
)

const DefaultDisplayLength = 4

func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "", StrategyTargetID:
		return StrategyTargetID, nil
	case StrategyPositional:
		return StrategyPositional, nil
	}
	return "", fmt.Errorf("unknown merge strategy %q", s)
}

// Merger applies offers to homepage trees. It holds no per-request state.
type Merger struct {
	strategy      Strategy
	displayLength int
}

func NewMerger(strategy Strategy, displayLength int) *Merger {
	if displayLength <= 0 {
		displayLength = DefaultDisplayLength
	}
	if strategy == "" {
		strategy = StrategyTargetID
	}
	return &Merger{strategy: strategy, displayLength: displayLength}
}

func (m *Merger) Strategy() Strategy { return m.strategy }

// Merge returns a new tree with the offer applied. The input is never mutated
// and the result shares no maps or slices with it.
func (m *Merger) Merge(page Homepage, offer Offer) Homepage {
	overrides := Resolve(offer, m.strategy)

	var out Homepage
	switch m.strategy {
	case StrategyPositional:
		out = applyPositional(page, overrides)
	default:
		out = applyIdentifiers(page, overrides)
	}
	out.Icons = fill(out.Icons, m.displayLength)
	return out
}

func applyIdentifiers(page Homepage, overrides []Override) Homepage {
	ids := make(map[string]Node, len(overrides))
	for _, o := range overrides {
		if io, ok := o.(IdentifierOverride); ok {
			ids[io.TargetID] = io.Fields
		}
	}
	return Homepage{
		Hero:      mergeNode(page.Hero, ids),
		Icons:     mergeNodes(page.Icons, ids),
		Strip:     mergeNode(page.Strip, ids),
		Footer:    mergeNode(page.Footer, ids),
		DataLayer: mergeNode(page.DataLayer, ids),
	}
}

func mergeNode(n Node, ids map[string]Node) Node {
	if n == nil {
		return nil
	}
	out := make(Node, len(n))
	for k, v := range n {
		out[k] = v
	}
	if id, ok := n[TargetIDField].(string); ok {
		for k, v := range ids[id] {
			if k == TargetIDField {
				continue
			}
			out[k] = v
		}
	}
	for k, v := range out {
		if k == TargetIDField {
			continue
		}
		out[k] = mergeValue(v, ids)
	}
	return out
}

func mergeNodes(ns []Node, ids map[string]Node) []Node {
	if ns == nil {
		return nil
	}
	out := make([]Node, len(ns))
	for i, n := range ns {
		out[i] = mergeNode(n, ids)
	}
	return out
}

func mergeValue(v any, ids map[string]Node) any {
	switch t := v.(type) {
	case map[string]any:
		return mergeNode(t, ids)
	case []map[string]any:
		return mergeNodes(t, ids)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = mergeValue(e, ids)
		}
		return out
	default:
		return v
	}
}

func applyPositional(page Homepage, overrides []Override) Homepage {
	out := Homepage{
		Hero:      cloneNode(page.Hero),
		Icons:     cloneNodes(page.Icons),
		Strip:     cloneNode(page.Strip),
		Footer:    cloneNode(page.Footer),
		DataLayer: cloneNode(page.DataLayer),
	}
	for _, o := range overrides {
		switch t := o.(type) {
		case SectionOverride:
			switch t.Section {
			case SectionHero:
				out.Hero = cloneNode(t.Value)
			case SectionStrip:
				out.Strip = cloneNode(t.Value)
			}
		case ItemOverride:
			if t.Index < len(out.Icons) {
				out.Icons[t.Index] = cloneNode(t.Value)
			}
		}
	}
	return out
}

// fill cycles a non-empty sequence until it has exactly n elements.
func fill(items []Node, n int) []Node {
	if len(items) == 0 {
		return []Node{}
	}
	out := make([]Node, 0, n)
	for i := 0; len(out) < n; i++ {
		if i < len(items) {
			out = append(out, items[i])
			continue
		}
		out = append(out, cloneNode(items[i%len(items)]))
	}
	return out
}

// Clone deep-copies a homepage tree.
func Clone(page Homepage) Homepage {
	return Homepage{
		Hero:      cloneNode(page.Hero),
		Icons:     cloneNodes(page.Icons),
		Strip:     cloneNode(page.Strip),
		Footer:    cloneNode(page.Footer),
		DataLayer: cloneNode(page.DataLayer),
	}
}

func cloneNode(n Node) Node {
	if n == nil {
		return nil
	}
	out := make(Node, len(n))
	for k, v := range n {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneNodes(ns []Node) []Node {
	if ns == nil {
		return nil
	}
	out := make([]Node, len(ns))
	for i, n := range ns {
		out[i] = cloneNode(n)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneNode(t)
	case []map[string]any:
		return cloneNodes(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
