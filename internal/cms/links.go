package cms

import "homepage-aggregator/internal/content"

type linkKey struct {
	linkType string
	id       string
}

// resolver replaces {"sys":{"type":"Link",...}} values with the linked
// entry or asset, rendered as {"sys":..., "fields":...}.
type resolver struct {
	index map[linkKey]rawItem
}

func newResolver(body entriesResponse) *resolver {
	r := &resolver{index: map[linkKey]rawItem{}}
	add := func(linkType string, items []rawItem) {
		for _, it := range items {
			if id, _ := it.Sys["id"].(string); id != "" {
				r.index[linkKey{linkType, id}] = it
			}
		}
	}
	add("Entry", body.Items)
	add("Entry", body.Includes.Entry)
	add("Asset", body.Includes.Asset)
	return r
}

func (r *resolver) fields(f content.Node, depth int) content.Node {
	if f == nil {
		return nil
	}
	out := make(content.Node, len(f))
	for k, v := range f {
		out[k] = r.value(v, depth)
	}
	return out
}

func (r *resolver) value(v any, depth int) any {
	switch t := v.(type) {
	case map[string]any:
		if key, ok := asLink(t); ok {
			it, found := r.index[key]
			if !found || depth <= 0 {
				return t
			}
			return content.Node{
				"sys":    it.Sys,
				"fields": r.fields(it.Fields, depth-1),
			}
		}
		return r.fields(t, depth)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = r.value(e, depth)
		}
		return out
	default:
		return v
	}
}

func asLink(m map[string]any) (linkKey, bool) {
	sys, ok := m["sys"].(map[string]any)
	if !ok || sys["type"] != "Link" {
		return linkKey{}, false
	}
	lt, _ := sys["linkType"].(string)
	id, _ := sys["id"].(string)
	if lt == "" || id == "" {
		return linkKey{}, false
	}
	return linkKey{lt, id}, true
}
