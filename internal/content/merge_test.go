package content

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func icon(title string) Node { return Node{"title": title} }

func samplePage() Homepage {
	return Homepage{
		Hero: Node{
			TargetIDField: "heroA",
			"title":       "Old",
			"subtitle":    "X",
			"button": map[string]any{
				"sys":    map[string]any{"type": "Entry", "id": "btn"},
				"fields": map[string]any{TargetIDField: "heroBtn", "title": "Watch", "url": "/watch"},
			},
		},
		Icons: []Node{
			{TargetIDField: "icon1", "title": "Sports"},
			{TargetIDField: "icon2", "title": "Movies"},
			{"title": "Kids"},
			{"title": "News"},
		},
		Strip:     Node{TargetIDField: "strip", "title": "Free trial", "color": "#0ea5e9"},
		Footer:    Node{"legalText": "(c)", "links": []any{map[string]any{"fields": map[string]any{TargetIDField: "link1", "label": "Help"}}}},
		DataLayer: Node{"dl": map[string]any{"page": "home"}},
	}
}

func TestMerge_NilOrEmptyOfferIsIdentity(t *testing.T) {
	m := NewMerger(StrategyTargetID, 4)
	for _, offer := range []Offer{nil, {}} {
		page := samplePage()
		got := m.Merge(page, offer)
		if diff := cmp.Diff(samplePage(), got); diff != "" {
			t.Fatalf("merge with empty offer changed tree (-want +got):\n%s", diff)
		}
	}
}

func TestMerge_TargetIDShallowMerge(t *testing.T) {
	m := NewMerger(StrategyTargetID, 4)
	page := Homepage{Hero: Node{TargetIDField: "heroA", "title": "Old", "subtitle": "X"}}

	got := m.Merge(page, Offer{"heroA": map[string]any{"title": "New"}})

	assert.Equal(t, Node{TargetIDField: "heroA", "title": "New", "subtitle": "X"}, got.Hero)
	assert.Equal(t, "Old", page.Hero["title"], "input must not be mutated")
}

func TestMerge_TargetIDNested(t *testing.T) {
	m := NewMerger(StrategyTargetID, 4)
	offer := Offer{
		"heroBtn": map[string]any{"title": "Start now", TargetIDField: "hijack"},
		"icon2":   map[string]any{"title": "Series", "image": "https://img/series.png"},
		"link1":   map[string]any{"label": "Support"},
		"unknown": map[string]any{"title": "ignored"},
		"scalar":  "ignored too",
	}

	page := samplePage()
	got := m.Merge(page, offer)

	btn := got.Hero["button"].(map[string]any)["fields"].(map[string]any)
	assert.Equal(t, "Start now", btn["title"])
	assert.Equal(t, "/watch", btn["url"])
	assert.Equal(t, "heroBtn", btn[TargetIDField], "targetId is never overwritten")

	assert.Equal(t, "Series", got.Icons[1]["title"])
	assert.Equal(t, "https://img/series.png", got.Icons[1]["image"])
	assert.Equal(t, "Sports", got.Icons[0]["title"])

	link := got.Footer["links"].([]any)[0].(map[string]any)["fields"].(map[string]any)
	assert.Equal(t, "Support", link["label"])

	if diff := cmp.Diff(samplePage(), page); diff != "" {
		t.Fatalf("input mutated (-want +got):\n%s", diff)
	}
}

func TestMerge_OutputIndependentOfInput(t *testing.T) {
	m := NewMerger(StrategyTargetID, 4)
	page := samplePage()
	got := m.Merge(page, nil)

	got.Hero["title"] = "changed"
	got.Hero["button"].(map[string]any)["fields"].(map[string]any)["title"] = "changed"
	got.Icons[0]["title"] = "changed"

	assert.Equal(t, "Old", page.Hero["title"])
	assert.Equal(t, "Watch", page.Hero["button"].(map[string]any)["fields"].(map[string]any)["title"])
	assert.Equal(t, "Sports", page.Icons[0]["title"])
}

func TestMerge_NilSectionsSurvive(t *testing.T) {
	m := NewMerger(StrategyTargetID, 4)
	got := m.Merge(Homepage{}, Offer{"heroA": map[string]any{"title": "New"}})

	assert.Nil(t, got.Hero)
	assert.Nil(t, got.Strip)
	assert.Nil(t, got.Footer)
	assert.Nil(t, got.DataLayer)
	assert.NotNil(t, got.Icons)
	assert.Empty(t, got.Icons)
}

func TestMerge_IconDisplayLength(t *testing.T) {
	a, b, c := icon("A"), icon("B"), icon("C")
	tests := []struct {
		name  string
		icons []Node
		want  []Node
	}{
		{"empty stays empty", []Node{}, []Node{}},
		{"nil becomes empty", nil, []Node{}},
		{"one repeats", []Node{a}, []Node{a, a, a, a}},
		{"two cycle", []Node{a, b}, []Node{a, b, a, b}},
		{"three cycle", []Node{a, b, c}, []Node{a, b, c, a}},
		{"six truncate", []Node{a, b, c, a, b, c}, []Node{a, b, c, a}},
	}

	m := NewMerger(StrategyTargetID, 4)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.Merge(Homepage{Icons: tt.icons}, nil)
			require.NotNil(t, got.Icons)
			if diff := cmp.Diff(tt.want, got.Icons); diff != "" {
				t.Fatalf("icons (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMerge_PaddedCopiesAreDistinct(t *testing.T) {
	m := NewMerger(StrategyTargetID, 4)
	got := m.Merge(Homepage{Icons: []Node{icon("A")}}, nil)

	got.Icons[1]["title"] = "changed"
	assert.Equal(t, "A", got.Icons[0]["title"])
}

func TestMerge_Positional(t *testing.T) {
	m := NewMerger(StrategyPositional, 4)
	page := Homepage{
		Hero:  Node{"title": "Old", TargetIDField: "heroA"},
		Icons: []Node{icon("A"), icon("B")},
		Strip: Node{"title": "strip"},
	}
	offer := Offer{
		"hero":    map[string]any{"title": "Target hero"},
		"ICON[2]": []any{map[string]any{"title": "Z"}},
		"icon[3]": map[string]any{"title": "out of range"},
		"icon[x]": map[string]any{"title": "bad index"},
		"strip":   "not an object",
		"heroA":   map[string]any{"title": "identifier keys ignored"},
		"icon[0]": map[string]any{"title": "zero clamps to first"},
	}

	got := m.Merge(page, offer)

	assert.Equal(t, Node{"title": "Target hero"}, got.Hero)
	assert.Equal(t, Node{"title": "strip"}, got.Strip)
	want := []Node{icon("zero clamps to first"), icon("Z"), icon("zero clamps to first"), icon("Z")}
	if diff := cmp.Diff(want, got.Icons); diff != "" {
		t.Fatalf("icons (-want +got):\n%s", diff)
	}
	assert.Equal(t, "A", page.Icons[0]["title"])
}

func TestMerge_PositionalEmptyOfferIsIdentity(t *testing.T) {
	m := NewMerger(StrategyPositional, 4)
	got := m.Merge(samplePage(), nil)
	if diff := cmp.Diff(samplePage(), got, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestResolve(t *testing.T) {
	offer := Offer{
		"b":       map[string]any{"title": "x"},
		"a":       map[string]any{"title": "y"},
		"scalar":  "s",
		"icon[1]": map[string]any{"title": "i"},
		"hero":    map[string]any{"title": "h"},
	}

	ids := Resolve(offer, StrategyTargetID)
	require.Len(t, ids, 4)
	assert.Equal(t, IdentifierOverride{TargetID: "a", Fields: Node{"title": "y"}}, ids[0])

	pos := Resolve(offer, StrategyPositional)
	assert.Equal(t, []Override{
		SectionOverride{Section: "hero", Value: Node{"title": "h"}},
		ItemOverride{Index: 0, Value: Node{"title": "i"}},
	}, pos)
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, StrategyTargetID, s)

	s, err = ParseStrategy("positional")
	require.NoError(t, err)
	assert.Equal(t, StrategyPositional, s)

	_, err = ParseStrategy("bogus")
	assert.Error(t, err)
}

func TestClone(t *testing.T) {
	page := samplePage()
	c := Clone(page)
	require.Empty(t, cmp.Diff(page, c))

	c.Footer["links"].([]any)[0].(map[string]any)["fields"].(map[string]any)["label"] = "changed"
	assert.Equal(t, "Help", page.Footer["links"].([]any)[0].(map[string]any)["fields"].(map[string]any)["label"])
}
