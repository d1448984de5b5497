package content

// Node is one section or nested object of the homepage tree, as decoded from JSON.
type Node = map[string]any

// TargetIDField addresses a node from an identifier-based offer.
const TargetIDField = "targetId"

// Section names, also the JSON keys of the response.
const (
	SectionHero      = "hero"
	SectionIcons     = "icons"
	SectionStrip     = "strip"
	SectionFooter    = "footer"
	SectionDataLayer = "dataLayer"
)

// Homepage is the content tree served to the page renderer.
// Every section may be nil; Icons is an ordered display sequence.
type Homepage struct {
	Hero      Node   `json:"hero"`
	Icons     []Node `json:"icons"`
	Strip     Node   `json:"strip"`
	Footer    Node   `json:"footer"`
	DataLayer Node   `json:"dataLayer"`
}

// Offer is the flat override mapping proposed by the personalization service.
type Offer map[string]any

// Empty reports whether the offer carries no overrides.
func (o Offer) Empty() bool { return len(o) == 0 }
