package target

// Delivery API request.
type deliveryRequest struct {
	ID       visitorID       `json:"id"`
	Property property        `json:"property"`
	Context  deliveryContext `json:"context"`
	Prefetch *requestedPhase `json:"prefetch,omitempty"`
	Execute  *requestedPhase `json:"execute,omitempty"`
}

type visitorID struct {
	MarketingCloudVisitorID string `json:"marketingCloudVisitorId"`
}

type property struct {
	Token string `json:"token"`
}

type deliveryContext struct {
	Channel string  `json:"channel"`
	Browser browser `json:"browser"`
	Address address `json:"address"`
	Screen  screen  `json:"screen"`
}

type browser struct {
	Host string `json:"host"`
}

type address struct {
	URL string `json:"url"`
}

type screen struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type requestedPhase struct {
	PageLoad pageLoadRequest `json:"pageLoad"`
}

type pageLoadRequest struct {
	Parameters map[string]string `json:"parameters,omitempty"`
}

// DeliveryResponse is the subset of the delivery API response the client reads.
type DeliveryResponse struct {
	Prefetch *Phase         `json:"prefetch"`
	Execute  *Phase         `json:"execute"`
	Payload  map[string]any `json:"payload"`
}

// Phase is either the prefetch or the execute half of a response.
type Phase struct {
	PageLoad *Container  `json:"pageLoad"`
	Mboxes   []Container `json:"mboxes"`
}

// Container is a page-load or mbox decision.
type Container struct {
	Options   []Option   `json:"options"`
	Analytics *Analytics `json:"analytics"`
}

type Option struct {
	Content   any            `json:"content"`
	Payload   map[string]any `json:"payload"`
	Analytics *Analytics     `json:"analytics"`
}

type Analytics struct {
	Payload map[string]any `json:"payload"`
}

// containers lists page-load first, then mboxes in response order.
func (p *Phase) containers() []Container {
	if p == nil {
		return nil
	}
	out := make([]Container, 0, len(p.Mboxes)+1)
	if p.PageLoad != nil {
		out = append(out, *p.PageLoad)
	}
	return append(out, p.Mboxes...)
}
