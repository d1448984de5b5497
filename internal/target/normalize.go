package target

import "homepage-aggregator/internal/content"

// Offer flattens every option content object of both phases into one mapping.
// Execute wins over prefetch, later options over earlier ones. No keys means no offer.
func Offer(resp *DeliveryResponse) content.Offer {
	if resp == nil {
		return nil
	}
	offer := content.Offer{}
	for _, ph := range []*Phase{resp.Prefetch, resp.Execute} {
		for _, c := range ph.containers() {
			for _, opt := range c.Options {
				obj, ok := opt.Content.(map[string]any)
				if !ok {
					continue
				}
				for k, v := range obj {
					offer[k] = v
				}
			}
		}
	}
	if offer.Empty() {
		return nil
	}
	return offer
}

// Token finds the analytics correlation token. Lookup order: execute analytics,
// prefetch analytics, prefetch options, execute options, top-level payload.
func Token(resp *DeliveryResponse) string {
	if resp == nil {
		return ""
	}
	if t := phaseAnalyticsToken(resp.Execute); t != "" {
		return t
	}
	if t := phaseAnalyticsToken(resp.Prefetch); t != "" {
		return t
	}
	if t := optionsToken(resp.Prefetch); t != "" {
		return t
	}
	if t := optionsToken(resp.Execute); t != "" {
		return t
	}
	return payloadToken(resp.Payload)
}

func phaseAnalyticsToken(ph *Phase) string {
	for _, c := range ph.containers() {
		if c.Analytics == nil {
			continue
		}
		if t := payloadToken(c.Analytics.Payload); t != "" {
			return t
		}
	}
	return ""
}

func optionsToken(ph *Phase) string {
	for _, c := range ph.containers() {
		for _, opt := range c.Options {
			if opt.Analytics != nil {
				if t := payloadToken(opt.Analytics.Payload); t != "" {
					return t
				}
			}
			if t := payloadToken(opt.Payload); t != "" {
				return t
			}
		}
	}
	return ""
}

func payloadToken(p map[string]any) string {
	for _, k := range []string{"tnta", "token"} {
		if s, ok := p[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
