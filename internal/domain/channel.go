package domain

import "fmt"

// Channel is a publication surface for content.
type Channel string

const (
	ChannelEstablishmentPage Channel = "establishment_page"
	ChannelHomepage          Channel = "homepage"
	ChannelNewsletter        Channel = "newsletter"
	ChannelSocial            Channel = "social"
)

// Channels returns every channel in display order.
func Channels() []Channel {
	return []Channel{ChannelEstablishmentPage, ChannelHomepage, ChannelNewsletter, ChannelSocial}
}

// ParseChannel validates a channel name from a URL or query string.
func ParseChannel(s string) (Channel, error) {
	for _, c := range Channels() {
		if string(c) == s {
			return c, nil
		}
	}
	return "", Invalid("channel.parse", fmt.Sprintf("unknown channel %q", s))
}

// ChannelFlags records which channels a content item is entitled to.
// Entitlement is not visibility: the item must also be published.
type ChannelFlags struct {
	EstablishmentPage bool `json:"establishment_page"`
	Homepage          bool `json:"homepage"`
	Newsletter        bool `json:"newsletter"`
	Social            bool `json:"social"`
}

// ComputeChannelFlags derives the channel entitlements of content created
// under plan. The result is stored with the item and never recomputed.
func ComputeChannelFlags(plan Plan) ChannelFlags {
	return ChannelFlags{
		EstablishmentPage: true,
		Homepage:          plan.CanShowOnHomepage,
		Newsletter:        plan.CanShowInNewsletter,
		Social:            plan.CanShowOnSocial,
	}
}

// Allows reports whether c is among the flagged channels.
func (f ChannelFlags) Allows(c Channel) bool {
	switch c {
	case ChannelEstablishmentPage:
		return f.EstablishmentPage
	case ChannelHomepage:
		return f.Homepage
	case ChannelNewsletter:
		return f.Newsletter
	case ChannelSocial:
		return f.Social
	}
	return false
}

// Enabled returns the flagged channels.
func (f ChannelFlags) Enabled() []Channel {
	var out []Channel
	for _, c := range Channels() {
		if f.Allows(c) {
			out = append(out, c)
		}
	}
	return out
}
