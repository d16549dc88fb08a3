package model

import "fmt"

// Family identifies an instrument family of the specialized series.
type Family string

// Channel identifies one measured axis within a family.
type Channel string

const (
	FamilyInvertedPlumb Family = "inverted-plumb"
	FamilyStaticLevel   Family = "static-level"
	FamilyTensionLine   Family = "tension-line"
	FamilyWaterLevel    Family = "water-level"
)

const (
	ChannelLeftRight    Channel = "left-right"
	ChannelUpDown       Channel = "up-down"
	ChannelSettlement   Channel = "settlement"
	ChannelDisplacement Channel = "displacement"
	ChannelWaterLevel   Channel = "water-level"
)

// familyChannels is the closed family -> channel mapping. Inverted plumb
// instruments report two axes per observation; the rest report one.
var familyChannels = map[Family][]Channel{
	FamilyInvertedPlumb: {ChannelLeftRight, ChannelUpDown},
	FamilyStaticLevel:   {ChannelSettlement},
	FamilyTensionLine:   {ChannelDisplacement},
	FamilyWaterLevel:    {ChannelWaterLevel},
}

// ParseFamily validates a family name from the wire.
func ParseFamily(s string) (Family, error) {
	f := Family(s)
	if _, ok := familyChannels[f]; !ok {
		return "", fmt.Errorf("unknown instrument family %q", s)
	}
	return f, nil
}

// Channels returns the channel set the family reports, in canonical order.
func (f Family) Channels() []Channel {
	return familyChannels[f]
}

// Has reports whether ch belongs to the family.
func (f Family) Has(ch Channel) bool {
	for _, c := range familyChannels[f] {
		if c == ch {
			return true
		}
	}
	return false
}
