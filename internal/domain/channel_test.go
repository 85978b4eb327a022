package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeChannelFlags(t *testing.T) {
	tests := []struct {
		plan PlanID
		want []Channel
	}{
		{PlanBasic, []Channel{ChannelEstablishmentPage}},
		{PlanPro, []Channel{ChannelEstablishmentPage, ChannelHomepage, ChannelSocial}},
		{PlanExpert, Channels()},
	}

	for _, tt := range tests {
		t.Run(string(tt.plan), func(t *testing.T) {
			p, err := GetPlan(tt.plan)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ComputeChannelFlags(p).Enabled())
		})
	}
}

func TestChannelFlags_AllowsUnknownChannel(t *testing.T) {
	f := ChannelFlags{EstablishmentPage: true, Homepage: true, Newsletter: true, Social: true}
	assert.False(t, f.Allows(Channel("billboard")))
}

func TestParseChannel(t *testing.T) {
	c, err := ParseChannel("newsletter")
	require.NoError(t, err)
	assert.Equal(t, ChannelNewsletter, c)

	_, err = ParseChannel("Newsletter")
	assert.Equal(t, EINVALID, ErrorCode(err))
}
