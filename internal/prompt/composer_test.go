package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func genderPtr(g Gender) *Gender { return &g }

func TestComposeWithoutProfile(t *testing.T) {
	c := NewComposer("zh-TW")

	got := c.Compose(nil)

	assert.Equal(t, TraditionalChinese.Base, got)
	assert.NotContains(t, got, TraditionalChinese.ProfileHeader)
}

func TestComposeRendersProfileBlock(t *testing.T) {
	c := NewComposer("zh-TW")
	p := &Profile{
		Username:        "amy",
		Gender:          genderPtr(GenderFemale),
		Age:             intPtr(30),
		VisionLevel:     intPtr(3),
		ChronicDiseases: []string{"糖尿病", "高血壓"},
		Others:          "素食",
	}

	got := c.Compose(p)

	assert.True(t, strings.HasPrefix(got, TraditionalChinese.Base))
	assert.Contains(t, got, "使用者名稱：amy\n性別：女性\n年齡：30歲\n視力狀況：重度視障\n慢性病：糖尿病、高血壓\n其他資訊：素食")
	assert.True(t, strings.HasSuffix(got, TraditionalChinese.Closing))
}

func TestComposeTotalBlindnessWithDiseases(t *testing.T) {
	c := NewComposer("zh-TW")
	p := &Profile{
		Username:        "bob",
		VisionLevel:     intPtr(5),
		ChronicDiseases: []string{"diabetes"},
	}

	got := c.Compose(p)

	vision := strings.Index(got, TraditionalChinese.SevereVision)
	health := strings.Index(got, TraditionalChinese.Health)
	block := strings.Index(got, TraditionalChinese.ProfileHeader)
	require.NotEqual(t, -1, vision)
	require.NotEqual(t, -1, health)
	assert.Less(t, block, vision)
	assert.Less(t, vision, health)

	assert.Contains(t, got, "完全失明")
	assert.NotContains(t, got, TraditionalChinese.MildVision)
	assert.NotContains(t, got, TraditionalChinese.ModerateVision)
}

func TestComposeGuidanceBands(t *testing.T) {
	l := TraditionalChinese
	tests := []struct {
		name    string
		profile *Profile
		want    []string
		absent  []string
	}{
		{
			name:    "vision zero adds no vision guidance",
			profile: &Profile{Username: "u", VisionLevel: intPtr(0)},
			absent:  []string{l.SevereVision, l.ModerateVision, l.MildVision},
		},
		{
			name:    "mild",
			profile: &Profile{Username: "u", VisionLevel: intPtr(1)},
			want:    []string{l.MildVision},
			absent:  []string{l.ModerateVision, l.SevereVision},
		},
		{
			name:    "moderate upper bound",
			profile: &Profile{Username: "u", VisionLevel: intPtr(3)},
			want:    []string{l.ModerateVision},
			absent:  []string{l.MildVision, l.SevereVision},
		},
		{
			name:    "severe",
			profile: &Profile{Username: "u", VisionLevel: intPtr(4)},
			want:    []string{l.SevereVision},
		},
		{
			name:    "elderly",
			profile: &Profile{Username: "u", Age: intPtr(65)},
			want:    []string{l.Elderly},
			absent:  []string{l.Minor},
		},
		{
			name:    "minor",
			profile: &Profile{Username: "u", Age: intPtr(18)},
			want:    []string{l.Minor},
			absent:  []string{l.Elderly},
		},
		{
			name:    "adult",
			profile: &Profile{Username: "u", Age: intPtr(40)},
			absent:  []string{l.Minor, l.Elderly, l.Health},
		},
	}

	c := NewComposer(l.Tag)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Compose(tt.profile)
			for _, w := range tt.want {
				assert.Contains(t, got, w)
			}
			for _, a := range tt.absent {
				assert.NotContains(t, got, a)
			}
		})
	}
}

func TestComposeOrderAcrossCategories(t *testing.T) {
	l := English
	c := NewComposer(l.Tag)

	got := c.Compose(&Profile{
		Username:        "carol",
		Age:             intPtr(70),
		VisionLevel:     intPtr(2),
		ChronicDiseases: []string{"asthma"},
	})

	v := strings.Index(got, l.ModerateVision)
	a := strings.Index(got, l.Elderly)
	h := strings.Index(got, l.Health)
	assert.True(t, v < a && a < h, "vision, age, health order")
}

func TestResolvePrefersExplicit(t *testing.T) {
	c := NewComposer("en")

	assert.Equal(t, "be brief", c.Resolve("be brief", &Profile{Username: "x"}))
	assert.Equal(t, English.Base, c.Resolve("  ", nil))
}

func TestUnknownLocaleFallsBack(t *testing.T) {
	c := NewComposer("fr")
	assert.Equal(t, "zh-TW", c.Locale())
}

func TestOutOfRangeVisionLabel(t *testing.T) {
	c := NewComposer("zh-TW")
	got := c.Compose(&Profile{Username: "u", VisionLevel: intPtr(9)})
	assert.Contains(t, got, "視力等級 9")
}
