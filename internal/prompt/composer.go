// Package prompt builds the system instruction sent to the generative model,
// personalized from the caller's profile when one is known.
package prompt

import (
	"fmt"
	"strings"
)

// Composer renders system instructions in a single locale
type Composer struct {
	locale Locale
}

// NewComposer returns a composer for the given locale tag, falling back to
// Traditional Chinese for unknown tags
func NewComposer(tag string) *Composer {
	l, ok := LookupLocale(tag)
	if !ok {
		l = TraditionalChinese
	}
	return &Composer{locale: l}
}

// Locale returns the tag the composer renders in
func (c *Composer) Locale() string {
	return c.locale.Tag
}

// Base returns the instruction used for anonymous callers
func (c *Composer) Base() string {
	return c.locale.Base
}

// Compose returns the base instruction, followed by the profile block and
// guidance paragraphs when profile is non-nil
func (c *Composer) Compose(profile *Profile) string {
	if profile == nil {
		return c.locale.Base
	}

	var b strings.Builder
	b.WriteString(c.locale.Base)
	b.WriteString("\n\n")
	b.WriteString(c.locale.ProfileHeader)
	b.WriteString("\n")
	b.WriteString(strings.Join(c.profileLines(profile), "\n"))

	for _, g := range c.guidance(profile) {
		b.WriteString("\n\n")
		b.WriteString(g)
	}

	b.WriteString("\n\n")
	b.WriteString(c.locale.Closing)
	return b.String()
}

// Resolve returns explicit when set, otherwise the composed instruction
func (c *Composer) Resolve(explicit string, profile *Profile) string {
	if strings.TrimSpace(explicit) != "" {
		return explicit
	}
	return c.Compose(profile)
}

func (c *Composer) profileLines(p *Profile) []string {
	l := c.locale
	lines := []string{l.UsernameLabel + p.Username}

	if p.Gender != nil {
		label, ok := l.Genders[*p.Gender]
		if !ok {
			label = string(*p.Gender)
		}
		lines = append(lines, l.GenderLabel+label)
	}
	if p.Age != nil {
		lines = append(lines, l.AgeLabel+fmt.Sprintf(l.AgeFormat, *p.Age))
	}
	if p.VisionLevel != nil {
		lines = append(lines, l.VisionLabel+c.visionLabel(*p.VisionLevel))
	}
	if len(p.ChronicDiseases) > 0 {
		lines = append(lines, l.DiseasesLabel+strings.Join(p.ChronicDiseases, l.DiseasesSep))
	}
	if p.Others != "" {
		lines = append(lines, l.OthersLabel+p.Others)
	}
	return lines
}

func (c *Composer) visionLabel(level int) string {
	if level < MinVisionLevel || level > MaxVisionLevel {
		return fmt.Sprintf(c.locale.UnknownVision, level)
	}
	return c.locale.VisionLevels[level]
}

// guidance returns at most one vision paragraph, one age paragraph and one
// health paragraph, in that order
func (c *Composer) guidance(p *Profile) []string {
	l := c.locale
	var out []string

	if p.VisionLevel != nil {
		switch v := *p.VisionLevel; {
		case v >= 4:
			out = append(out, l.SevereVision)
		case v >= 2:
			out = append(out, l.ModerateVision)
		case v >= 1:
			out = append(out, l.MildVision)
		}
	}

	if p.Age != nil {
		switch a := *p.Age; {
		case a >= 65:
			out = append(out, l.Elderly)
		case a <= 18:
			out = append(out, l.Minor)
		}
	}

	if p.HasChronicDiseases() {
		out = append(out, l.Health)
	}
	return out
}
