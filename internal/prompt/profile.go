package prompt

// Gender is the self-reported gender of a user
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// Valid reports whether g is one of the known genders
func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	}
	return false
}

// Vision levels run from near-normal vision to total blindness
const (
	MinVisionLevel = 0
	MaxVisionLevel = 5
)

// Profile is the read-only snapshot of a user used to personalize the
// system instruction. Nil pointers mean the field is unknown.
type Profile struct {
	Username        string
	Gender          *Gender
	Age             *int
	VisionLevel     *int
	ChronicDiseases []string
	Others          string
}

// HasChronicDiseases reports whether any chronic disease is recorded
func (p *Profile) HasChronicDiseases() bool {
	return p != nil && len(p.ChronicDiseases) > 0
}
