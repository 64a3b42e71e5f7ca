package cohort

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Plausible age bounds. Entries outside these are kept but scored with a
// neutral age sub-score instead of being excluded from matching.
const (
	MinPlausibleAge = 0
	MaxPlausibleAge = 120
)

// PlausibleAge reports whether the given age falls into the accepted range.
func PlausibleAge(age int) bool {
	return age >= MinPlausibleAge && age <= MaxPlausibleAge
}

// Demographics holds the categorical attributes compared during
// socio-economic scoring. Empty values mean the attribute is absent.
type Demographics struct {
	Education  string `json:"education,omitempty" mapstructure:"education"`
	Occupation string `json:"occupation_category,omitempty" mapstructure:"occupation_category"`
	Income     string `json:"income_bracket,omitempty" mapstructure:"income_bracket"`
	Marital    string `json:"marital_status,omitempty" mapstructure:"marital_status"`
}

// Profile is a synthetic demographic entry. Immutable once loaded.
type Profile struct {
	ID           string         `json:"id"`
	Age          int            `json:"age"`
	Demographics Demographics   `json:"demographics"`
	Attributes   map[string]any `json:"attributes,omitempty"`
}

// ProfileAttributes is the typed view of the free-form attribute tree. Fields
// absent from the tree keep their zero value.
type ProfileAttributes struct {
	Locale        string   `mapstructure:"locale"`
	Region        string   `mapstructure:"region"`
	HouseholdSize int      `mapstructure:"household_size"`
	Interests     []string `mapstructure:"interests"`
}

// DecodeAttributes decodes the free-form attribute tree into its typed view.
func (p *Profile) DecodeAttributes() (*ProfileAttributes, error) {
	attrs := &ProfileAttributes{}
	if p.Attributes == nil {
		return attrs, nil
	}

	if err := mapstructure.Decode(p.Attributes, attrs); err != nil {
		return nil, fmt.Errorf("decoding attributes for profile %q: %w", p.ID, err)
	}

	return attrs, nil
}

// Profiles is an ordered collection of profiles.
type Profiles struct {
	Items []*Profile
}

func (p *Profiles) Len() int {
	return len(p.Items)
}

func (p *Profiles) IDs() []string {
	ids := make([]string, 0, len(p.Items))

	for _, item := range p.Items {
		ids = append(ids, item.ID)
	}

	return ids
}

func (p *Profiles) FindByID(id string) *Profile {
	for _, item := range p.Items {
		if item.ID == id {
			return item
		}
	}

	return nil
}
