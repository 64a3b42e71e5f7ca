package cohort

import (
	"fmt"
	"sync"

	"github.com/mitchellh/mapstructure"
)

// Record is an extracted clinical entry. Immutable once loaded.
type Record struct {
	ID              string         `json:"id"`
	Age             int            `json:"age"`
	Conditions      []string       `json:"conditions"`
	ClinicalProfile map[string]any `json:"clinical_profile,omitempty"`

	demOnce sync.Once
	dem     Demographics
}

// ClinicalDetails is the typed view of the optional clinical sub-profile.
// Demographic fields mirror the profile side so sparse records can still take
// part in socio-economic scoring.
type ClinicalDetails struct {
	Demographics Demographics `mapstructure:"demographics"`
	Severity     string       `mapstructure:"severity"`
	Onset        string       `mapstructure:"onset"`
	Medications  []string     `mapstructure:"medications"`
}

// DecodeClinical decodes the optional clinical sub-profile into its typed
// view. Fields absent from the sub-profile keep their zero value.
func (r *Record) DecodeClinical() (*ClinicalDetails, error) {
	details := &ClinicalDetails{}
	if r.ClinicalProfile == nil {
		return details, nil
	}

	if err := mapstructure.Decode(r.ClinicalProfile, details); err != nil {
		return nil, fmt.Errorf("decoding clinical profile for record %q: %w", r.ID, err)
	}

	return details, nil
}

// Demographics returns the demographic attributes carried inside the
// clinical sub-profile, decoded once per record. Records with no decodable
// sub-profile yield empty demographics, which the scorer treats as missing
// rather than mismatched.
func (r *Record) Demographics() Demographics {
	r.demOnce.Do(func() {
		details, err := r.DecodeClinical()
		if err != nil {
			return
		}
		r.dem = details.Demographics
	})

	return r.dem
}

// Records is an ordered collection of records.
type Records struct {
	Items []*Record
}

func (r *Records) Len() int {
	return len(r.Items)
}

func (r *Records) IDs() []string {
	ids := make([]string, 0, len(r.Items))

	for _, item := range r.Items {
		ids = append(ids, item.ID)
	}

	return ids
}

func (r *Records) FindByID(id string) *Record {
	for _, item := range r.Items {
		if item.ID == id {
			return item
		}
	}

	return nil
}
