package cohort

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadProfiles reads a profile collection from a JSON array file and
// validates it.
func LoadProfiles(path string) (*Profiles, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading profiles from file %q: %w", path, err)
	}

	var items []*Profile
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parsing profiles from file %q: %w", path, err)
	}

	profiles := &Profiles{Items: items}
	if err := profiles.Validate(); err != nil {
		return nil, fmt.Errorf("validating profiles from file %q: %w", path, err)
	}

	return profiles, nil
}

// LoadRecords reads a record collection from a JSON array file and
// validates it.
func LoadRecords(path string) (*Records, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading records from file %q: %w", path, err)
	}

	var items []*Record
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parsing records from file %q: %w", path, err)
	}

	records := &Records{Items: items}
	if err := records.Validate(); err != nil {
		return nil, fmt.Errorf("validating records from file %q: %w", path, err)
	}

	return records, nil
}

// Validate checks identifier uniqueness across the collection. Implausible
// ages are not rejected here; the scorer substitutes a neutral sub-score for
// them so the entry stays eligible for matching.
func (p *Profiles) Validate() error {
	seen := make(map[string]struct{}, len(p.Items))

	for i, item := range p.Items {
		if item == nil {
			return fmt.Errorf("profile at index %d is null", i)
		}
		if item.ID == "" {
			return fmt.Errorf("profile at index %d has an empty id", i)
		}
		if _, ok := seen[item.ID]; ok {
			return fmt.Errorf("duplicate profile id %q", item.ID)
		}
		seen[item.ID] = struct{}{}
	}

	return nil
}

// Validate checks identifier uniqueness across the collection.
func (r *Records) Validate() error {
	seen := make(map[string]struct{}, len(r.Items))

	for i, item := range r.Items {
		if item == nil {
			return fmt.Errorf("record at index %d is null", i)
		}
		if item.ID == "" {
			return fmt.Errorf("record at index %d has an empty id", i)
		}
		if _, ok := seen[item.ID]; ok {
			return fmt.Errorf("duplicate record id %q", item.ID)
		}
		seen[item.ID] = struct{}{}
	}

	return nil
}
