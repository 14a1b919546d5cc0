// Package model defines the data types shared across the resolution pipeline.
package model

import "strings"

// AddressPart is one machine-parsed segment of a record's raw address.
type AddressPart struct {
	Raw         string `json:"raw"`
	Normalized  string `json:"normalized"`
	Street      string `json:"street"`
	HouseNumber string `json:"house_number"`
}

// Record is a canonical building entry produced by the upstream
// normalization stage. It is immutable input to the resolution pipeline.
type Record struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	RawAddress     string        `json:"raw_address"`
	PrimaryAddress string        `json:"primary_address"`
	AddressParts   []AddressPart `json:"address_parts,omitempty"`
}

// AddressVariants returns every known address form for the record: the
// primary address, normalized and raw parts, and the segments of the raw
// multi-address string. Used by the footprint matcher for address-bonus
// comparison against candidate tags.
func (r Record) AddressVariants() []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		key := strings.ToLower(s)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}

	add(r.PrimaryAddress)
	for _, p := range r.AddressParts {
		add(p.Normalized)
		add(p.Raw)
	}
	for _, seg := range strings.Split(r.RawAddress, "/") {
		add(seg)
	}
	return out
}

// Override is a manually supplied object reference that takes absolute
// precedence over computed footprint matches.
type Override struct {
	RecordID string `json:"record_id"`
	OSMType  string `json:"osm_type"`
	OSMID    int64  `json:"osm_id"`
	Note     string `json:"note,omitempty"`
}

// OSMRef identifies a single element in the spatial dataset.
type OSMRef struct {
	Type string `json:"type"`
	ID   int64  `json:"id"`
}
