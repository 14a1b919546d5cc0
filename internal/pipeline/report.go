package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/cityatlas/resolver-cli/internal/model"
)

// Debug carries the per-record audit data downstream consumers use to
// re-diagnose a resolution without rerunning the pipeline.
type Debug struct {
	AddressesTried []string               `json:"addresses_tried"`
	RadiiTried     []float64              `json:"radii_tried,omitempty"`
	TopCandidates  []model.CandidateDebug `json:"top_candidates,omitempty"`
}

// Entry is one record's resolution in the report.
type Entry struct {
	ID         string                `json:"id"`
	Status     model.FootprintStatus `json:"status"`
	Strategy   string                `json:"strategy,omitempty"`
	Confidence model.Confidence      `json:"confidence,omitempty"`
	ObjectRefs []model.OSMRef        `json:"object_refs,omitempty"`
	Geometry   json.RawMessage       `json:"geometry"`
	Geocode    GeocodeSummary        `json:"geocode"`
	Debug      Debug                 `json:"debug"`
}

// GeocodeSummary is the geocoding half of an entry.
type GeocodeSummary struct {
	Lat         *float64 `json:"lat,omitempty"`
	Lon         *float64 `json:"lon,omitempty"`
	QueryUsed   string   `json:"query_used,omitempty"`
	DisplayName string   `json:"display_name,omitempty"`
	Category    string   `json:"category,omitempty"`
	AddressType string   `json:"address_type,omitempty"`
}

// SharedFootprint flags two or more records resolving to identical object
// references: a known data-quality gap left to manual override.
type SharedFootprint struct {
	ObjectRefs []model.OSMRef `json:"object_refs"`
	RecordIDs  []string       `json:"record_ids"`
}

// Report is the pipeline's primary downstream artifact. Entries stay in
// input order, and the document contains no timestamps or random values, so
// reruns over an unchanged cache are byte-identical.
type Report struct {
	Entries          []Entry           `json:"entries"`
	CountsByStatus   map[string]int    `json:"counts_by_status"`
	SharedFootprints []SharedFootprint `json:"shared_footprints,omitempty"`
}

// NewReport creates an empty report.
func NewReport() *Report {
	return &Report{CountsByStatus: make(map[string]int)}
}

// Add appends one record's resolutions.
func (r *Report) Add(rec model.Record, geo model.GeocodeResolution, fp model.FootprintResolution) {
	geometry := fp.Geometry
	if geometry == nil {
		geometry = json.RawMessage("null")
	}

	r.Entries = append(r.Entries, Entry{
		ID:         rec.ID,
		Status:     fp.Status,
		Strategy:   fp.Strategy,
		Confidence: fp.Confidence,
		ObjectRefs: fp.ObjectRefs,
		Geometry:   geometry,
		Geocode: GeocodeSummary{
			Lat:         geo.Lat,
			Lon:         geo.Lon,
			QueryUsed:   geo.QueryUsed,
			DisplayName: geo.DisplayName,
			Category:    geo.Category,
			AddressType: geo.AddressType,
		},
		Debug: Debug{
			AddressesTried: geo.QueriesTried,
			RadiiTried:     fp.RadiiTried,
			TopCandidates:  fp.TopCandidates,
		},
	})
	r.CountsByStatus[string(fp.Status)]++
}

// Finalize computes the cross-record sections. Shared-footprint groups are
// listed in first-seen entry order.
func (r *Report) Finalize() {
	byRefs := make(map[string][]string)
	var order []string

	for _, e := range r.Entries {
		if len(e.ObjectRefs) == 0 {
			continue
		}
		key := refsKey(e.ObjectRefs)
		if _, seen := byRefs[key]; !seen {
			order = append(order, key)
		}
		byRefs[key] = append(byRefs[key], e.ID)
	}

	r.SharedFootprints = nil
	for _, key := range order {
		ids := byRefs[key]
		if len(ids) < 2 {
			continue
		}
		r.SharedFootprints = append(r.SharedFootprints, SharedFootprint{
			ObjectRefs: refsFromKey(key),
			RecordIDs:  ids,
		})
	}
}

// Write marshals the report to path as indented JSON.
func (r *Report) Write(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return eris.Wrap(err, "report: marshal")
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return eris.Wrap(err, "report: write")
	}
	return nil
}

// Summary returns a one-line counts overview for logging.
func (r *Report) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d records", len(r.Entries))
	for _, status := range []model.FootprintStatus{
		model.StatusMatched,
		model.StatusMatchedPartsMerge,
		model.StatusAmbiguous,
		model.StatusNotFound,
		model.StatusInvalid,
		model.StatusSkippedNoCoords,
	} {
		if n := r.CountsByStatus[string(status)]; n > 0 {
			fmt.Fprintf(&b, ", %s=%d", status, n)
		}
	}
	return b.String()
}

// refsKey produces an order-independent key: two records covering the same
// objects group together even when their rankings listed the refs
// differently.
func refsKey(refs []model.OSMRef) string {
	sorted := append([]model.OSMRef(nil), refs...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Type != sorted[j].Type {
			return sorted[i].Type < sorted[j].Type
		}
		return sorted[i].ID < sorted[j].ID
	})
	parts := make([]string, len(sorted))
	for i, ref := range sorted {
		parts[i] = fmt.Sprintf("%s/%d", ref.Type, ref.ID)
	}
	return strings.Join(parts, ",")
}

func refsFromKey(key string) []model.OSMRef {
	var refs []model.OSMRef
	for _, part := range strings.Split(key, ",") {
		i := strings.IndexByte(part, '/')
		if i <= 0 {
			continue
		}
		var id int64
		if _, err := fmt.Sscanf(part[i+1:], "%d", &id); err != nil {
			continue
		}
		refs = append(refs, model.OSMRef{Type: part[:i], ID: id})
	}
	return refs
}
