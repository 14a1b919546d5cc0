package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cityatlas/resolver-cli/internal/model"
)

func matchedEntry(id string, refs ...model.OSMRef) (model.Record, model.GeocodeResolution, model.FootprintResolution) {
	lat, lon := 56.95, 24.10
	rec := model.Record{ID: id, PrimaryAddress: "Brīvības iela 10"}
	geo := model.GeocodeResolution{RecordID: id, Lat: &lat, Lon: &lon, QueriesTried: []string{"q"}}
	fp := model.FootprintResolution{
		RecordID:   id,
		Status:     model.StatusMatched,
		Strategy:   model.StrategyContainment,
		Confidence: model.ConfidenceMedium,
		ObjectRefs: refs,
		Geometry:   json.RawMessage(`{"type":"Polygon"}`),
	}
	return rec, geo, fp
}

func TestReport_AddNullGeometry(t *testing.T) {
	r := NewReport()
	rec := model.Record{ID: "r1"}
	r.Add(rec, model.GeocodeResolution{RecordID: "r1"}, model.FootprintResolution{
		RecordID: "r1",
		Status:   model.StatusSkippedNoCoords,
	})

	require.Len(t, r.Entries, 1)
	assert.Equal(t, json.RawMessage("null"), r.Entries[0].Geometry)

	data, err := json.Marshal(r.Entries[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), `"geometry":null`)
}

func TestReport_CountsByStatus(t *testing.T) {
	r := NewReport()
	r.Add(matchedEntry("r1", model.OSMRef{Type: "way", ID: 1}))
	r.Add(matchedEntry("r2", model.OSMRef{Type: "way", ID: 2}))
	r.Add(model.Record{ID: "r3"}, model.GeocodeResolution{}, model.FootprintResolution{Status: model.StatusNotFound})

	assert.Equal(t, 2, r.CountsByStatus["matched"])
	assert.Equal(t, 1, r.CountsByStatus["not_found"])
}

func TestReport_SharedFootprints(t *testing.T) {
	r := NewReport()
	r.Add(matchedEntry("r1", model.OSMRef{Type: "way", ID: 100}))
	r.Add(matchedEntry("r2", model.OSMRef{Type: "way", ID: 200}))
	r.Add(matchedEntry("r3", model.OSMRef{Type: "way", ID: 100}))
	r.Finalize()

	require.Len(t, r.SharedFootprints, 1)
	assert.Equal(t, []model.OSMRef{{Type: "way", ID: 100}}, r.SharedFootprints[0].ObjectRefs)
	assert.Equal(t, []string{"r1", "r3"}, r.SharedFootprints[0].RecordIDs)
}

func TestReport_SharedFootprints_MultiRefGroups(t *testing.T) {
	refs := []model.OSMRef{{Type: "way", ID: 1}, {Type: "way", ID: 2}}
	r := NewReport()
	r.Add(matchedEntry("r1", refs...))
	r.Add(matchedEntry("r2", refs...))
	// Same objects listed in a different ranking order still cover the same
	// footprint.
	r.Add(matchedEntry("r3", refs[1], refs[0]))
	r.Finalize()

	require.Len(t, r.SharedFootprints, 1)
	assert.Equal(t, refs, r.SharedFootprints[0].ObjectRefs)
	assert.Equal(t, []string{"r1", "r2", "r3"}, r.SharedFootprints[0].RecordIDs)
}

func TestReport_SharedFootprints_NoRefsIgnored(t *testing.T) {
	r := NewReport()
	r.Add(model.Record{ID: "r1"}, model.GeocodeResolution{}, model.FootprintResolution{Status: model.StatusNotFound})
	r.Add(model.Record{ID: "r2"}, model.GeocodeResolution{}, model.FootprintResolution{Status: model.StatusNotFound})
	r.Finalize()

	assert.Empty(t, r.SharedFootprints)
}

func TestReport_FinalizeIdempotent(t *testing.T) {
	r := NewReport()
	r.Add(matchedEntry("r1", model.OSMRef{Type: "way", ID: 100}))
	r.Add(matchedEntry("r2", model.OSMRef{Type: "way", ID: 100}))
	r.Finalize()
	r.Finalize()

	assert.Len(t, r.SharedFootprints, 1)
}

func TestReport_Write(t *testing.T) {
	r := NewReport()
	r.Add(matchedEntry("r1", model.OSMRef{Type: "way", ID: 100}))
	r.Finalize()

	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, r.Write(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, json.Valid(data))
	assert.Equal(t, byte('\n'), data[len(data)-1])

	var decoded Report
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Len(t, decoded.Entries, 1)
}

func TestReport_Summary(t *testing.T) {
	r := NewReport()
	r.Add(matchedEntry("r1", model.OSMRef{Type: "way", ID: 1}))
	r.Add(model.Record{ID: "r2"}, model.GeocodeResolution{}, model.FootprintResolution{Status: model.StatusNotFound})

	s := r.Summary()
	assert.Contains(t, s, "2 records")
	assert.Contains(t, s, "matched=1")
	assert.Contains(t, s, "not_found=1")
}

func TestRefsKey_OrderIndependent(t *testing.T) {
	a := []model.OSMRef{{Type: "way", ID: 100}, {Type: "relation", ID: 2000}}
	b := []model.OSMRef{{Type: "relation", ID: 2000}, {Type: "way", ID: 100}}
	assert.Equal(t, refsKey(a), refsKey(b))

	// The key roundtrips into sorted refs: type ascending, then id.
	want := []model.OSMRef{{Type: "relation", ID: 2000}, {Type: "way", ID: 100}}
	assert.Equal(t, want, refsFromKey(refsKey(a)))
}
