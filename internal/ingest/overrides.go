package ingest

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/cityatlas/resolver-cli/internal/model"
)

var overrideColumns = []string{"record_id", "osm_type", "osm_id"}

// ReadOverrides loads the manual override table keyed by record id. An
// override takes absolute precedence over any computed footprint match.
func ReadOverrides(path string) (map[string]model.Override, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: open overrides")
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, eris.Wrap(err, "ingest: read overrides header")
	}
	cols, err := columnIndex(header, overrideColumns)
	if err != nil {
		return nil, err
	}
	noteIdx, hasNote := cols["note"]

	overrides := make(map[string]model.Override)
	line := 1
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: read overrides row %d", line+1)
		}
		line++

		ov := model.Override{
			RecordID: field(row, cols["record_id"]),
			OSMType:  field(row, cols["osm_type"]),
		}
		if ov.RecordID == "" {
			return nil, eris.Errorf("ingest: overrides row %d: empty record_id", line)
		}
		if ov.OSMType != "way" && ov.OSMType != "relation" {
			return nil, eris.Errorf("ingest: overrides row %d: osm_type must be way or relation, got %q", line, ov.OSMType)
		}
		id, err := strconv.ParseInt(field(row, cols["osm_id"]), 10, 64)
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: overrides row %d: osm_id", line)
		}
		ov.OSMID = id
		if hasNote {
			ov.Note = field(row, noteIdx)
		}

		overrides[ov.RecordID] = ov
	}

	return overrides, nil
}
