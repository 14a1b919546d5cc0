// Package ingest reads the pipeline's input files: canonical records and
// manual overrides. Contract violations here are fatal; everything past this
// point degrades per record instead.
package ingest

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"

	"github.com/cityatlas/resolver-cli/internal/model"
)

var recordColumns = []string{"id", "name", "raw_address", "primary_address", "address_parts"}

// ReadRecords loads canonical records from a CSV produced by the upstream
// normalization stage. The address_parts column holds a JSON array of parsed
// segments and may be empty.
func ReadRecords(path string) ([]model.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: open records")
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, eris.Wrap(err, "ingest: read records header")
	}
	cols, err := columnIndex(header, recordColumns)
	if err != nil {
		return nil, err
	}

	var records []model.Record
	seen := make(map[string]struct{})
	line := 1
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: read records row %d", line+1)
		}
		line++

		rec := model.Record{
			ID:             field(row, cols["id"]),
			Name:           field(row, cols["name"]),
			RawAddress:     field(row, cols["raw_address"]),
			PrimaryAddress: field(row, cols["primary_address"]),
		}
		if rec.ID == "" {
			return nil, eris.Errorf("ingest: records row %d: empty id", line)
		}
		if _, dup := seen[rec.ID]; dup {
			return nil, eris.Errorf("ingest: records row %d: duplicate id %q", line, rec.ID)
		}
		seen[rec.ID] = struct{}{}

		if partsJSON := field(row, cols["address_parts"]); partsJSON != "" {
			if err := json.Unmarshal([]byte(partsJSON), &rec.AddressParts); err != nil {
				return nil, eris.Wrapf(err, "ingest: records row %d: address_parts", line)
			}
		}

		records = append(records, rec)
	}

	return records, nil
}

// columnIndex maps required column names to their positions, failing on any
// missing column.
func columnIndex(header, required []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[h] = i
	}
	for _, col := range required {
		if _, ok := idx[col]; !ok {
			return nil, eris.Errorf("ingest: missing required column %q", col)
		}
	}
	return idx, nil
}

func field(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
