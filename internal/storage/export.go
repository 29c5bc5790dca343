package storage

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
)

type ExportData struct {
	Metadata RunMetadata          `json:"metadata"`
	Columns  map[string][]float64 `json:"columns"`
}

func WriteCSV(w io.Writer, tbl *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tbl.Header); err != nil {
		return err
	}
	record := make([]string, len(tbl.Header))
	for _, row := range tbl.Rows {
		for j, v := range row {
			record[j] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := cw.Write(record[:len(row)]); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportJSON writes a record as one JSON document with column arrays.
func ExportJSON(w io.Writer, meta *RunMetadata, tbl *Table) error {
	data := ExportData{
		Metadata: *meta,
		Columns:  make(map[string][]float64, len(tbl.Header)),
	}
	for _, name := range tbl.Header {
		data.Columns[name] = tbl.Column(name)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
