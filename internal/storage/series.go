package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/san-kum/mdsim/internal/engine"
)

var seriesHeader = []string{"time", "kinetic", "potential", "total", "temperature"}

func WriteSeriesCSV(w io.Writer, s engine.Series) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(seriesHeader); err != nil {
		return err
	}
	for i := range s.Time {
		row := make([]string, 0, len(seriesHeader))
		for _, v := range []float64{s.Time[i], s.Kinetic[i], s.Potential[i], s.Total[i], s.Temperature[i]} {
			row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func ReadSeriesCSV(r io.Reader) (engine.Series, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(seriesHeader)

	records, err := cr.ReadAll()
	if err != nil {
		return engine.Series{}, err
	}
	var s engine.Series
	if len(records) < 2 {
		return s, nil
	}

	cols := []*[]float64{&s.Time, &s.Kinetic, &s.Potential, &s.Total, &s.Temperature}
	for line, record := range records[1:] {
		for c, field := range record {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return engine.Series{}, fmt.Errorf("storage: series line %d: %w", line+2, err)
			}
			*cols[c] = append(*cols[c], v)
		}
	}
	return s, nil
}
