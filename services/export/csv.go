package exportsvc

import (
	"encoding/csv"
	"io"

	"github.com/pkg/errors"

	"github.com/trezcool/edufee/core/report"
)

// WriteCSV writes the report headers and rows, followed by its summary.
func WriteCSV(w io.Writer, rep report.Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(rep.Headers); err != nil {
		return errors.Wrap(err, "writing csv headers")
	}
	if err := cw.WriteAll(rep.Rows); err != nil {
		return errors.Wrap(err, "writing csv rows")
	}
	if len(rep.Headers) > 0 {
		summary := make([]string, len(rep.Headers))
		summary[0] = rep.Summary.Label
		summary[len(summary)-1] = rep.Summary.Value
		if err := cw.Write(summary); err != nil {
			return errors.Wrap(err, "writing csv summary")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flushing csv")
}
