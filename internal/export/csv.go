package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/emilianohg/umbrella/internal/models"
)

// WriteCSV writes the allocation table: kind,name,hours,percentage.
func WriteCSV(w io.Writer, fr models.FinalReport) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"kind", "name", "hours", "percentage"}); err != nil {
		return err
	}
	for _, r := range Rows(fr) {
		rec := []string{r.Kind, r.Name, formatFloat(r.Hours), formatFloat(r.Percentage)}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
