package metrics

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/sublinear-mpc/matching/pkg/errors"
	"github.com/sublinear-mpc/matching/pkg/writer"
)

// jsonWriter is a generic typed JSON writer instantiated over the run
// metrics artifact's shape.
var jsonWriter = writer.NewPrettyJSONWriter[RunMetrics]()

// WriteJSON serialises m as pretty-printed JSON to w.
func WriteJSON(m RunMetrics, w io.Writer) error {
	if err := jsonWriter.Write(m, w); err != nil {
		return errors.Wrap(errors.CodeIOError, "writing metrics_run.json", err)
	}
	return nil
}

// csvColumns are the per-phase scalar columns, in the schema's field
// order. There is no CSV-writing library anywhere in the dependency
// surface this module draws from (encoding/json's generic writer covers
// the rest of the artifact), so this is a plain encoding/csv pass.
var csvColumns = []string{
	"phase_idx", "active_edges", "matching_size_new", "p",
	"deg_min", "deg_max", "deg_mean", "deg_p95",
	"stall_rate",
	"ball_max", "ball_mean", "ball_p95",
	"mis_selection_rate",
	"max_comm_bytes", "max_comm_items",
	"wall_micros",
}

// WriteCSV serialises the per-phase scalar columns of m as CSV to w.
func WriteCSV(m RunMetrics, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvColumns); err != nil {
		return errors.Wrap(errors.CodeIOError, "writing metrics csv header", err)
	}
	for _, ph := range m.Phases {
		row := []string{
			strconv.Itoa(ph.PhaseIdx),
			strconv.FormatInt(ph.ActiveEdges, 10),
			strconv.Itoa(ph.MatchingSizeNew),
			formatFloat(ph.P),
			strconv.FormatInt(int64(ph.Deg.Min), 10),
			strconv.FormatInt(int64(ph.Deg.Max), 10),
			formatFloat(ph.Deg.Mean),
			formatFloat(ph.Deg.P95),
			formatFloat(ph.StallRate),
			strconv.FormatInt(int64(ph.Ball.Max), 10),
			formatFloat(ph.Ball.Mean),
			formatFloat(ph.Ball.P95),
			formatFloat(ph.MISSelectionRate),
			strconv.FormatInt(ph.MaxCommBytes, 10),
			strconv.FormatInt(ph.MaxCommItems, 10),
			strconv.FormatInt(ph.WallMicros, 10),
		}
		if err := cw.Write(row); err != nil {
			return errors.Wrap(errors.CodeIOError, fmt.Sprintf("writing metrics csv row for phase %d", ph.PhaseIdx), err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.Wrap(errors.CodeIOError, "flushing metrics csv", err)
	}
	return nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
