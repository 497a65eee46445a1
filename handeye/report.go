package handeye

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// ErrMarker replaces every statistic of a method that produced no result.
const ErrMarker = "ERR"

var tableHeader = table.Row{"method", "mean", "median", "rmse", "p95", "max"}

// MetricRow formats one method's statistics with four decimals.
func MetricRow(method string, s ErrorStatistics) []string {
	return []string{
		method,
		fmt.Sprintf("%.4f", s.Mean),
		fmt.Sprintf("%.4f", s.Median),
		fmt.Sprintf("%.4f", s.RMSE),
		fmt.Sprintf("%.4f", s.P95),
		fmt.Sprintf("%.4f", s.Max),
	}
}

// ErrRow is the row of a failed method.
func ErrRow(method string) []string {
	return []string{method, ErrMarker, ErrMarker, ErrMarker, ErrMarker, ErrMarker}
}

// FormatTable renders rows under the method/mean/median/rmse/p95/max header.
func FormatTable(rows [][]string) string {
	t := table.NewWriter()
	t.AppendHeader(tableHeader)
	t.Style().Format.Header = text.FormatDefault
	for _, r := range rows {
		row := make(table.Row, len(r))
		for i, cell := range r {
			row[i] = cell
		}
		t.AppendRow(row)
	}
	return t.Render()
}

// StatsRows builds one row per method from a stats mapping, in the given
// method order. Methods mapped to nil get ERR rows.
func StatsRows(order []string, stats map[string]*ErrorStatistics) [][]string {
	rows := make([][]string, 0, len(order))
	for _, m := range order {
		if s := stats[m]; s != nil {
			rows = append(rows, MetricRow(m, *s))
		} else {
			rows = append(rows, ErrRow(m))
		}
	}
	return rows
}

// WriteBatchReport writes the translation and rotation tables of a batch run.
func WriteBatchReport(w io.Writer, res *BatchResult, unit string) error {
	order := make([]string, len(res.Outcomes))
	for i, o := range res.Outcomes {
		order[i] = o.Method
	}
	return writeReport(w, order, res.TranslationStats(), res.RotationStats(), unit)
}

// WriteResultReport writes the translation and rotation tables of a single
// method run.
func WriteResultReport(w io.Writer, res *CalibrationResult, unit string) error {
	order := []string{res.Method}
	return writeReport(w, order,
		map[string]*ErrorStatistics{res.Method: &res.Translation},
		map[string]*ErrorStatistics{res.Method: &res.Rotation},
		unit)
}

func writeReport(w io.Writer, order []string, trans, rot map[string]*ErrorStatistics, unit string) error {
	if unit == "" {
		unit = "mm"
	}
	_, err := fmt.Fprintf(w, "\nTranslation errors (%s):\n%s\n\nRotation errors (deg):\n%s\n",
		unit, FormatTable(StatsRows(order, trans)), FormatTable(StatsRows(order, rot)))
	return err
}

// FormatTransform prints a transform as four bracketed rows with four
// decimals each, preceded by "name =".
func FormatTransform(name string, t Transform) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s =\n", name)
	for i := 0; i < 4; i++ {
		cells := make([]string, 4)
		for j := 0; j < 4; j++ {
			cells[j] = fmt.Sprintf("%.4f", t.At(i, j))
		}
		fmt.Fprintf(&sb, "[ %s ]\n", strings.Join(cells, " "))
	}
	return sb.String()
}
