// Package record persists the per-tick system snapshots consumed by the
// analysis tooling and the demand-forecasting pipeline.
package record

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/huyongqii/green-energy/pkg/models"
)

// Columns is the snapshot CSV header, in contract order
var Columns = []string{
	"datetime",
	"running_jobs",
	"waiting_jobs",
	"nb_computing",
	"nb_idle",
	"nb_sleeping",
	"nb_powered_off",
	"nb_switching_to_sleep",
	"nb_waking_from_sleep",
	"nb_powering_on",
	"nb_powering_off",
	"utilization_rate",
}

// DatetimeLayout is how snapshot timestamps are rendered
const DatetimeLayout = "2006-01-02 15:04:05"

// CSVWriter appends snapshot rows to a CSV file, writing the header once
type CSVWriter struct {
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter creates the file (truncating any previous run) and writes
// the header row.
func NewCSVWriter(path string) (*CSVWriter, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create record file: %w", err)
	}
	writer := csv.NewWriter(file)
	if err := writer.Write(Columns); err != nil {
		file.Close()
		return nil, fmt.Errorf("write record header: %w", err)
	}
	return &CSVWriter{file: file, writer: writer}, nil
}

// Record appends one snapshot row
func (w *CSVWriter) Record(rec models.SystemRecord) error {
	row := []string{
		rec.Datetime.Format(DatetimeLayout),
		strconv.Itoa(rec.RunningJobs),
		strconv.Itoa(rec.WaitingJobs),
		strconv.Itoa(rec.NbComputing),
		strconv.Itoa(rec.NbIdle),
		strconv.Itoa(rec.NbSleeping),
		strconv.Itoa(rec.NbPoweredOff),
		strconv.Itoa(rec.NbSwitchingToSleep),
		strconv.Itoa(rec.NbWakingFromSleep),
		strconv.Itoa(rec.NbPoweringOn),
		strconv.Itoa(rec.NbPoweringOff),
		strconv.FormatFloat(rec.UtilizationRate, 'f', 4, 64),
	}
	if err := w.writer.Write(row); err != nil {
		return fmt.Errorf("write record row: %w", err)
	}
	return nil
}

// Close flushes pending rows and closes the file
func (w *CSVWriter) Close() error {
	w.writer.Flush()
	if err := w.writer.Error(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}
