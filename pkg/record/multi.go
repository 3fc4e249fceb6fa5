package record

import "github.com/huyongqii/green-energy/pkg/models"

// Recorder matches power.Recorder without importing it
type Recorder interface {
	Record(rec models.SystemRecord) error
}

// Multi fans one snapshot out to several recorders (CSV file, SQLite
// store, metrics exporter, forecast window). The first error wins but
// every recorder still sees the row.
type Multi []Recorder

// Record implements Recorder
func (m Multi) Record(rec models.SystemRecord) error {
	var firstErr error
	for _, r := range m {
		if err := r.Record(rec); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
