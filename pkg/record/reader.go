package record

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/huyongqii/green-energy/pkg/models"
)

// ReadCSV loads a snapshot file written by CSVWriter
func ReadCSV(path string) ([]models.SystemRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open record file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read record header: %w", err)
	}
	if len(header) != len(Columns) {
		return nil, fmt.Errorf("unexpected column count %d, want %d", len(header), len(Columns))
	}

	var records []models.SystemRecord
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record row: %w", err)
		}
		rec, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseRow(row []string) (models.SystemRecord, error) {
	var rec models.SystemRecord
	dt, err := time.Parse(DatetimeLayout, row[0])
	if err != nil {
		return rec, fmt.Errorf("parse datetime: %w", err)
	}
	rec.Datetime = dt

	ints := []*int{
		&rec.RunningJobs, &rec.WaitingJobs,
		&rec.NbComputing, &rec.NbIdle, &rec.NbSleeping, &rec.NbPoweredOff,
		&rec.NbSwitchingToSleep, &rec.NbWakingFromSleep,
		&rec.NbPoweringOn, &rec.NbPoweringOff,
	}
	for i, dst := range ints {
		v, err := strconv.Atoi(row[i+1])
		if err != nil {
			return rec, fmt.Errorf("parse %s: %w", Columns[i+1], err)
		}
		*dst = v
	}

	rate, err := strconv.ParseFloat(row[11], 64)
	if err != nil {
		return rec, fmt.Errorf("parse utilization_rate: %w", err)
	}
	rec.UtilizationRate = rate
	return rec, nil
}

// Summary aggregates a run's snapshot series
type Summary struct {
	Rows               int
	AvgUtilization     float64
	MaxUtilization     float64
	AvgRunningJobs     float64
	MaxRunningJobs     int
	AvgWaitingJobs     float64
	MaxWaitingJobs     int
	AvgComputingNodes  float64
	AvgIdleNodes       float64
	AvgSleepingNodes   float64
	AvgPoweredOffNodes float64
}

// Summarize computes the statistics reported by the analyze command
func Summarize(records []models.SystemRecord) Summary {
	var s Summary
	s.Rows = len(records)
	if s.Rows == 0 {
		return s
	}
	for _, rec := range records {
		s.AvgUtilization += rec.UtilizationRate
		if rec.UtilizationRate > s.MaxUtilization {
			s.MaxUtilization = rec.UtilizationRate
		}
		s.AvgRunningJobs += float64(rec.RunningJobs)
		if rec.RunningJobs > s.MaxRunningJobs {
			s.MaxRunningJobs = rec.RunningJobs
		}
		s.AvgWaitingJobs += float64(rec.WaitingJobs)
		if rec.WaitingJobs > s.MaxWaitingJobs {
			s.MaxWaitingJobs = rec.WaitingJobs
		}
		s.AvgComputingNodes += float64(rec.NbComputing)
		s.AvgIdleNodes += float64(rec.NbIdle)
		s.AvgSleepingNodes += float64(rec.NbSleeping)
		s.AvgPoweredOffNodes += float64(rec.NbPoweredOff)
	}
	n := float64(s.Rows)
	s.AvgUtilization /= n
	s.AvgRunningJobs /= n
	s.AvgWaitingJobs /= n
	s.AvgComputingNodes /= n
	s.AvgIdleNodes /= n
	s.AvgSleepingNodes /= n
	s.AvgPoweredOffNodes /= n
	return s
}
