package models

import "time"

// SystemRecord is one snapshot row of cluster state, emitted on every
// periodic tick. The column set is the contract consumed by the analysis
// tooling and the demand-forecasting pipeline.
type SystemRecord struct {
	Time               float64   `json:"time"`
	Datetime           time.Time `json:"datetime"`
	RunningJobs        int       `json:"running_jobs"`
	WaitingJobs        int       `json:"waiting_jobs"`
	NbComputing        int       `json:"nb_computing"`
	NbIdle             int       `json:"nb_idle"`
	NbSleeping         int       `json:"nb_sleeping"`
	NbPoweredOff       int       `json:"nb_powered_off"`
	NbSwitchingToSleep int       `json:"nb_switching_to_sleep"`
	NbWakingFromSleep  int       `json:"nb_waking_from_sleep"`
	NbPoweringOn       int       `json:"nb_powering_on"`
	NbPoweringOff      int       `json:"nb_powering_off"`
	UtilizationRate    float64   `json:"utilization_rate"`
	CurrentPower       float64   `json:"current_power"`
}
