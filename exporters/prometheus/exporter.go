// Package prometheus exports live simulation metrics in the Prometheus
// text format. State is cached from the control loop once per snapshot
// tick, so scrapes never touch simulator state concurrently.
package prometheus

import (
	"bytes"
	"fmt"
	"net/http"
	"sync"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/huyongqii/green-energy/pkg/models"
	"github.com/huyongqii/green-energy/pkg/power"
	"github.com/huyongqii/green-energy/pkg/sched"
)

// SimExporter serves /metrics for a running simulation
type SimExporter struct {
	scheduler  *sched.Scheduler
	controller *power.Controller
	startTime  time.Time

	mu    sync.RWMutex
	last  models.SystemRecord
	stats sched.Stats
	diag  power.Diagnostics
}

// NewSimExporter creates an exporter bound to a scheduler and controller
func NewSimExporter(s *sched.Scheduler, c *power.Controller) *SimExporter {
	return &SimExporter{
		scheduler:  s,
		controller: c,
		startTime:  time.Now(),
	}
}

// Record caches the tick's snapshot together with scheduler counters and
// controller diagnostics; implements record.Recorder. Called from the
// control loop, never from a scrape.
func (e *SimExporter) Record(rec models.SystemRecord) error {
	stats := e.scheduler.Stats()
	diag := e.controller.Diagnostics()

	e.mu.Lock()
	e.last = rec
	e.stats = stats
	e.diag = diag
	e.mu.Unlock()
	return nil
}

// Status is the payload of the /status endpoint
type Status struct {
	Record      models.SystemRecord `json:"record"`
	Stats       sched.Stats         `json:"stats"`
	Diagnostics power.Diagnostics   `json:"diagnostics"`
}

// Status returns the last cached snapshot for the /status endpoint
func (e *SimExporter) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Status{Record: e.last, Stats: e.stats, Diagnostics: e.diag}
}

// ServeHTTP serves Prometheus-compatible metrics at /metrics
func (e *SimExporter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	e.mu.RLock()
	rec := e.last
	stats := e.stats
	diag := e.diag
	e.mu.RUnlock()

	// greensched_nodes{state}
	fmt.Fprintf(w, "# HELP greensched_nodes Nodes per power state\n")
	fmt.Fprintf(w, "# TYPE greensched_nodes gauge\n")
	nodesByState := map[string]int{
		"computing":          rec.NbComputing,
		"idle":               rec.NbIdle,
		"sleeping":           rec.NbSleeping,
		"powered_off":        rec.NbPoweredOff,
		"switching_to_sleep": rec.NbSwitchingToSleep,
		"waking_from_sleep":  rec.NbWakingFromSleep,
		"powering_on":        rec.NbPoweringOn,
		"powering_off":       rec.NbPoweringOff,
	}
	// Always export every state, even at 0
	for _, state := range []string{
		"computing", "idle", "sleeping", "powered_off",
		"switching_to_sleep", "waking_from_sleep", "powering_on", "powering_off",
	} {
		fmt.Fprintf(w, "greensched_nodes{state=\"%s\"} %d\n", state, nodesByState[state])
	}

	fmt.Fprintf(w, "\n# HELP greensched_running_jobs Jobs currently running\n")
	fmt.Fprintf(w, "# TYPE greensched_running_jobs gauge\n")
	fmt.Fprintf(w, "greensched_running_jobs %d\n", rec.RunningJobs)

	fmt.Fprintf(w, "\n# HELP greensched_waiting_jobs Jobs currently waiting\n")
	fmt.Fprintf(w, "# TYPE greensched_waiting_jobs gauge\n")
	fmt.Fprintf(w, "greensched_waiting_jobs %d\n", rec.WaitingJobs)

	fmt.Fprintf(w, "\n# HELP greensched_utilization_rate Computing nodes over total capacity\n")
	fmt.Fprintf(w, "# TYPE greensched_utilization_rate gauge\n")
	fmt.Fprintf(w, "greensched_utilization_rate %.4f\n", rec.UtilizationRate)

	fmt.Fprintf(w, "\n# HELP greensched_power_watts Instantaneous cluster power draw\n")
	fmt.Fprintf(w, "# TYPE greensched_power_watts gauge\n")
	fmt.Fprintf(w, "greensched_power_watts %.2f\n", rec.CurrentPower)

	fmt.Fprintf(w, "\n# HELP greensched_jobs_total Scheduler activity counters\n")
	fmt.Fprintf(w, "# TYPE greensched_jobs_total counter\n")
	fmt.Fprintf(w, "greensched_jobs_total{event=\"submitted\"} %d\n", stats.Submitted)
	fmt.Fprintf(w, "greensched_jobs_total{event=\"scheduled\"} %d\n", stats.Scheduled)
	fmt.Fprintf(w, "greensched_jobs_total{event=\"completed\"} %d\n", stats.Completed)
	fmt.Fprintf(w, "greensched_jobs_total{event=\"rejected\"} %d\n", stats.Rejected)
	fmt.Fprintf(w, "greensched_jobs_total{event=\"killed\"} %d\n", stats.Killed)

	fmt.Fprintf(w, "\n# HELP greensched_stale_acks_total Pstate acks with no matching pending transition\n")
	fmt.Fprintf(w, "# TYPE greensched_stale_acks_total counter\n")
	fmt.Fprintf(w, "greensched_stale_acks_total %d\n", diag.StaleAcks)

	fmt.Fprintf(w, "\n# HELP greensched_pending_transitions Nodes waiting for a pstate ack\n")
	fmt.Fprintf(w, "# TYPE greensched_pending_transitions gauge\n")
	fmt.Fprintf(w, "greensched_pending_transitions %d\n", diag.PendingNodes)

	fmt.Fprintf(w, "\n# HELP greensched_uptime_seconds Wall-clock uptime of the simulator process\n")
	fmt.Fprintf(w, "# TYPE greensched_uptime_seconds gauge\n")
	fmt.Fprintf(w, "greensched_uptime_seconds %.0f\n", time.Since(e.startTime).Seconds())

	// Host resource usage of the simulator process
	if cpuPercent, err := cpu.Percent(0, false); err == nil && len(cpuPercent) > 0 {
		fmt.Fprintf(w, "\n# HELP greensched_host_cpu_usage Host CPU usage percentage (0-100)\n")
		fmt.Fprintf(w, "# TYPE greensched_host_cpu_usage gauge\n")
		fmt.Fprintf(w, "greensched_host_cpu_usage %.2f\n", cpuPercent[0])
	}
	if memInfo, err := mem.VirtualMemory(); err == nil {
		fmt.Fprintf(w, "\n# HELP greensched_host_memory_used_bytes Host memory in use\n")
		fmt.Fprintf(w, "# TYPE greensched_host_memory_used_bytes gauge\n")
		fmt.Fprintf(w, "greensched_host_memory_used_bytes %d\n", memInfo.Used)
	}

	// Append anything registered with the default Prometheus registry
	fmt.Fprintf(w, "\n")
	metricFamilies, err := promclient.DefaultGatherer.Gather()
	if err != nil {
		fmt.Fprintf(w, "# Error gathering Prometheus metrics: %v\n", err)
		return
	}
	var buf bytes.Buffer
	encoder := expfmt.NewEncoder(&buf, expfmt.FmtText)
	for _, mf := range metricFamilies {
		if err := encoder.Encode(mf); err != nil {
			fmt.Fprintf(w, "# Error encoding metric %s: %v\n", mf.GetName(), err)
		}
	}
	w.Write(buf.Bytes())
}
