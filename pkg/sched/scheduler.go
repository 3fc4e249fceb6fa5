package sched

import (
	"github.com/huyongqii/green-energy/pkg/logging"
	"github.com/huyongqii/green-energy/pkg/models"
	"github.com/huyongqii/green-energy/pkg/power"
	"github.com/huyongqii/green-energy/pkg/sim"
)

// LifecycleState tracks where the control loop is in the simulation run:
// NotStarted until the engine begins, Running while ticks are armed,
// Draining after idle shutdown while the engine finishes delivering, and
// Stopped once the simulation ends.
type LifecycleState string

const (
	LifecycleNotStarted LifecycleState = "not_started"
	LifecycleRunning    LifecycleState = "running"
	LifecycleDraining   LifecycleState = "draining"
	LifecycleStopped    LifecycleState = "stopped"
)

// Config holds the control-loop cadences, in simulation seconds
type Config struct {
	PowerCheckInterval float64 // How often proactive power actions run
	RecordInterval     float64 // How often a snapshot row is emitted
}

// DefaultConfig returns the standard cadences
func DefaultConfig() *Config {
	return &Config{
		PowerCheckInterval: 1800,
		RecordInterval:     60,
	}
}

// ResultSink optionally receives finished-job summaries
type ResultSink interface {
	SaveJobResult(result models.JobResult) error
}

// Stats counts scheduler activity for the metrics endpoint
type Stats struct {
	Submitted int `json:"submitted"`
	Scheduled int `json:"scheduled"`
	Completed int `json:"completed"`
	Rejected  int `json:"rejected"`
	Killed    int `json:"killed"`
	Batches   int `json:"batches"`
}

// Scheduler places jobs first-come-first-served with load balancing and
// drives the power controller from the engine's event stream. All state is
// owned here and mutated from one control path; the engine delivers events
// one at a time.
type Scheduler struct {
	sink  sim.ActuationSink
	power *power.Controller
	cfg   *Config
	log   *logging.Logger

	waitingJobs []*models.Job
	runningJobs []*models.Job

	lastPowerCheck    float64
	simulationStarted bool
	state             LifecycleState

	meter      EnergyMeter
	stats      Stats
	resultSink ResultSink
}

var _ sim.EventHandler = (*Scheduler)(nil)

// NewScheduler wires the scheduler to its engine and power controller
func NewScheduler(sink sim.ActuationSink, pc *power.Controller, cfg *Config, log *logging.Logger) *Scheduler {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Scheduler{
		sink:  sink,
		power: pc,
		cfg:   cfg,
		log:   log,
		state: LifecycleNotStarted,
	}
}

// SetResultSink attaches an optional store for finished-job summaries
func (s *Scheduler) SetResultSink(sink ResultSink) {
	s.resultSink = sink
}

// OnSimulationBegins initializes timers and arms the first periodic tick
func (s *Scheduler) OnSimulationBegins() {
	now := s.sink.Now()
	s.log.Info("simulation begins", map[string]interface{}{"time": now})
	s.lastPowerCheck = now
	s.simulationStarted = false
	s.state = LifecycleRunning
	s.sink.WakeMeUpAt(now + s.cfg.RecordInterval)
}

// OnSimulationEnds stops the control loop; no further scheduling happens
func (s *Scheduler) OnSimulationEnds() {
	s.state = LifecycleStopped
	s.log.Info("simulation ends", map[string]interface{}{
		"time":      s.sink.Now(),
		"scheduled": s.stats.Scheduled,
		"completed": s.stats.Completed,
		"rejected":  s.stats.Rejected,
	})
}

// OnJobSubmission admits a job or rejects it outright when it can never
// fit on the cluster.
func (s *Scheduler) OnJobSubmission(job *models.Job) {
	s.simulationStarted = true
	s.stats.Submitted++

	if job.RequestedResources > s.sink.TotalResources() {
		job.Status = models.JobStatusRejected
		s.stats.Rejected++
		s.log.Info("job rejected, exceeds cluster capacity", map[string]interface{}{
			"job":       job.ID,
			"requested": job.RequestedResources,
			"capacity":  s.sink.TotalResources(),
		})
		s.sink.RejectJobs([]*models.Job{job})
		return
	}

	job.Status = models.JobStatusWaiting
	s.waitingJobs = append(s.waitingJobs, job)
	s.log.Debug("job submitted", map[string]interface{}{
		"job":     job.ID,
		"waiting": len(s.waitingJobs),
		"running": len(s.runningJobs),
	})
	s.trySchedule()
}

// OnJobCompletion releases the job's nodes and retries the queue. A
// completion for a job not in the running set is logged and ignored to
// tolerate engine-side duplication.
func (s *Scheduler) OnJobCompletion(job *models.Job) {
	s.finishJob(job, models.JobStatusCompleted)
}

// OnJobKilled handles a job terminated by the engine before completion.
// Nodes are deallocated and the job leaves the running set, same as
// completion but with a distinct terminal state.
func (s *Scheduler) OnJobKilled(job *models.Job) {
	s.log.Warn("job killed by engine", map[string]interface{}{"job": job.ID})
	s.finishJob(job, models.JobStatusKilled)
}

func (s *Scheduler) finishJob(job *models.Job, status models.JobStatus) {
	idx := -1
	for i, j := range s.runningJobs {
		if j.ID == job.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.log.Warn("event for job not in running set, ignoring", map[string]interface{}{
			"job":    job.ID,
			"status": string(status),
		})
		return
	}

	running := s.runningJobs[idx]
	s.runningJobs = append(s.runningJobs[:idx], s.runningJobs[idx+1:]...)
	running.Status = status
	running.FinishTime = s.sink.Now()

	for _, nodeID := range running.Allocation {
		if err := s.power.RemoveJobFromNode(nodeID); err != nil {
			s.log.Warn("deallocation failed", map[string]interface{}{
				"job":   running.ID,
				"node":  nodeID,
				"error": err.Error(),
			})
		}
	}

	switch status {
	case models.JobStatusKilled:
		s.stats.Killed++
	default:
		s.stats.Completed++
	}

	if s.resultSink != nil {
		result := models.JobResult{
			JobID:              running.ID,
			RequestedResources: running.RequestedResources,
			Allocation:         running.Allocation,
			Status:             status,
			SubmitTime:         running.SubmitTime,
			StartTime:          running.StartTime,
			FinishTime:         running.FinishTime,
			WaitTime:           running.StartTime - running.SubmitTime,
		}
		if err := s.resultSink.SaveJobResult(result); err != nil {
			s.log.Error("failed to persist job result", map[string]interface{}{
				"job":   running.ID,
				"error": err.Error(),
			})
		}
	}

	s.log.Debug("job finished", map[string]interface{}{
		"job":     running.ID,
		"status":  string(status),
		"waiting": len(s.waitingJobs),
		"running": len(s.runningJobs),
	})
	s.trySchedule()
}

// OnJobMessage logs messages emitted by running jobs
func (s *Scheduler) OnJobMessage(timestamp float64, job *models.Job, message string) {
	s.log.Info("message from job", map[string]interface{}{
		"job":     job.ID,
		"time":    timestamp,
		"message": message,
	})
}

// OnMachinePStateChanged resolves pending hardware transitions. Nodes
// coming back to an available state retry the waiting queue; without this
// nodes woken for a waiting job would sit idle until the next submission
// or completion event.
func (s *Scheduler) OnMachinePStateChanged(nodeIDs []int, newState models.PState) {
	for _, id := range nodeIDs {
		s.power.HandleStateTransitionComplete(id, newState)
	}
	if models.IsAvailable(newState) {
		s.trySchedule()
	}
}

// OnReportEnergyConsumed feeds the energy meter
func (s *Scheduler) OnReportEnergyConsumed(consumedEnergy float64) {
	s.meter.Observe(s.sink.Now(), consumedEnergy)
}

// OnRequestedCall is the periodic tick: power actions on their cadence, a
// snapshot every tick, and idle shutdown once the run has drained.
func (s *Scheduler) OnRequestedCall() {
	if s.state != LifecycleRunning {
		return
	}
	now := s.sink.Now()

	if now >= s.lastPowerCheck+s.cfg.PowerCheckInterval {
		waitingResources := 0
		for _, job := range s.waitingJobs {
			waitingResources += job.RequestedResources
		}
		s.power.ExecutePowerActions(len(s.waitingJobs), waitingResources, len(s.runningJobs))
		s.lastPowerCheck = now
	}

	s.power.RecordSystemState(now, len(s.runningJobs), len(s.waitingJobs), s.meter.CurrentPower())

	if s.simulationStarted && len(s.runningJobs) == 0 && len(s.waitingJobs) == 0 {
		s.log.Info("all jobs finished, stopping periodic callbacks", map[string]interface{}{"time": now})
		s.state = LifecycleDraining
		return
	}

	s.sink.WakeMeUpAt(now + s.cfg.RecordInterval)
}

// OnDeadlock aborts the run; a deadlocked engine cannot be recovered here
func (s *Scheduler) OnDeadlock() {
	panic("simulation engine reported a deadlock")
}

// WaitingCount returns the waiting-queue depth
func (s *Scheduler) WaitingCount() int { return len(s.waitingJobs) }

// RunningCount returns the running-set size
func (s *Scheduler) RunningCount() int { return len(s.runningJobs) }

// CurrentPower returns the last computed instantaneous power in watts
func (s *Scheduler) CurrentPower() float64 { return s.meter.CurrentPower() }

// State returns the control-loop lifecycle state
func (s *Scheduler) State() LifecycleState { return s.state }

// Stats returns a copy of the activity counters
func (s *Scheduler) Stats() Stats { return s.stats }
