// Package engine is a replay stand-in for the external discrete-event
// engine: it owns the clock, delivers job-lifecycle and hardware events in
// timestamp order, and integrates energy from per-state power draws.
package engine

import (
	"container/heap"
	"fmt"

	"github.com/huyongqii/green-energy/pkg/logging"
	"github.com/huyongqii/green-energy/pkg/models"
	"github.com/huyongqii/green-energy/pkg/sim"
)

// Engine replays a workload trace against an attached event handler
type Engine struct {
	platform *Platform
	log      *logging.Logger
	handler  sim.EventHandler

	now    float64
	seq    int
	events eventLog

	// duration lookup and completion accounting per job id
	durations map[string]float64
	live      int // submitted and neither finished nor rejected

	// engine-side hardware view, used only for energy integration
	nodeStates []models.PState
	jobCounts  []int

	lastAdvance float64
	totalEnergy float64
	rejected    []*models.Job
}

var _ sim.ActuationSink = (*Engine)(nil)

// New builds an engine for the given platform
func New(platform *Platform, log *logging.Logger) *Engine {
	states := make([]models.PState, platform.NbNodes)
	for i := range states {
		states[i] = models.PStateIdle
	}
	return &Engine{
		platform:   platform,
		log:        log,
		durations:  make(map[string]float64),
		nodeStates: states,
		jobCounts:  make([]int, platform.NbNodes),
	}
}

// Attach sets the handler the engine delivers events to
func (e *Engine) Attach(handler sim.EventHandler) {
	e.handler = handler
}

func (e *Engine) push(ev *event) {
	ev.seq = e.seq
	e.seq++
	heap.Push(&e.events, ev)
}

// Run replays the workload to completion. Events are delivered strictly in
// (time, insertion) order, each handled to completion before the next.
func (e *Engine) Run(workload *Workload) error {
	if e.handler == nil {
		return fmt.Errorf("no event handler attached")
	}

	for _, wj := range workload.Jobs {
		e.durations[wj.ID] = wj.Duration
		e.push(&event{
			time: wj.SubmitTime,
			kind: evJobSubmission,
			job: &models.Job{
				ID:                 wj.ID,
				RequestedResources: wj.Resources,
				SubmitTime:         wj.SubmitTime,
			},
		})
	}
	e.live = len(workload.Jobs)

	e.handler.OnSimulationBegins()

	for e.events.Len() > 0 {
		ev := heap.Pop(&e.events).(*event)
		e.advanceEnergy(ev.time)
		e.now = ev.time

		switch ev.kind {
		case evJobSubmission:
			e.handler.OnJobSubmission(ev.job)
		case evJobCompletion:
			for _, id := range ev.job.Allocation {
				e.jobCounts[id]--
				if e.jobCounts[id] == 0 {
					e.nodeStates[id] = models.PStateIdle
				}
			}
			e.live--
			e.handler.OnJobCompletion(ev.job)
		case evRequestedCall:
			e.handler.OnReportEnergyConsumed(e.totalEnergy)
			e.handler.OnRequestedCall()
		case evPStateChanged:
			for _, id := range ev.nodeIDs {
				e.nodeStates[id] = ev.state
			}
			e.handler.OnMachinePStateChanged(ev.nodeIDs, ev.state)
		}
	}

	if e.live > 0 {
		// Nothing left in the log but jobs are still outstanding: the
		// cluster cannot make progress (for example, every node asleep
		// with no tick armed).
		e.log.Error("event log drained with jobs outstanding", map[string]interface{}{
			"time": e.now,
			"jobs": e.live,
		})
		e.handler.OnDeadlock()
		return fmt.Errorf("deadlock at time %.0f with %d jobs outstanding", e.now, e.live)
	}

	e.handler.OnSimulationEnds()
	return nil
}

// advanceEnergy integrates per-node power draw up to time t
func (e *Engine) advanceEnergy(t float64) {
	dt := t - e.lastAdvance
	if dt <= 0 {
		return
	}
	watts := 0.0
	for _, state := range e.nodeStates {
		watts += e.platform.Watts(state)
	}
	e.totalEnergy += watts * dt
	e.lastAdvance = t
}

// Now implements sim.ActuationSink
func (e *Engine) Now() float64 { return e.now }

// TotalResources implements sim.ActuationSink
func (e *Engine) TotalResources() int { return e.platform.NbNodes }

// RejectJobs implements sim.ActuationSink
func (e *Engine) RejectJobs(jobs []*models.Job) {
	for _, job := range jobs {
		e.log.Info("job rejected", map[string]interface{}{"job": job.ID})
		e.rejected = append(e.rejected, job)
		e.live--
	}
}

// ExecuteJobs implements sim.ActuationSink: each job runs for its trace
// duration on its allocated nodes.
func (e *Engine) ExecuteJobs(jobs []*models.Job) {
	for _, job := range jobs {
		duration, ok := e.durations[job.ID]
		if !ok {
			e.log.Error("execute request for unknown job", map[string]interface{}{"job": job.ID})
			continue
		}
		for _, id := range job.Allocation {
			e.jobCounts[id]++
			e.nodeStates[id] = models.PStateComputing
		}
		e.push(&event{time: e.now + duration, kind: evJobCompletion, job: job})
	}
}

// WakeMeUpAt implements sim.ActuationSink
func (e *Engine) WakeMeUpAt(t float64) {
	e.push(&event{time: t, kind: evRequestedCall})
}

// RequestPStateChange implements sim.ActuationSink: the hardware reaches
// the target state after the platform's transition latency, and only then
// is the change acknowledged.
func (e *Engine) RequestPStateChange(nodeIDs []int, target models.PState) {
	if len(nodeIDs) == 0 {
		return
	}
	from := e.nodeStates[nodeIDs[0]]
	latency, pending := e.transitionOf(from, target)
	for _, id := range nodeIDs {
		e.nodeStates[id] = pending
	}
	e.push(&event{time: e.now + latency, kind: evPStateChanged, nodeIDs: nodeIDs, state: target})
}

func (e *Engine) transitionOf(from, target models.PState) (latency float64, pending models.PState) {
	switch target {
	case models.PStateSleeping:
		return e.platform.Latency.Sleep, models.PStateSwitchingToSleep
	case models.PStatePoweredOff:
		return e.platform.Latency.PowerOff, models.PStatePoweringOff
	case models.PStateIdle:
		if from == models.PStatePoweredOff || from == models.PStatePoweringOn {
			return e.platform.Latency.PowerOn, models.PStatePoweringOn
		}
		return e.platform.Latency.Wake, models.PStateWakingFromSleep
	default:
		return 0, from
	}
}

// TotalEnergy returns the cumulative energy in joules up to the last event
func (e *Engine) TotalEnergy() float64 { return e.totalEnergy }

// Rejected returns jobs refused at submission
func (e *Engine) Rejected() []*models.Job { return e.rejected }
