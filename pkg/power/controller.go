package power

import (
	"fmt"
	"math"
	"time"

	"github.com/huyongqii/green-energy/pkg/logging"
	"github.com/huyongqii/green-energy/pkg/models"
	"github.com/huyongqii/green-energy/pkg/sim"
)

// Recorder consumes one snapshot row per periodic tick
type Recorder interface {
	Record(rec models.SystemRecord) error
}

// Forecaster predicts the near-future number of computing nodes.
// ok is false when no prediction is available.
type Forecaster interface {
	PredictComputing() (value float64, ok bool)
}

// Controller owns every node's power state and job count. It is the single
// writer for node state; the scheduler only goes through its methods.
type Controller struct {
	sink      sim.ActuationSink
	nodes     []*models.Node // index == node id
	policy    Policy
	recorder  Recorder
	forecast  Forecaster
	startTime time.Time
	log       *logging.Logger

	// pendingSince tracks when each pending transition was requested, so a
	// node stuck waiting for an ack is observable even without a timeout.
	pendingSince map[int]float64
	staleAcks    int
}

// NewController builds a controller with nbNodes nodes, all idle.
func NewController(sink sim.ActuationSink, nbNodes int, policy Policy, recorder Recorder, startTime time.Time, log *logging.Logger) *Controller {
	nodes := make([]*models.Node, nbNodes)
	for i := range nodes {
		nodes[i] = models.NewNode(i)
	}
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &Controller{
		sink:         sink,
		nodes:        nodes,
		policy:       policy,
		recorder:     recorder,
		startTime:    startTime,
		log:          log,
		pendingSince: make(map[int]float64),
	}
}

// SetForecaster attaches an optional demand forecaster consulted by
// ExecutePowerActions.
func (c *Controller) SetForecaster(f Forecaster) {
	c.forecast = f
}

// SetRecorder sets where RecordSystemState sends snapshot rows
func (c *Controller) SetRecorder(r Recorder) {
	c.recorder = r
}

// NbNodes returns the total node count
func (c *Controller) NbNodes() int {
	return len(c.nodes)
}

// GetAvailableNodes returns the ids of nodes that can accept jobs, in
// ascending id order. Nodes mid-transition, sleeping, or off are excluded.
func (c *Controller) GetAvailableNodes() []int {
	available := make([]int, 0, len(c.nodes))
	for _, n := range c.nodes {
		if models.IsAvailable(n.State) {
			available = append(available, n.ID)
		}
	}
	return available
}

// GetNodeJobCount returns the current job count of a node
func (c *Controller) GetNodeJobCount(id int) int {
	return c.nodes[id].JobCount
}

// AddJobToNode allocates one job to a node, transitioning idle nodes to
// computing. The node must be available.
func (c *Controller) AddJobToNode(id int) error {
	n := c.nodes[id]
	if !models.IsAvailable(n.State) {
		return fmt.Errorf("node %d in state %s cannot take jobs", id, n.State)
	}
	if n.State == models.PStateIdle {
		if err := c.transition(n, models.PStateComputing); err != nil {
			return err
		}
	}
	n.JobCount++
	return nil
}

// RemoveJobFromNode releases one job from a node, transitioning it back to
// idle when the last job leaves.
func (c *Controller) RemoveJobFromNode(id int) error {
	n := c.nodes[id]
	if n.State != models.PStateComputing || n.JobCount <= 0 {
		return fmt.Errorf("node %d has no job to remove (state %s, jobs %d)", id, n.State, n.JobCount)
	}
	n.JobCount--
	if n.JobCount == 0 {
		return c.transition(n, models.PStateIdle)
	}
	return nil
}

// transition applies an immediate (non-actuated) state change
func (c *Controller) transition(n *models.Node, to models.PState) error {
	if err := models.ValidateTransition(n.State, to); err != nil {
		return err
	}
	n.State = to
	return nil
}

// requestTransition moves nodes into a pending state and asks the engine to
// actuate the change. The pending state resolves only when the engine
// acknowledges via HandleStateTransitionComplete.
func (c *Controller) requestTransition(ids []int, pending models.PState) error {
	target, ok := models.PendingTarget(pending)
	if !ok {
		return fmt.Errorf("%s is not a pending state", pending)
	}
	for _, id := range ids {
		n := c.nodes[id]
		if models.IsPending(n.State) {
			return fmt.Errorf("node %d already has a pending transition (%s)", id, n.State)
		}
		if err := models.ValidateTransition(n.State, pending); err != nil {
			return err
		}
	}
	now := c.sink.Now()
	for _, id := range ids {
		c.nodes[id].State = pending
		c.pendingSince[id] = now
	}
	c.sink.RequestPStateChange(ids, target)
	return nil
}

// Sleep requests idle nodes to enter the sleep state
func (c *Controller) Sleep(ids []int) error {
	return c.requestTransition(ids, models.PStateSwitchingToSleep)
}

// Wake requests sleeping nodes to return to idle
func (c *Controller) Wake(ids []int) error {
	return c.requestTransition(ids, models.PStateWakingFromSleep)
}

// PowerOff requests idle or sleeping nodes to fully power down
func (c *Controller) PowerOff(ids []int) error {
	return c.requestTransition(ids, models.PStatePoweringOff)
}

// PowerOn requests powered-off nodes to boot back to idle
func (c *Controller) PowerOn(ids []int) error {
	return c.requestTransition(ids, models.PStatePoweringOn)
}

// HandleStateTransitionComplete resolves a pending transition acknowledged
// by the engine. An ack for a node not in a matching pending state is
// logged and counted, and the node's state is left unchanged.
func (c *Controller) HandleStateTransitionComplete(id int, newState models.PState) {
	n := c.nodes[id]
	target, pending := models.PendingTarget(n.State)
	if !pending || target != newState {
		c.staleAcks++
		c.log.Warn("unexpected pstate ack", map[string]interface{}{
			"node":      id,
			"state":     string(n.State),
			"new_state": string(newState),
		})
		return
	}
	n.State = newState
	delete(c.pendingSince, id)
}

// ExecutePowerActions runs the pluggable policy over the current cluster
// view and actuates whatever it decides. Invoked on the power-check cadence.
func (c *Controller) ExecutePowerActions(waitingJobs, waitingResources, runningJobs int) {
	view := ClusterView{
		Time:             c.sink.Now(),
		WaitingJobs:      waitingJobs,
		WaitingResources: waitingResources,
		RunningJobs:      runningJobs,
		TotalResources:   len(c.nodes),
	}
	for _, n := range c.nodes {
		switch n.State {
		case models.PStateComputing:
			view.Computing++
		case models.PStateIdle:
			view.Idle = append(view.Idle, n.ID)
		case models.PStateSleeping:
			view.Sleeping = append(view.Sleeping, n.ID)
		case models.PStatePoweredOff:
			view.PoweredOff = append(view.PoweredOff, n.ID)
		}
	}
	if c.forecast != nil {
		if v, ok := c.forecast.PredictComputing(); ok {
			view.ForecastComputing = v
			view.HasForecast = true
		}
	}

	for _, action := range c.policy.Decide(view) {
		if len(action.NodeIDs) == 0 {
			continue
		}
		var err error
		switch action.Op {
		case OpSleep:
			err = c.Sleep(action.NodeIDs)
		case OpWake:
			err = c.Wake(action.NodeIDs)
		case OpPowerOff:
			err = c.PowerOff(action.NodeIDs)
		case OpPowerOn:
			err = c.PowerOn(action.NodeIDs)
		default:
			err = fmt.Errorf("unknown op %q", action.Op)
		}
		if err != nil {
			c.log.Error("power action failed", map[string]interface{}{
				"op":    string(action.Op),
				"nodes": action.NodeIDs,
				"error": err.Error(),
			})
		}
	}
}

// RecordSystemState emits one snapshot row aggregating node states, queue
// depths, and instantaneous power.
func (c *Controller) RecordSystemState(t float64, runningJobs, waitingJobs int, currentPower float64) {
	counts := models.CountStates(c.nodes)
	rec := models.SystemRecord{
		Time:               t,
		Datetime:           c.startTime.Add(time.Duration(t * float64(time.Second))),
		RunningJobs:        runningJobs,
		WaitingJobs:        waitingJobs,
		NbComputing:        counts[models.PStateComputing],
		NbIdle:             counts[models.PStateIdle],
		NbSleeping:         counts[models.PStateSleeping],
		NbPoweredOff:       counts[models.PStatePoweredOff],
		NbSwitchingToSleep: counts[models.PStateSwitchingToSleep],
		NbWakingFromSleep:  counts[models.PStateWakingFromSleep],
		NbPoweringOn:       counts[models.PStatePoweringOn],
		NbPoweringOff:      counts[models.PStatePoweringOff],
		CurrentPower:       currentPower,
	}
	if len(c.nodes) > 0 {
		rec.UtilizationRate = float64(rec.NbComputing) / float64(len(c.nodes))
	}
	if c.recorder != nil {
		if err := c.recorder.Record(rec); err != nil {
			c.log.Error("failed to record system state", map[string]interface{}{"error": err.Error()})
		}
	}
}

// StateCounts returns the current node count per power state
func (c *Controller) StateCounts() models.StateCounts {
	return models.CountStates(c.nodes)
}

// Diagnostics describes pending-transition health
type Diagnostics struct {
	StaleAcks        int     `json:"stale_acks"`
	PendingNodes     int     `json:"pending_nodes"`
	OldestPendingAge float64 `json:"oldest_pending_age"`
}

// Diagnostics reports stale acks and how long transitions have been
// pending. A node stuck in a pending state has no automatic recovery, so
// this is the only way that failure mode becomes visible.
func (c *Controller) Diagnostics() Diagnostics {
	d := Diagnostics{StaleAcks: c.staleAcks, PendingNodes: len(c.pendingSince)}
	if len(c.pendingSince) > 0 {
		now := c.sink.Now()
		oldest := math.Inf(1)
		for _, since := range c.pendingSince {
			if since < oldest {
				oldest = since
			}
		}
		d.OldestPendingAge = now - oldest
	}
	return d
}
