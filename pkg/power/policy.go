package power

// Op identifies a proactive power action
type Op string

const (
	OpSleep    Op = "sleep"
	OpWake     Op = "wake"
	OpPowerOff Op = "power_off"
	OpPowerOn  Op = "power_on"
)

// Action asks the controller to move a group of nodes
type Action struct {
	Op      Op
	NodeIDs []int
}

// ClusterView is the read-only state a policy decides from
type ClusterView struct {
	Time       float64
	Computing  int
	Idle       []int // ids, ascending
	Sleeping   []int
	PoweredOff []int

	// WaitingResources is the total node count requested by waiting jobs.
	// Reserves must be sized from it, not from the job count: one large
	// waiting job needs as many awake nodes as it requests.
	WaitingResources int
	WaitingJobs      int
	RunningJobs      int
	TotalResources   int

	// Predicted near-future computing-node demand, when a forecaster is
	// attached. HasForecast is false otherwise.
	ForecastComputing float64
	HasForecast       bool
}

// Policy decides which idle nodes to power down and which sleeping or off
// nodes to bring back, typically from queue depth and the demand forecast.
// Thresholds live in the policy, not in the controller.
type Policy interface {
	Decide(view ClusterView) []Action
}

// QueueDepthPolicy keeps a reserve of awake idle nodes sized from the
// waiting queue's resource demand and the forecast, sleeps the excess, and
// optionally powers off nodes sleeping beyond a cap.
type QueueDepthPolicy struct {
	// SpareNodes is the minimum number of idle nodes kept awake even with
	// an empty queue.
	SpareNodes int

	// MaxSleeping caps the sleeping pool; the excess is powered off.
	// Zero disables deep power-down.
	MaxSleeping int
}

// DefaultPolicy returns the policy used when none is configured
func DefaultPolicy() *QueueDepthPolicy {
	return &QueueDepthPolicy{SpareNodes: 2}
}

// Decide implements Policy
func (p *QueueDepthPolicy) Decide(view ClusterView) []Action {
	reserve := p.SpareNodes
	if view.WaitingResources > reserve {
		reserve = view.WaitingResources
	}
	if view.HasForecast {
		// Wake ahead of predicted demand growth
		if predicted := int(view.ForecastComputing + 0.5); predicted > view.Computing {
			needed := predicted - view.Computing
			if needed > reserve {
				reserve = needed
			}
		}
	}

	var actions []Action
	waking := false
	idle := len(view.Idle)

	switch {
	case idle > reserve:
		// Sleep the highest-id idle nodes; placement prefers low ids, so
		// high ids are the least likely to be needed next.
		excess := idle - reserve
		toSleep := append([]int(nil), view.Idle[idle-excess:]...)
		actions = append(actions, Action{Op: OpSleep, NodeIDs: toSleep})
	case idle < reserve:
		deficit := reserve - idle
		if deficit > len(view.Sleeping) {
			deficit = len(view.Sleeping)
		}
		if deficit > 0 {
			toWake := append([]int(nil), view.Sleeping[:deficit]...)
			actions = append(actions, Action{Op: OpWake, NodeIDs: toWake})
			waking = true
		}
		remaining := reserve - idle - deficit
		if remaining > 0 && len(view.PoweredOff) > 0 {
			if remaining > len(view.PoweredOff) {
				remaining = len(view.PoweredOff)
			}
			toBoot := append([]int(nil), view.PoweredOff[:remaining]...)
			actions = append(actions, Action{Op: OpPowerOn, NodeIDs: toBoot})
		}
	}

	if !waking && p.MaxSleeping > 0 && len(view.Sleeping) > p.MaxSleeping {
		excess := len(view.Sleeping) - p.MaxSleeping
		toOff := append([]int(nil), view.Sleeping[len(view.Sleeping)-excess:]...)
		actions = append(actions, Action{Op: OpPowerOff, NodeIDs: toOff})
	}

	return actions
}

// NoopPolicy never powers anything down; useful as a baseline
type NoopPolicy struct{}

// Decide implements Policy
func (NoopPolicy) Decide(ClusterView) []Action { return nil }
