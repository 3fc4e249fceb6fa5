package power

import (
	"testing"
	"time"

	"github.com/huyongqii/green-energy/pkg/logging"
	"github.com/huyongqii/green-energy/pkg/models"
)

// fakeSink records actuation requests without any engine behind it
type fakeSink struct {
	now      float64
	total    int
	requests []pstateRequest
}

type pstateRequest struct {
	ids    []int
	target models.PState
}

func (f *fakeSink) Now() float64                    { return f.now }
func (f *fakeSink) TotalResources() int             { return f.total }
func (f *fakeSink) RejectJobs(jobs []*models.Job)   {}
func (f *fakeSink) ExecuteJobs(jobs []*models.Job)  {}
func (f *fakeSink) WakeMeUpAt(t float64)            {}
func (f *fakeSink) RequestPStateChange(ids []int, state models.PState) {
	f.requests = append(f.requests, pstateRequest{ids: ids, target: state})
}

func newTestController(nbNodes int) (*Controller, *fakeSink) {
	sink := &fakeSink{total: nbNodes}
	c := NewController(sink, nbNodes, NoopPolicy{}, nil, time.Time{}, logging.Nop())
	return c, sink
}

func TestAddRemoveJob(t *testing.T) {
	c, _ := newTestController(2)

	if err := c.AddJobToNode(0); err != nil {
		t.Fatalf("AddJobToNode(0) error: %v", err)
	}
	if got := c.StateCounts()[models.PStateComputing]; got != 1 {
		t.Errorf("computing nodes = %d, want 1", got)
	}
	if err := c.AddJobToNode(0); err != nil {
		t.Fatalf("second AddJobToNode(0) error: %v", err)
	}
	if got := c.GetNodeJobCount(0); got != 2 {
		t.Errorf("job count = %d, want 2", got)
	}

	if err := c.RemoveJobFromNode(0); err != nil {
		t.Fatalf("RemoveJobFromNode(0) error: %v", err)
	}
	// Still one job left, node stays computing
	if got := c.StateCounts()[models.PStateComputing]; got != 1 {
		t.Errorf("computing nodes = %d, want 1", got)
	}
	if err := c.RemoveJobFromNode(0); err != nil {
		t.Fatalf("second RemoveJobFromNode(0) error: %v", err)
	}
	if got := c.StateCounts()[models.PStateIdle]; got != 2 {
		t.Errorf("idle nodes = %d, want 2", got)
	}

	if err := c.RemoveJobFromNode(0); err == nil {
		t.Error("removing a job from an idle node should fail")
	}
}

func TestAddJobToUnavailableNode(t *testing.T) {
	c, _ := newTestController(2)

	if err := c.Sleep([]int{1}); err != nil {
		t.Fatalf("Sleep error: %v", err)
	}
	if err := c.AddJobToNode(1); err == nil {
		t.Error("adding a job to a transitioning node should fail")
	}

	available := c.GetAvailableNodes()
	if len(available) != 1 || available[0] != 0 {
		t.Errorf("available nodes = %v, want [0]", available)
	}
}

func TestPendingAckFlow(t *testing.T) {
	c, sink := newTestController(4)
	sink.now = 100

	if err := c.Sleep([]int{2, 3}); err != nil {
		t.Fatalf("Sleep error: %v", err)
	}
	if len(sink.requests) != 1 {
		t.Fatalf("requests = %d, want 1", len(sink.requests))
	}
	if sink.requests[0].target != models.PStateSleeping {
		t.Errorf("request target = %v, want sleeping", sink.requests[0].target)
	}
	counts := c.StateCounts()
	if counts[models.PStateSwitchingToSleep] != 2 {
		t.Errorf("switching_to_sleep = %d, want 2", counts[models.PStateSwitchingToSleep])
	}

	// A second request against a pending node must be refused
	if err := c.Sleep([]int{2}); err == nil {
		t.Error("sleeping an already-pending node should fail")
	}
	if err := c.PowerOff([]int{3}); err == nil {
		t.Error("powering off an already-pending node should fail")
	}

	sink.now = 110
	diag := c.Diagnostics()
	if diag.PendingNodes != 2 {
		t.Errorf("pending nodes = %d, want 2", diag.PendingNodes)
	}
	if diag.OldestPendingAge != 10 {
		t.Errorf("oldest pending age = %v, want 10", diag.OldestPendingAge)
	}

	c.HandleStateTransitionComplete(2, models.PStateSleeping)
	c.HandleStateTransitionComplete(3, models.PStateSleeping)
	counts = c.StateCounts()
	if counts[models.PStateSleeping] != 2 {
		t.Errorf("sleeping = %d, want 2", counts[models.PStateSleeping])
	}
	if got := c.Diagnostics().PendingNodes; got != 0 {
		t.Errorf("pending nodes after acks = %d, want 0", got)
	}

	// Full round trip back to idle
	if err := c.Wake([]int{2}); err != nil {
		t.Fatalf("Wake error: %v", err)
	}
	c.HandleStateTransitionComplete(2, models.PStateIdle)
	if c.nodes[2].State != models.PStateIdle {
		t.Errorf("node 2 state = %v, want idle", c.nodes[2].State)
	}
}

func TestStaleAck(t *testing.T) {
	c, _ := newTestController(2)

	// Ack for a node with no pending transition
	c.HandleStateTransitionComplete(0, models.PStateSleeping)
	if c.nodes[0].State != models.PStateIdle {
		t.Errorf("node 0 state = %v, want idle unchanged", c.nodes[0].State)
	}
	if got := c.Diagnostics().StaleAcks; got != 1 {
		t.Errorf("stale acks = %d, want 1", got)
	}

	// Ack that does not match the pending target
	if err := c.Sleep([]int{1}); err != nil {
		t.Fatalf("Sleep error: %v", err)
	}
	c.HandleStateTransitionComplete(1, models.PStatePoweredOff)
	if c.nodes[1].State != models.PStateSwitchingToSleep {
		t.Errorf("node 1 state = %v, want switching_to_sleep unchanged", c.nodes[1].State)
	}
	if got := c.Diagnostics().StaleAcks; got != 2 {
		t.Errorf("stale acks = %d, want 2", got)
	}
}

func TestPowerOffFromSleeping(t *testing.T) {
	c, _ := newTestController(1)

	if err := c.Sleep([]int{0}); err != nil {
		t.Fatalf("Sleep error: %v", err)
	}
	c.HandleStateTransitionComplete(0, models.PStateSleeping)
	if err := c.PowerOff([]int{0}); err != nil {
		t.Fatalf("PowerOff from sleeping error: %v", err)
	}
	c.HandleStateTransitionComplete(0, models.PStatePoweredOff)

	if c.nodes[0].State != models.PStatePoweredOff {
		t.Errorf("node 0 state = %v, want powered_off", c.nodes[0].State)
	}
	if err := c.PowerOn([]int{0}); err != nil {
		t.Fatalf("PowerOn error: %v", err)
	}
	c.HandleStateTransitionComplete(0, models.PStateIdle)
	if c.nodes[0].State != models.PStateIdle {
		t.Errorf("node 0 state = %v, want idle", c.nodes[0].State)
	}
}

func TestRecordSystemState(t *testing.T) {
	var got models.SystemRecord
	rec := recorderFunc(func(r models.SystemRecord) error {
		got = r
		return nil
	})

	sink := &fakeSink{total: 4}
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewController(sink, 4, NoopPolicy{}, rec, start, logging.Nop())

	if err := c.AddJobToNode(0); err != nil {
		t.Fatalf("AddJobToNode error: %v", err)
	}
	c.RecordSystemState(3600, 1, 2, 450.5)

	if got.NbComputing != 1 || got.NbIdle != 3 {
		t.Errorf("computing/idle = %d/%d, want 1/3", got.NbComputing, got.NbIdle)
	}
	if got.RunningJobs != 1 || got.WaitingJobs != 2 {
		t.Errorf("running/waiting = %d/%d, want 1/2", got.RunningJobs, got.WaitingJobs)
	}
	if got.UtilizationRate != 0.25 {
		t.Errorf("utilization = %v, want 0.25", got.UtilizationRate)
	}
	if got.CurrentPower != 450.5 {
		t.Errorf("current power = %v, want 450.5", got.CurrentPower)
	}
	want := time.Date(2023, 1, 1, 1, 0, 0, 0, time.UTC)
	if !got.Datetime.Equal(want) {
		t.Errorf("datetime = %v, want %v", got.Datetime, want)
	}
}

type recorderFunc func(models.SystemRecord) error

func (f recorderFunc) Record(r models.SystemRecord) error { return f(r) }
