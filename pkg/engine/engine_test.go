package engine

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/huyongqii/green-energy/pkg/logging"
	"github.com/huyongqii/green-energy/pkg/models"
	"github.com/huyongqii/green-energy/pkg/power"
	"github.com/huyongqii/green-energy/pkg/sched"
	"github.com/huyongqii/green-energy/pkg/sim"
)

// memRecorder keeps snapshot rows in memory
type memRecorder struct {
	rows []models.SystemRecord
}

func (m *memRecorder) Record(rec models.SystemRecord) error {
	m.rows = append(m.rows, rec)
	return nil
}

func newSimulation(t *testing.T, nbNodes int, policy power.Policy) (*Engine, *sched.Scheduler, *memRecorder) {
	t.Helper()
	log := logging.Nop()
	eng := New(DefaultPlatform(nbNodes), log)
	rec := &memRecorder{}
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	pc := power.NewController(eng, nbNodes, policy, rec, start, log)
	s := sched.NewScheduler(eng, pc, nil, log)
	eng.Attach(s)
	return eng, s, rec
}

func TestRunSmallWorkload(t *testing.T) {
	eng, s, rec := newSimulation(t, 4, power.NoopPolicy{})

	workload := &Workload{Jobs: []WorkloadJob{
		{ID: "j1", SubmitTime: 0, Resources: 2, Duration: 300},
		{ID: "j2", SubmitTime: 100, Resources: 1, Duration: 200},
		{ID: "j3", SubmitTime: 150, Resources: 3, Duration: 100},
	}}

	if err := eng.Run(workload); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	stats := s.Stats()
	if stats.Submitted != 3 || stats.Completed != 3 || stats.Rejected != 0 {
		t.Errorf("stats = %+v, want 3 submitted, 3 completed", stats)
	}
	if s.WaitingCount() != 0 || s.RunningCount() != 0 {
		t.Errorf("queues not drained: waiting %d, running %d", s.WaitingCount(), s.RunningCount())
	}
	if s.State() != sched.LifecycleStopped {
		t.Errorf("state = %v, want stopped", s.State())
	}
	if eng.TotalEnergy() <= 0 {
		t.Errorf("total energy = %v, want > 0", eng.TotalEnergy())
	}
	if len(rec.rows) == 0 {
		t.Error("no snapshot rows recorded")
	}
	// j3 needs 3 nodes and cannot start before j1 releases its pair
	last := rec.rows[len(rec.rows)-1]
	if last.RunningJobs != 0 || last.WaitingJobs != 0 {
		t.Errorf("final snapshot shows %d running, %d waiting", last.RunningJobs, last.WaitingJobs)
	}
}

func TestRunRejectsOversizedJob(t *testing.T) {
	eng, s, _ := newSimulation(t, 4, power.NoopPolicy{})

	workload := &Workload{Jobs: []WorkloadJob{
		{ID: "fits", SubmitTime: 0, Resources: 2, Duration: 100},
		{ID: "too-big", SubmitTime: 10, Resources: 10, Duration: 100},
	}}

	if err := eng.Run(workload); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if got := len(eng.Rejected()); got != 1 {
		t.Fatalf("rejected = %d, want 1", got)
	}
	if eng.Rejected()[0].ID != "too-big" {
		t.Errorf("rejected job = %s, want too-big", eng.Rejected()[0].ID)
	}
	if got := s.Stats().Completed; got != 1 {
		t.Errorf("completed = %d, want 1", got)
	}
}

// probeHandler drives the engine directly, recording hardware acks
type probeHandler struct {
	sink    sim.ActuationSink
	onBegin func(sink sim.ActuationSink)
	acks    []ack
	energy  []float64
}

type ack struct {
	time  float64
	ids   []int
	state models.PState
}

func (p *probeHandler) OnSimulationBegins() {
	if p.onBegin != nil {
		p.onBegin(p.sink)
	}
}
func (p *probeHandler) OnSimulationEnds()                         {}
func (p *probeHandler) OnJobSubmission(*models.Job)               {}
func (p *probeHandler) OnJobCompletion(*models.Job)               {}
func (p *probeHandler) OnJobKilled(*models.Job)                   {}
func (p *probeHandler) OnJobMessage(float64, *models.Job, string) {}
func (p *probeHandler) OnRequestedCall()                          {}
func (p *probeHandler) OnDeadlock()                               {}

func (p *probeHandler) OnMachinePStateChanged(nodeIDs []int, newState models.PState) {
	p.acks = append(p.acks, ack{time: p.sink.Now(), ids: nodeIDs, state: newState})
}

func (p *probeHandler) OnReportEnergyConsumed(consumedEnergy float64) {
	p.energy = append(p.energy, consumedEnergy)
}

func TestPStateChangeLatency(t *testing.T) {
	eng := New(DefaultPlatform(4), logging.Nop())
	probe := &probeHandler{sink: eng}
	probe.onBegin = func(sink sim.ActuationSink) {
		sink.RequestPStateChange([]int{2, 3}, models.PStateSleeping)
	}
	eng.Attach(probe)

	if err := eng.Run(&Workload{}); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(probe.acks) != 1 {
		t.Fatalf("acks = %d, want 1", len(probe.acks))
	}
	got := probe.acks[0]
	if got.time != 5 {
		t.Errorf("ack time = %v, want the 5s sleep latency", got.time)
	}
	if got.state != models.PStateSleeping {
		t.Errorf("ack state = %v, want sleeping", got.state)
	}
	if len(got.ids) != 2 {
		t.Errorf("ack ids = %v, want 2 nodes", got.ids)
	}
}

func TestEnergyIntegration(t *testing.T) {
	eng := New(DefaultPlatform(4), logging.Nop())
	probe := &probeHandler{sink: eng}
	probe.onBegin = func(sink sim.ActuationSink) {
		sink.WakeMeUpAt(100)
	}
	eng.Attach(probe)

	if err := eng.Run(&Workload{}); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	// 4 idle nodes at 95 W for 100 s
	if len(probe.energy) != 1 {
		t.Fatalf("energy reports = %d, want 1", len(probe.energy))
	}
	if probe.energy[0] != 38000 {
		t.Errorf("energy = %v, want 38000 J", probe.energy[0])
	}
}

func TestLoadWorkloadValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing id", "jobs:\n  - submit_time: 0\n    resources: 1\n    duration: 10\n"},
		{"zero resources", "jobs:\n  - id: a\n    submit_time: 0\n    resources: 0\n    duration: 10\n"},
		{"zero duration", "jobs:\n  - id: a\n    submit_time: 0\n    resources: 1\n    duration: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTemp(t, tt.yaml)
			if _, err := LoadWorkload(path); err == nil {
				t.Error("LoadWorkload accepted an invalid trace")
			}
		})
	}
}

func TestGenerateWorkloadDeterminism(t *testing.T) {
	a := GenerateWorkload(20, 16, 42)
	b := GenerateWorkload(20, 16, 42)

	if len(a.Jobs) != 20 {
		t.Fatalf("jobs = %d, want 20", len(a.Jobs))
	}
	for i := range a.Jobs {
		if a.Jobs[i].SubmitTime != b.Jobs[i].SubmitTime ||
			a.Jobs[i].Resources != b.Jobs[i].Resources ||
			a.Jobs[i].Duration != b.Jobs[i].Duration {
			t.Fatalf("job %d differs between identically seeded traces", i)
		}
		if a.Jobs[i].Resources < 1 || a.Jobs[i].Resources > 8 {
			t.Errorf("job %d resources = %d, want within [1,8]", i, a.Jobs[i].Resources)
		}
		if i > 0 && a.Jobs[i].SubmitTime < a.Jobs[i-1].SubmitTime {
			t.Errorf("job %d submitted before its predecessor", i)
		}
	}
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "workload.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
