package engine

import (
	"fmt"
	"math/rand"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/huyongqii/green-energy/pkg/models"
)

// Platform describes the simulated hardware: node count, per-state power
// draw, and how long actuated transitions take.
type Platform struct {
	NbNodes int                `yaml:"nb_nodes"`
	Power   map[string]float64 `yaml:"power"`   // watts per power state
	Latency TransitionLatency  `yaml:"latency"` // seconds per actuated transition
}

// TransitionLatency holds actuation delays in simulation seconds
type TransitionLatency struct {
	Sleep    float64 `yaml:"sleep"`
	Wake     float64 `yaml:"wake"`
	PowerOff float64 `yaml:"power_off"`
	PowerOn  float64 `yaml:"power_on"`
}

// defaultWatts is used when the platform file leaves a state out
var defaultWatts = map[models.PState]float64{
	models.PStateComputing:        190.0,
	models.PStateIdle:             95.0,
	models.PStateSleeping:         9.0,
	models.PStatePoweredOff:       0.0,
	models.PStateSwitchingToSleep: 125.0,
	models.PStateWakingFromSleep:  125.0,
	models.PStatePoweringOff:      125.0,
	models.PStatePoweringOn:       125.0,
}

// DefaultPlatform returns a platform usable without a file
func DefaultPlatform(nbNodes int) *Platform {
	return &Platform{
		NbNodes: nbNodes,
		Latency: TransitionLatency{Sleep: 5, Wake: 10, PowerOff: 20, PowerOn: 60},
	}
}

// LoadPlatform reads a platform description from YAML
func LoadPlatform(path string) (*Platform, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read platform file: %w", err)
	}
	p := DefaultPlatform(0)
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parse platform file: %w", err)
	}
	if p.NbNodes <= 0 {
		return nil, fmt.Errorf("platform must declare a positive nb_nodes")
	}
	return p, nil
}

// Watts returns the power draw of a node in the given state
func (p *Platform) Watts(state models.PState) float64 {
	if w, ok := p.Power[string(state)]; ok {
		return w
	}
	return defaultWatts[state]
}

// WorkloadJob is one job in a workload file
type WorkloadJob struct {
	ID         string  `yaml:"id"`
	SubmitTime float64 `yaml:"submit_time"`
	Resources  int     `yaml:"resources"`
	Duration   float64 `yaml:"duration"`
}

// Workload is the job trace a run replays
type Workload struct {
	Jobs []WorkloadJob `yaml:"jobs"`
}

// LoadWorkload reads a workload trace from YAML
func LoadWorkload(path string) (*Workload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workload file: %w", err)
	}
	var w Workload
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("parse workload file: %w", err)
	}
	for i, job := range w.Jobs {
		if job.ID == "" {
			return nil, fmt.Errorf("job %d has no id", i)
		}
		if job.Resources <= 0 {
			return nil, fmt.Errorf("job %s requests %d resources", job.ID, job.Resources)
		}
		if job.Duration <= 0 {
			return nil, fmt.Errorf("job %s has non-positive duration", job.ID)
		}
	}
	return &w, nil
}

// GenerateWorkload builds a random trace: Poisson-ish arrivals, job sizes
// up to half the cluster, durations from 1 to 60 minutes.
func GenerateWorkload(nbJobs, nbNodes int, seed int64) *Workload {
	rng := rand.New(rand.NewSource(seed))
	maxSize := nbNodes / 2
	if maxSize < 1 {
		maxSize = 1
	}
	w := &Workload{Jobs: make([]WorkloadJob, 0, nbJobs)}
	t := 0.0
	for i := 0; i < nbJobs; i++ {
		t += rng.ExpFloat64() * 120
		w.Jobs = append(w.Jobs, WorkloadJob{
			ID:         uuid.New().String(),
			SubmitTime: t,
			Resources:  1 + rng.Intn(maxSize),
			Duration:   60 + rng.Float64()*3540,
		})
	}
	return w
}
