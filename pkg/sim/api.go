// Package sim defines the boundary between the scheduler core and the
// discrete-event simulation engine. The engine owns the clock and the
// hardware; the scheduler owns placement and power decisions. Events flow
// in through EventHandler, actuation requests flow out through
// ActuationSink, and ordering between events is entirely the engine's.
package sim

import "github.com/huyongqii/green-energy/pkg/models"

// ActuationSink receives the scheduler's requests to the engine
type ActuationSink interface {
	// Now returns the current simulation time in seconds
	Now() float64

	// TotalResources returns the total node count of the cluster
	TotalResources() int

	// RejectJobs refuses jobs that can never fit on the cluster
	RejectJobs(jobs []*models.Job)

	// ExecuteJobs starts jobs whose Allocation has been assigned
	ExecuteJobs(jobs []*models.Job)

	// WakeMeUpAt arms a requested-call event at the given time
	WakeMeUpAt(t float64)

	// RequestPStateChange asks the hardware to move nodes toward a target
	// power state. The change is not effective until the engine delivers
	// OnMachinePStateChanged for those nodes.
	RequestPStateChange(nodeIDs []int, target models.PState)
}

// EventHandler consumes events delivered by the engine. Handlers are
// invoked one at a time and must run to completion before the next event.
type EventHandler interface {
	OnSimulationBegins()
	OnSimulationEnds()
	OnJobSubmission(job *models.Job)
	OnJobCompletion(job *models.Job)
	OnJobKilled(job *models.Job)
	OnJobMessage(timestamp float64, job *models.Job, message string)
	OnMachinePStateChanged(nodeIDs []int, newState models.PState)
	OnReportEnergyConsumed(consumedEnergy float64)
	OnRequestedCall()
	OnDeadlock()
}
