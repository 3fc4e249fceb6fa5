package models

// JobStatus represents the lifecycle state of a job
type JobStatus string

const (
	JobStatusWaiting   JobStatus = "waiting"   // In the waiting queue, no allocation
	JobStatusRunning   JobStatus = "running"   // Allocated and executing
	JobStatusCompleted JobStatus = "completed" // Finished normally
	JobStatusKilled    JobStatus = "killed"    // Terminated by the engine before completion
	JobStatusRejected  JobStatus = "rejected"  // Requested more nodes than the cluster has
)

// Job represents a workload submitted by the simulation engine.
// The engine assigns the ID; the scheduler assigns the allocation.
type Job struct {
	ID                 string    `json:"id"`
	RequestedResources int       `json:"requested_resources"`
	Allocation         []int     `json:"allocation,omitempty"`
	Status             JobStatus `json:"status"`
	SubmitTime         float64   `json:"submit_time"`
	StartTime          float64   `json:"start_time,omitempty"`
	FinishTime         float64   `json:"finish_time,omitempty"`
}

// JobResult summarizes a finished job for persistence
type JobResult struct {
	JobID              string    `json:"job_id"`
	RequestedResources int       `json:"requested_resources"`
	Allocation         []int     `json:"allocation"`
	Status             JobStatus `json:"status"`
	SubmitTime         float64   `json:"submit_time"`
	StartTime          float64   `json:"start_time"`
	FinishTime         float64   `json:"finish_time"`
	WaitTime           float64   `json:"wait_time"`
}
