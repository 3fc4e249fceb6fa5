package sched

import (
	"fmt"
	"sort"

	"github.com/huyongqii/green-energy/pkg/models"
)

// trySchedule walks the waiting queue once in arrival order against a
// shrinking pool of unallocated nodes. A job that fits takes the
// least-loaded nodes (ties broken by lower id); a job that does not fit
// stays waiting without blocking smaller jobs behind it. Allocations are
// exclusive: a node already running a job never appears in the pool, so
// running jobs' allocations stay disjoint. Safe to call with an empty
// queue.
func (s *Scheduler) trySchedule() {
	if len(s.waitingJobs) == 0 {
		return
	}

	available := s.power.GetAvailableNodes()
	if len(available) == 0 {
		// Admission control guarantees every queued job fits the cluster,
		// so an empty pool here means the controller's bookkeeping broke.
		panic("jobs waiting but no node available for scheduling")
	}

	loads := make(map[int]int, len(available))
	for _, id := range available {
		loads[id] = s.power.GetNodeJobCount(id)
	}

	pool := make([]int, 0, len(available))
	for _, id := range available {
		if loads[id] == 0 {
			pool = append(pool, id)
		}
	}
	var toExecute []*models.Job
	stillWaiting := s.waitingJobs[:0]
	now := s.sink.Now()

	for _, job := range s.waitingJobs {
		if job.RequestedResources > len(pool) {
			stillWaiting = append(stillWaiting, job)
			s.log.Debug("job does not fit yet", map[string]interface{}{
				"job":       job.ID,
				"requested": job.RequestedResources,
				"pool":      len(pool),
			})
			continue
		}

		// Least-loaded first, node id as the deterministic tie-break
		sort.Slice(pool, func(i, j int) bool {
			if loads[pool[i]] != loads[pool[j]] {
				return loads[pool[i]] < loads[pool[j]]
			}
			return pool[i] < pool[j]
		})

		selected := append([]int(nil), pool[:job.RequestedResources]...)
		pool = append([]int(nil), pool[job.RequestedResources:]...)

		for _, id := range selected {
			if err := s.power.AddJobToNode(id); err != nil {
				panic(fmt.Sprintf("allocation of available node %d failed: %v", id, err))
			}
			loads[id]++
		}

		job.Allocation = selected
		job.Status = models.JobStatusRunning
		job.StartTime = now
		toExecute = append(toExecute, job)
		s.runningJobs = append(s.runningJobs, job)
		s.stats.Scheduled++

		s.log.Debug("job scheduled", map[string]interface{}{
			"job":   job.ID,
			"nodes": selected,
		})
	}

	s.waitingJobs = stillWaiting

	if len(toExecute) > 0 {
		s.stats.Batches++
		s.sink.ExecuteJobs(toExecute)
	}
}
