package engine

import (
	"container/heap"

	"github.com/huyongqii/green-energy/pkg/models"
)

type eventKind int

const (
	evJobSubmission eventKind = iota
	evJobCompletion
	evRequestedCall
	evPStateChanged
)

// event is one entry in the engine's log. Events with equal timestamps
// keep their insertion order via seq.
type event struct {
	time    float64
	seq     int
	kind    eventKind
	job     *models.Job
	nodeIDs []int
	state   models.PState
}

// eventLog is a min-heap ordered by (time, seq)
type eventLog []*event

func (l eventLog) Len() int { return len(l) }

func (l eventLog) Less(i, j int) bool {
	if l[i].time != l[j].time {
		return l[i].time < l[j].time
	}
	return l[i].seq < l[j].seq
}

func (l eventLog) Swap(i, j int) { l[i], l[j] = l[j], l[i] }

func (l *eventLog) Push(x any) { *l = append(*l, x.(*event)) }

func (l *eventLog) Pop() any {
	old := *l
	n := len(old)
	ev := old[n-1]
	old[n-1] = nil
	*l = old[:n-1]
	return ev
}

var _ heap.Interface = (*eventLog)(nil)
