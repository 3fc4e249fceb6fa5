package models

// Node represents a compute node in the simulated cluster.
// Nodes are owned exclusively by the power controller; every other
// component refers to them by ID only.
type Node struct {
	ID       int    `json:"id"`
	State    PState `json:"state"`
	JobCount int    `json:"job_count"`
}

// NewNode constructs a node in the idle state
func NewNode(id int) *Node {
	return &Node{ID: id, State: PStateIdle}
}

// StateCounts aggregates how many nodes are in each power state
type StateCounts map[PState]int

// CountStates tallies nodes per power state, with every state present
// in the result even when its count is zero.
func CountStates(nodes []*Node) StateCounts {
	counts := make(StateCounts, len(validPStateTransitions))
	for _, state := range AllPStates() {
		counts[state] = 0
	}
	for _, n := range nodes {
		counts[n.State]++
	}
	return counts
}
