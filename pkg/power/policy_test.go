package power

import (
	"reflect"
	"testing"
)

func TestQueueDepthPolicyDecide(t *testing.T) {
	tests := []struct {
		name   string
		policy QueueDepthPolicy
		view   ClusterView
		want   []Action
	}{
		{
			name:   "excess idle nodes go to sleep",
			policy: QueueDepthPolicy{SpareNodes: 2},
			view: ClusterView{
				Computing:      1,
				Idle:           []int{1, 2, 3, 4, 5},
				TotalResources: 6,
			},
			want: []Action{{Op: OpSleep, NodeIDs: []int{3, 4, 5}}},
		},
		{
			name:   "reserve matches idle means no action",
			policy: QueueDepthPolicy{SpareNodes: 2},
			view: ClusterView{
				Computing:      4,
				Idle:           []int{4, 5},
				TotalResources: 6,
			},
			want: nil,
		},
		{
			name:   "queue demand raises the reserve",
			policy: QueueDepthPolicy{SpareNodes: 2},
			view: ClusterView{
				Computing:        2,
				Idle:             []int{2, 3},
				Sleeping:         []int{4, 5},
				WaitingJobs:      2,
				WaitingResources: 4,
				TotalResources:   6,
			},
			want: []Action{{Op: OpWake, NodeIDs: []int{4, 5}}},
		},
		{
			name:   "one large waiting job wakes its full demand",
			policy: QueueDepthPolicy{SpareNodes: 2},
			view: ClusterView{
				Idle:             []int{0, 1},
				Sleeping:         []int{2, 3, 4, 5, 6, 7},
				WaitingJobs:      1,
				WaitingResources: 5,
				TotalResources:   8,
			},
			want: []Action{{Op: OpWake, NodeIDs: []int{2, 3, 4}}},
		},
		{
			name:   "powered off nodes boot when sleeping pool is short",
			policy: QueueDepthPolicy{SpareNodes: 2},
			view: ClusterView{
				Idle:             nil,
				Sleeping:         []int{3},
				PoweredOff:       []int{4, 5},
				WaitingJobs:      1,
				WaitingResources: 3,
				TotalResources:   6,
			},
			want: []Action{
				{Op: OpWake, NodeIDs: []int{3}},
				{Op: OpPowerOn, NodeIDs: []int{4, 5}},
			},
		},
		{
			name:   "sleeping cap powers off the excess",
			policy: QueueDepthPolicy{SpareNodes: 2, MaxSleeping: 2},
			view: ClusterView{
				Computing:      2,
				Idle:           []int{2, 3},
				Sleeping:       []int{4, 5, 6, 7},
				TotalResources: 8,
			},
			want: []Action{{Op: OpPowerOff, NodeIDs: []int{6, 7}}},
		},
		{
			name:   "no power off while waking",
			policy: QueueDepthPolicy{SpareNodes: 2, MaxSleeping: 1},
			view: ClusterView{
				Idle:             nil,
				Sleeping:         []int{2, 3, 4, 5},
				WaitingJobs:      1,
				WaitingResources: 1,
				TotalResources:   6,
			},
			want: []Action{{Op: OpWake, NodeIDs: []int{2, 3}}},
		},
		{
			name:   "forecast raises the reserve",
			policy: QueueDepthPolicy{SpareNodes: 1},
			view: ClusterView{
				Computing:         2,
				Idle:              []int{2},
				Sleeping:          []int{3, 4, 5},
				ForecastComputing: 5.2,
				HasForecast:       true,
				TotalResources:    6,
			},
			want: []Action{{Op: OpWake, NodeIDs: []int{3, 4}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.policy.Decide(tt.view)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Decide() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNoopPolicy(t *testing.T) {
	view := ClusterView{Idle: []int{0, 1, 2, 3}, TotalResources: 4}
	if got := (NoopPolicy{}).Decide(view); got != nil {
		t.Errorf("NoopPolicy.Decide() = %v, want nil", got)
	}
}
