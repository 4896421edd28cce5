package tasks

import "time"

// Timeout budgets. Short operations finish in well under a minute on the worker;
// bulk operations walk a whole market.
const (
	ShortBudget = 120 * time.Second
	BulkBudget  = 300 * time.Second
)

// KindTiming holds the fixed polling cadence and timeout budget of a kind.
type KindTiming struct {
	Kind         Kind
	PollInterval time.Duration
	Budget       time.Duration
	Description  string
}

var kindTimings = map[Kind]KindTiming{
	KindListSync: {
		Kind:         KindListSync,
		PollInterval: 3 * time.Second,
		Budget:       BulkBudget,
		Description:  "Refreshing instrument list",
	},
	KindHistorySync: {
		Kind:         KindHistorySync,
		PollInterval: 2 * time.Second,
		Budget:       ShortBudget,
		Description:  "Syncing trade history",
	},
	KindAnalysis: {
		Kind:         KindAnalysis,
		PollInterval: 3 * time.Second,
		Budget:       BulkBudget,
		Description:  "Screening instruments",
	},
	KindCompare: {
		Kind:         KindCompare,
		PollInterval: 2 * time.Second,
		Budget:       ShortBudget,
		Description:  "Comparing portfolio with account",
	},
}

// TimingFor returns the timing of a kind. Unknown kinds get the short budget.
func TimingFor(kind Kind) KindTiming {
	if timing, ok := kindTimings[kind]; ok {
		return timing
	}
	return KindTiming{Kind: kind, PollInterval: 2 * time.Second, Budget: ShortBudget, Description: string(kind)}
}
