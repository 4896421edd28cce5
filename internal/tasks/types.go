package tasks

import (
	"fmt"
	"time"
)

// Kind identifies the operation a task asks the worker to perform.
type Kind string

const (
	// KindListSync refreshes the tradable instrument list.
	KindListSync Kind = "list_sync"
	// KindHistorySync pulls the account's executed trades for reconciliation.
	KindHistorySync Kind = "history_sync"
	// KindAnalysis screens instruments for split-buy suitability.
	KindAnalysis Kind = "analysis"
	// KindCompare compares account holdings against tracked lots per instrument.
	KindCompare Kind = "compare"
)

// AllKinds lists every supported kind in a stable order.
var AllKinds = []Kind{KindListSync, KindHistorySync, KindAnalysis, KindCompare}

// ParseKind converts a wire value into a Kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range AllKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", &ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown task kind %q", s)}
}

// Status is the registry-side status of a task. Only the worker moves a task past Pending.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether no further transitions can follow.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// rank orders statuses so that monotonicity can be checked.
func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusProcessing:
		return 1
	case StatusCompleted, StatusFailed:
		return 2
	default:
		return -1
	}
}

// CanAdvanceTo reports whether moving from s to next respects
// Pending -> Processing -> {Completed, Failed}.
func (s Status) CanAdvanceTo(next Status) bool {
	if s.IsTerminal() || next.rank() < 0 {
		return false
	}
	return next.rank() > s.rank()
}

// ParseStatus converts a registry value into a Status.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown task status %q", s)
}

// Task is a single row of the task registry.
type Task struct {
	ID            string
	Owner         string
	Kind          Kind
	Status        Status
	Params        Params
	SubmittedAt   time.Time
	CompletedAt   *time.Time
	ResultMessage string
}

// Handle is returned by Submit and threads the task id through the session lifecycle.
type Handle struct {
	ID   string `json:"id"`
	Kind Kind   `json:"kind"`
}

// TradeSide is the direction of an executed trade.
type TradeSide string

const (
	SideBuy  TradeSide = "buy"
	SideSell TradeSide = "sell"
)

// TradeRecord is one execution reported by the worker for a history sync.
type TradeRecord struct {
	Date     string    `json:"date" msgpack:"date"` // YYYY-MM-DD
	Time     string    `json:"time" msgpack:"time"` // HH:MM:SS
	Code     string    `json:"code" msgpack:"code"`
	Side     TradeSide `json:"side" msgpack:"side"`
	Quantity int       `json:"quantity" msgpack:"quantity"`
	Price    float64   `json:"price" msgpack:"price"`
}

// ListSyncCounts summarises an instrument list refresh.
type ListSyncCounts struct {
	Total    int `json:"total"`
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Failed   int `json:"failed"`
}

// AnalysisRecord is one scored instrument from a screening run.
type AnalysisRecord struct {
	Code             string  `json:"code"`
	Name             string  `json:"name"`
	Market           string  `json:"market"`
	SuitabilityScore float64 `json:"suitability_score"`
	Recommendation   string  `json:"recommendation"` // strong, good, neutral, weak
	VolatilityScore  float64 `json:"volatility_score"`
	RecoveryRate     float64 `json:"recovery_success_rate"`
	Trend1Y          float64 `json:"trend_1y"`
	AvgTradingValue  int64   `json:"avg_trading_value"`
}

// CompareStatus classifies one instrument in a portfolio comparison.
type CompareStatus string

const (
	CompareMatch     CompareStatus = "match"
	CompareMismatch  CompareStatus = "mismatch"
	CompareUntracked CompareStatus = "untracked" // held in the account, no tracked lots
	CompareMissing   CompareStatus = "missing"   // tracked lots, nothing held in the account
)

// CompareRecord is the per-instrument outcome of a portfolio comparison.
type CompareRecord struct {
	Code            string        `json:"code"`
	Name            string        `json:"name"`
	AccountQuantity int           `json:"account_quantity"`
	AccountAvgPrice float64       `json:"account_avg_price"`
	TrackedQuantity int           `json:"tracked_quantity"`
	TrackedAvgPrice float64       `json:"tracked_avg_price"`
	Status          CompareStatus `json:"status"`
}
