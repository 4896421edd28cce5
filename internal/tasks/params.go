package tasks

import (
	"fmt"
	"regexp"
)

// Params are the kind-specific parameters of a task.
type Params interface {
	Kind() Kind
	Validate() error
}

// Parameter bounds. The worker's API limits drive these values.
const (
	MaxHistoryDays      = 90
	MinAnalysisDays     = 30
	MaxAnalysisDays     = 730
	MaxAnalysisStocks   = 500
	MaxCompareCodes     = 50
	DefaultAnalysisDays = 365
	DefaultMaxStocks    = 100
	DefaultMarket       = "2001"
)

var (
	listSyncMarkets = map[string]bool{"STK": true, "KSQ": true, "ETF": true}

	// 0000 all, 0001 KOSPI, 1001 KOSDAQ, 2001 KOSPI200
	analysisMarkets = map[string]bool{"0000": true, "0001": true, "1001": true, "2001": true}

	instrumentCode = regexp.MustCompile(`^[0-9A-Z]{6}$`)
)

// ListSyncParams selects which market lists to refresh. Empty means all.
type ListSyncParams struct {
	Markets []string `json:"markets,omitempty" msgpack:"markets"`
}

func (p *ListSyncParams) Kind() Kind { return KindListSync }

func (p *ListSyncParams) Validate() error {
	seen := make(map[string]bool, len(p.Markets))
	for _, m := range p.Markets {
		if !listSyncMarkets[m] {
			return &ValidationError{Field: "markets", Reason: fmt.Sprintf("unsupported market %q", m)}
		}
		if seen[m] {
			return &ValidationError{Field: "markets", Reason: fmt.Sprintf("duplicate market %q", m)}
		}
		seen[m] = true
	}
	return nil
}

// HistorySyncParams is the lookback window in days.
type HistorySyncParams struct {
	Days int `json:"days" msgpack:"days"`
}

func (p *HistorySyncParams) Kind() Kind { return KindHistorySync }

func (p *HistorySyncParams) Validate() error {
	if p.Days < 1 || p.Days > MaxHistoryDays {
		return &ValidationError{Field: "days", Reason: fmt.Sprintf("must be between 1 and %d, got %d", MaxHistoryDays, p.Days)}
	}
	return nil
}

// AnalysisParams configures a screening run.
type AnalysisParams struct {
	Market       string `json:"market" msgpack:"market"`
	MaxStocks    int    `json:"max_stocks" msgpack:"max_stocks"`
	Days         int    `json:"days" msgpack:"days"`
	MinMarketCap int64  `json:"min_market_cap" msgpack:"min_market_cap"` // 100M KRW units
}

func (p *AnalysisParams) Kind() Kind { return KindAnalysis }

// ApplyDefaults fills zero values with the screening defaults.
func (p *AnalysisParams) ApplyDefaults() {
	if p.Market == "" {
		p.Market = DefaultMarket
	}
	if p.MaxStocks == 0 {
		p.MaxStocks = DefaultMaxStocks
	}
	if p.Days == 0 {
		p.Days = DefaultAnalysisDays
	}
}

func (p *AnalysisParams) Validate() error {
	if !analysisMarkets[p.Market] {
		return &ValidationError{Field: "market", Reason: fmt.Sprintf("unsupported market %q", p.Market)}
	}
	if p.MaxStocks < 1 || p.MaxStocks > MaxAnalysisStocks {
		return &ValidationError{Field: "max_stocks", Reason: fmt.Sprintf("must be between 1 and %d, got %d", MaxAnalysisStocks, p.MaxStocks)}
	}
	if p.Days < MinAnalysisDays || p.Days > MaxAnalysisDays {
		return &ValidationError{Field: "days", Reason: fmt.Sprintf("must be between %d and %d, got %d", MinAnalysisDays, MaxAnalysisDays, p.Days)}
	}
	if p.MinMarketCap < 0 {
		return &ValidationError{Field: "min_market_cap", Reason: "must not be negative"}
	}
	return nil
}

// CompareParams lists the instruments to compare.
type CompareParams struct {
	Codes []string `json:"codes" msgpack:"codes"`
}

func (p *CompareParams) Kind() Kind { return KindCompare }

func (p *CompareParams) Validate() error {
	if len(p.Codes) == 0 || len(p.Codes) > MaxCompareCodes {
		return &ValidationError{Field: "codes", Reason: fmt.Sprintf("must list between 1 and %d codes, got %d", MaxCompareCodes, len(p.Codes))}
	}
	seen := make(map[string]bool, len(p.Codes))
	for _, c := range p.Codes {
		if !instrumentCode.MatchString(c) {
			return &ValidationError{Field: "codes", Reason: fmt.Sprintf("invalid instrument code %q", c)}
		}
		if seen[c] {
			return &ValidationError{Field: "codes", Reason: fmt.Sprintf("duplicate instrument code %q", c)}
		}
		seen[c] = true
	}
	return nil
}

// NewParams returns an empty parameter value for kind, ready to be decoded into.
func NewParams(kind Kind) (Params, error) {
	switch kind {
	case KindListSync:
		return &ListSyncParams{}, nil
	case KindHistorySync:
		return &HistorySyncParams{}, nil
	case KindAnalysis:
		return &AnalysisParams{}, nil
	case KindCompare:
		return &CompareParams{}, nil
	}
	return nil, &ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown task kind %q", kind)}
}
