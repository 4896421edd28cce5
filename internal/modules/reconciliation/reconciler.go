// Package reconciliation matches executed buy trades reported by the worker against the
// locally tracked open lots. It only reports; lots are never modified here.
package reconciliation

import (
	"math"
	"sort"

	"github.com/aristath/splitrelay/internal/modules/lots"
	"github.com/aristath/splitrelay/internal/tasks"
)

// PriceTolerance is the largest accepted relative price difference, measured against the
// reported price. Quantities must match exactly.
const PriceTolerance = 0.01

// Classification of one buy-side trade record.
type Classification string

const (
	Matched Classification = "matched"
	// NoLot means no open lot of the instrument exists.
	NoLot Classification = "no_lot"
	// NoQualifyingLot means open lots exist but none qualifies.
	NoQualifyingLot Classification = "no_qualifying_lot"
)

// Unmatched reasons, for operator guidance.
const (
	ReasonNoOpenLot      = "no open lot for this instrument"
	ReasonQuantity       = "no open lot with the same quantity"
	ReasonPrice          = "price outside tolerance"
	ReasonAlreadyMatched = "qualifying lots already matched by earlier records"
	ReasonMissingPrice   = "reported price is not positive"
)

// Entry is the outcome for one buy-side record.
type Entry struct {
	Record         tasks.TradeRecord `json:"record"`
	Classification Classification    `json:"classification"`
	Lot            *lots.Lot         `json:"lot,omitempty"`
	PriceDiff      float64           `json:"price_diff,omitempty"` // relative, matched entries only
	Candidates     int               `json:"candidates"`
	Reason         string            `json:"reason,omitempty"`
}

// Summary counts the report.
type Summary struct {
	Buys            int `json:"buys"`
	Matched         int `json:"matched"`
	NoLot           int `json:"no_lot"`
	NoQualifyingLot int `json:"no_qualifying_lot"`
	SellsSkipped    int `json:"sells_skipped"`
}

// Counts returns the summary keyed by classification.
func (s Summary) Counts() map[string]int {
	return map[string]int{
		string(Matched):         s.Matched,
		string(NoLot):           s.NoLot,
		string(NoQualifyingLot): s.NoQualifyingLot,
	}
}

// Report is the full reconciliation output.
type Report struct {
	Matched   []Entry             `json:"matched"`
	Unmatched []Entry             `json:"unmatched"`
	Skipped   []tasks.TradeRecord `json:"skipped_sells"`
	Summary   Summary             `json:"summary"`
}

// Reconcile classifies every buy-side record in order. A lot matches a record when the
// quantity is equal and the price is within PriceTolerance; among several qualifying lots
// the earliest opened wins, and a matched lot is not reused. Sell-side records are
// reported as skipped.
func Reconcile(trades []tasks.TradeRecord, open []lots.Lot) Report {
	byCode := make(map[string][]lots.Lot)
	for _, l := range open {
		if l.Status != "" && l.Status != lots.StatusOpen {
			continue
		}
		byCode[l.Code] = append(byCode[l.Code], l)
	}
	for code := range byCode {
		candidates := byCode[code]
		sort.SliceStable(candidates, func(i, j int) bool {
			a, b := candidates[i], candidates[j]
			if !a.OpenedDate.Equal(b.OpenedDate) {
				return a.OpenedDate.Before(b.OpenedDate)
			}
			if a.SequenceNumber != b.SequenceNumber {
				return a.SequenceNumber < b.SequenceNumber
			}
			return a.ID < b.ID
		})
	}

	report := Report{
		Matched:   []Entry{},
		Unmatched: []Entry{},
		Skipped:   []tasks.TradeRecord{},
	}
	// consumed[code][i] marks byCode[code][i] as matched earlier in this run
	consumed := make(map[string][]bool, len(byCode))
	for code, candidates := range byCode {
		consumed[code] = make([]bool, len(candidates))
	}

	for _, rec := range trades {
		if rec.Side != tasks.SideBuy {
			report.Skipped = append(report.Skipped, rec)
			report.Summary.SellsSkipped++
			continue
		}
		report.Summary.Buys++

		entry, idx := classify(rec, byCode[rec.Code], consumed[rec.Code])
		switch entry.Classification {
		case Matched:
			consumed[rec.Code][idx] = true
			report.Matched = append(report.Matched, entry)
			report.Summary.Matched++
		case NoLot:
			report.Unmatched = append(report.Unmatched, entry)
			report.Summary.NoLot++
		default:
			report.Unmatched = append(report.Unmatched, entry)
			report.Summary.NoQualifyingLot++
		}
	}
	return report
}

// classify returns the entry for rec and, when it matched, the index of the matched
// candidate. used runs parallel to candidates.
func classify(rec tasks.TradeRecord, candidates []lots.Lot, used []bool) (Entry, int) {
	entry := Entry{Record: rec, Candidates: len(candidates)}
	if len(candidates) == 0 {
		entry.Classification = NoLot
		entry.Reason = ReasonNoOpenLot
		return entry, -1
	}

	entry.Classification = NoQualifyingLot
	if rec.Price <= 0 {
		entry.Reason = ReasonMissingPrice
		return entry, -1
	}

	sameQuantity, qualifiedButUsed := false, false
	for i := range candidates {
		lot := candidates[i]
		if lot.Quantity != rec.Quantity {
			continue
		}
		sameQuantity = true
		diff := math.Abs(lot.Price-rec.Price) / rec.Price
		if !withinTolerance(diff) {
			continue
		}
		if used[i] {
			qualifiedButUsed = true
			continue
		}
		entry.Classification = Matched
		entry.Lot = &lot
		entry.PriceDiff = diff
		entry.Reason = ""
		return entry, i
	}

	switch {
	case qualifiedButUsed:
		entry.Reason = ReasonAlreadyMatched
	case sameQuantity:
		entry.Reason = ReasonPrice
	default:
		entry.Reason = ReasonQuantity
	}
	return entry, -1
}

// withinTolerance absorbs float rounding at exactly 1%.
func withinTolerance(diff float64) bool {
	return diff <= PriceTolerance+1e-12
}
