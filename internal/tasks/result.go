package tasks

import (
	"encoding/json"
	"fmt"
)

// Result is the kind-tagged output of a completed task. The set of implementations is
// closed; use Visit or the As* helpers to extract one.
type Result interface {
	Kind() Kind
	isResult()
}

// ListSyncResult holds the counts of an instrument list refresh.
type ListSyncResult struct {
	Counts ListSyncCounts `json:"counts"`
}

// HistorySyncResult holds trade records in the order the worker reported them.
type HistorySyncResult struct {
	Trades []TradeRecord `json:"trades"`
}

// AnalysisResult holds scored records, highest score first.
type AnalysisResult struct {
	Records []AnalysisRecord `json:"records"`
}

// CompareResult holds one record per compared instrument.
type CompareResult struct {
	Records []CompareRecord `json:"records"`
}

func (*ListSyncResult) Kind() Kind    { return KindListSync }
func (*HistorySyncResult) Kind() Kind { return KindHistorySync }
func (*AnalysisResult) Kind() Kind    { return KindAnalysis }
func (*CompareResult) Kind() Kind     { return KindCompare }

func (*ListSyncResult) isResult()    {}
func (*HistorySyncResult) isResult() {}
func (*AnalysisResult) isResult()    {}
func (*CompareResult) isResult()     {}

// ResultVisitor must handle every result kind.
type ResultVisitor interface {
	VisitListSync(r *ListSyncResult) error
	VisitHistorySync(r *HistorySyncResult) error
	VisitAnalysis(r *AnalysisResult) error
	VisitCompare(r *CompareResult) error
}

// Visit dispatches r to the matching visitor method.
func Visit(r Result, v ResultVisitor) error {
	switch res := r.(type) {
	case *ListSyncResult:
		return v.VisitListSync(res)
	case *HistorySyncResult:
		return v.VisitHistorySync(res)
	case *AnalysisResult:
		return v.VisitAnalysis(res)
	case *CompareResult:
		return v.VisitCompare(res)
	case nil:
		return fmt.Errorf("nil result")
	default:
		return fmt.Errorf("unsupported result type %T", r)
	}
}

// EmptyResult returns the empty result of a kind. An empty result set is valid.
func EmptyResult(kind Kind) (Result, error) {
	switch kind {
	case KindListSync:
		return &ListSyncResult{}, nil
	case KindHistorySync:
		return &HistorySyncResult{Trades: []TradeRecord{}}, nil
	case KindAnalysis:
		return &AnalysisResult{Records: []AnalysisRecord{}}, nil
	case KindCompare:
		return &CompareResult{Records: []CompareRecord{}}, nil
	}
	return nil, fmt.Errorf("unknown task kind %q", kind)
}

// AsHistorySync extracts a history sync result or reports a kind mismatch.
func AsHistorySync(r Result) (*HistorySyncResult, error) {
	if res, ok := r.(*HistorySyncResult); ok {
		return res, nil
	}
	return nil, kindMismatch(KindHistorySync, r)
}

// AsAnalysis extracts an analysis result or reports a kind mismatch.
func AsAnalysis(r Result) (*AnalysisResult, error) {
	if res, ok := r.(*AnalysisResult); ok {
		return res, nil
	}
	return nil, kindMismatch(KindAnalysis, r)
}

// AsCompare extracts a compare result or reports a kind mismatch.
func AsCompare(r Result) (*CompareResult, error) {
	if res, ok := r.(*CompareResult); ok {
		return res, nil
	}
	return nil, kindMismatch(KindCompare, r)
}

// AsListSync extracts a list sync result or reports a kind mismatch.
func AsListSync(r Result) (*ListSyncResult, error) {
	if res, ok := r.(*ListSyncResult); ok {
		return res, nil
	}
	return nil, kindMismatch(KindListSync, r)
}

func kindMismatch(want Kind, r Result) error {
	if r == nil {
		return fmt.Errorf("expected %s result, got nil", want)
	}
	return fmt.Errorf("expected %s result, got %s", want, r.Kind())
}

// MarshalResult encodes a result as {"kind": ..., "data": ...}.
func MarshalResult(r Result) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("nil result")
	}
	return json.Marshal(struct {
		Kind Kind   `json:"kind"`
		Data Result `json:"data"`
	}{Kind: r.Kind(), Data: r})
}
