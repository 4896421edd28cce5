package tasks

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type kindCollector struct {
	seen []Kind
}

func (k *kindCollector) VisitListSync(r *ListSyncResult) error {
	k.seen = append(k.seen, KindListSync)
	return nil
}

func (k *kindCollector) VisitHistorySync(r *HistorySyncResult) error {
	k.seen = append(k.seen, KindHistorySync)
	return nil
}

func (k *kindCollector) VisitAnalysis(r *AnalysisResult) error {
	k.seen = append(k.seen, KindAnalysis)
	return nil
}

func (k *kindCollector) VisitCompare(r *CompareResult) error {
	k.seen = append(k.seen, KindCompare)
	return nil
}

func TestVisit_DispatchesEveryKind(t *testing.T) {
	v := &kindCollector{}
	for _, kind := range AllKinds {
		r, err := EmptyResult(kind)
		require.NoError(t, err)
		require.NoError(t, Visit(r, v))
	}
	assert.Equal(t, AllKinds, v.seen)
	assert.Error(t, Visit(nil, v))
}

func TestMarshalResult(t *testing.T) {
	data, err := MarshalResult(&ListSyncResult{Counts: ListSyncCounts{Total: 3, Inserted: 2, Updated: 1}})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "list_sync", decoded["kind"])
	assert.Contains(t, decoded, "data")

	_, err = MarshalResult(nil)
	assert.Error(t, err)
}

type stubStore struct {
	result Result
	err    error
}

func (s stubStore) FetchResult(ctx context.Context, taskID string, kind Kind) (Result, error) {
	return s.result, s.err
}

func TestResultFetcher(t *testing.T) {
	ctx := context.Background()

	res, err := NewResultFetcher(stubStore{}).FetchResult(ctx, "t1", KindAnalysis)
	require.NoError(t, err)
	analysis, err := AsAnalysis(res)
	require.NoError(t, err)
	assert.Empty(t, analysis.Records)

	_, err = NewResultFetcher(stubStore{result: &CompareResult{}}).FetchResult(ctx, "t1", KindAnalysis)
	assert.Error(t, err)

	_, err = NewResultFetcher(nil).FetchResult(ctx, "t1", KindAnalysis)
	assert.Error(t, err)

	f := NewResultFetcher(stubStore{})
	assert.Same(t, f, NewResultFetcher(f))
}
