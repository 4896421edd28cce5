package tasks

import (
	"context"
	"fmt"
)

// ResultFetcher issues the single result read of a completed task. A store returning no
// rows yields the empty result of the kind, which is not an error.
type ResultFetcher struct {
	store ResultStore
}

// NewResultFetcher wraps store.
func NewResultFetcher(store ResultStore) *ResultFetcher {
	if f, ok := store.(*ResultFetcher); ok {
		return f
	}
	return &ResultFetcher{store: store}
}

// FetchResult reads the result set keyed by taskID and checks its kind.
func (f *ResultFetcher) FetchResult(ctx context.Context, taskID string, kind Kind) (Result, error) {
	if f.store == nil {
		return nil, fmt.Errorf("no result store configured")
	}
	result, err := f.store.FetchResult(ctx, taskID, kind)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return EmptyResult(kind)
	}
	if result.Kind() != kind {
		return nil, fmt.Errorf("result of task %s is %s, expected %s", taskID, result.Kind(), kind)
	}
	return result, nil
}
