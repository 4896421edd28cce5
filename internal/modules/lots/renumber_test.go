package lots

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func day(n int) time.Time {
	return time.Date(2026, 1, n, 0, 0, 0, 0, time.UTC)
}

func seqs(lots []Lot) []int {
	out := make([]int, len(lots))
	for i, l := range lots {
		out[i] = l.SequenceNumber
	}
	return out
}

func TestRenumber_CompactsGaps(t *testing.T) {
	in := []Lot{
		{ID: 10, SequenceNumber: 2, OpenedDate: day(2)},
		{ID: 11, SequenceNumber: 3, OpenedDate: day(3)},
	}

	out, changes := Renumber(in)
	assert.Equal(t, []int{1, 2}, seqs(out))
	assert.Equal(t, []Change{{LotID: 10, From: 2, To: 1}, {LotID: 11, From: 3, To: 2}}, changes)
	assert.Equal(t, []int{2, 3}, seqs(in), "input untouched")

	again, changes := Renumber(out)
	assert.Equal(t, []int{1, 2}, seqs(again))
	assert.Empty(t, changes)
}

func TestRenumber_PreservesRelativeOrder(t *testing.T) {
	in := []Lot{
		{ID: 3, SequenceNumber: 7, OpenedDate: day(7)},
		{ID: 1, SequenceNumber: 1, OpenedDate: day(1)},
		{ID: 2, SequenceNumber: 4, OpenedDate: day(4)},
	}

	out, _ := Renumber(in)
	assert.Equal(t, []int{1, 2, 3}, seqs(out))
	assert.Equal(t, []int64{1, 2, 3}, []int64{out[0].ID, out[1].ID, out[2].ID})
}

func TestRenumber_TiesFallBackToOpeningDate(t *testing.T) {
	in := []Lot{
		{ID: 2, SequenceNumber: 2, OpenedDate: day(5)},
		{ID: 1, SequenceNumber: 2, OpenedDate: day(4)},
	}
	out, _ := Renumber(in)
	assert.Equal(t, int64(1), out[0].ID)
	assert.Equal(t, []int{1, 2}, seqs(out))
}

func TestRenumber_Empty(t *testing.T) {
	out, changes := Renumber(nil)
	assert.Empty(t, out)
	assert.Empty(t, changes)
}
