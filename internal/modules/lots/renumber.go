package lots

import "sort"

// Change records one sequence number rewritten by Renumber.
type Change struct {
	LotID int64 `json:"lot_id"`
	From  int   `json:"from"`
	To    int   `json:"to"`
}

// Renumber compacts the sequence numbers of one instrument's open lots to 1..N, keeping
// their relative order. Ties on the old number fall back to opening date, then id.
// The input is not modified. Applying it to a contiguous sequence changes nothing.
func Renumber(lots []Lot) ([]Lot, []Change) {
	out := make([]Lot, len(lots))
	copy(out, lots)

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.SequenceNumber != b.SequenceNumber {
			return a.SequenceNumber < b.SequenceNumber
		}
		if !a.OpenedDate.Equal(b.OpenedDate) {
			return a.OpenedDate.Before(b.OpenedDate)
		}
		return a.ID < b.ID
	})

	var changes []Change
	for i := range out {
		next := i + 1
		if out[i].SequenceNumber != next {
			changes = append(changes, Change{LotID: out[i].ID, From: out[i].SequenceNumber, To: next})
			out[i].SequenceNumber = next
		}
	}
	return out, changes
}
