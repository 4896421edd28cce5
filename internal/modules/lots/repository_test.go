package lots

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	testutil "github.com/aristath/splitrelay/internal/testing"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	return NewRepository(testutil.NewTestDB(t, "portfolio"), zerolog.New(nil).Level(zerolog.Disabled))
}

func openLot(t *testing.T, repo *Repository, code string, price float64, qty int, opened int) *Lot {
	t.Helper()
	lot := &Lot{Owner: "owner-1", Code: code, Price: price, Quantity: qty, OpenedDate: day(opened)}
	require.NoError(t, repo.Create(context.Background(), lot))
	return lot
}

func TestRepository_CreateAssignsRounds(t *testing.T) {
	repo := newTestRepository(t)

	a := openLot(t, repo, "005930", 10000, 10, 1)
	b := openLot(t, repo, "005930", 9500, 10, 2)
	c := openLot(t, repo, "000660", 120000, 1, 2)

	assert.Equal(t, 1, a.SequenceNumber)
	assert.Equal(t, 2, b.SequenceNumber)
	assert.Equal(t, 1, c.SequenceNumber)
	assert.Equal(t, StatusOpen, a.Status)

	got, err := repo.GetByID(context.Background(), "owner-1", b.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 9500.0, got.Price)
	assert.True(t, day(2).Equal(got.OpenedDate))

	missing, err := repo.GetByID(context.Background(), "owner-1", 999)
	require.NoError(t, err)
	assert.Nil(t, missing)

	err = repo.Create(context.Background(), &Lot{Owner: "owner-1", Code: "X", Price: 1, Quantity: 0, OpenedDate: day(1)})
	assert.Error(t, err)
}

func TestRepository_CloseAndOpenLots(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	first := openLot(t, repo, "005930", 10000, 10, 1)
	openLot(t, repo, "005930", 9500, 10, 2)
	openLot(t, repo, "000660", 120000, 1, 3)

	require.NoError(t, repo.Close(ctx, "owner-1", first.ID, 10500, day(4)))
	assert.ErrorIs(t, repo.Close(ctx, "owner-1", first.ID, 10500, day(4)), ErrLotNotFound)
	assert.ErrorIs(t, repo.Close(ctx, "owner-2", first.ID+1, 10500, day(4)), ErrLotNotFound)

	closed, err := repo.GetByID(ctx, "owner-1", first.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, closed.Status)
	require.NotNil(t, closed.ClosedPrice)
	assert.Equal(t, 10500.0, *closed.ClosedPrice)

	open, err := repo.OpenLots(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, "005930", open[0].Code, "ordered by opening date")

	none, err := repo.OpenLots(ctx, "owner-2")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRepository_ApplyRenumbering(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	first := openLot(t, repo, "005930", 10000, 10, 1)
	openLot(t, repo, "005930", 9500, 10, 2)
	openLot(t, repo, "005930", 9000, 10, 3)
	other := openLot(t, repo, "000660", 120000, 1, 1)
	require.NoError(t, repo.Close(ctx, "owner-1", first.ID, 10500, day(4)))

	before, err := repo.OpenLotsByCode(ctx, "owner-1", "005930")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, seqs(before))

	res, err := repo.ApplyRenumbering(ctx, "owner-1", "005930")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, seqs(res.Lots))
	assert.Len(t, res.Changes, 2)

	after, err := repo.OpenLotsByCode(ctx, "owner-1", "005930")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, seqs(after))
	assert.Equal(t, 9500.0, after[0].Price)

	again, err := repo.ApplyRenumbering(ctx, "owner-1", "005930")
	require.NoError(t, err)
	assert.Empty(t, again.Changes)
	assert.Equal(t, []int{1, 2}, seqs(again.Lots))

	untouched, err := repo.GetByID(ctx, "owner-1", other.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, untouched.SequenceNumber)

	// The next purchase continues after the compacted rounds
	next := openLot(t, repo, "005930", 8500, 10, 5)
	assert.Equal(t, 3, next.SequenceNumber)
}
