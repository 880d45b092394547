package dashboard

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saldi/internal/balance"
	"saldi/internal/cache"
	"saldi/internal/core"
	"saldi/internal/ledger"
	"saldi/internal/ledger/memory"
)

var now = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func day(m time.Month, d int) time.Time {
	return time.Date(2024, m, d, 0, 0, 0, 0, time.UTC)
}

func fixture() *memory.Store {
	libri := []core.Libro{{ID: "l1", Name: "Personale"}, {ID: "l2", Name: "Casa"}}
	conti := []core.Conto{
		{ID: "c1", LibroID: "l1", Name: "Corrente", Type: core.Checking, InitialBalance: core.Cents(100000), Active: true},
		{ID: "c2", LibroID: "l1", Name: "Risparmi", Type: core.Savings, InitialBalance: core.Cents(50000), Active: true},
		{ID: "c3", LibroID: "l1", Name: "Vecchio", Type: core.Cash, InitialBalance: core.Cents(1000), Active: false},
		{ID: "c4", LibroID: "l2", Name: "Comune", Type: core.Checking, Active: true},
	}
	txs := []core.Transaction{
		{ID: "t1", Date: day(5, 10), Amount: core.Cents(20000), Type: core.Income, ToContoID: "c1"},
		{ID: "t2", Date: day(6, 5), Amount: core.Cents(5000), Type: core.Expense, FromContoID: "c1"},
		{ID: "t3", Date: day(6, 10), Amount: core.Cents(10000), Type: core.Transfer, FromContoID: "c1", ToContoID: "c2"},
		{ID: "t4", Date: day(6, 20), Amount: core.Cents(3000), Type: core.Expense, FromContoID: "c1"},
		{ID: "t5", Date: day(4, 1), Amount: core.Cents(7000), Type: core.Income, ToContoID: "c4"},
	}
	return memory.New(libri, conti, txs)
}

func newService(store ledger.Store) *Service {
	return NewService(ledger.NewAccessor(store, nil), cache.NewLRUCache[Catalog](4, time.Minute), Options{
		Now:      func() time.Time { return now },
		Location: time.UTC,
	})
}

func balances(points []core.BalancePoint) []int64 {
	out := make([]int64, len(points))
	for i, p := range points {
		out[i] = p.Balance.Cents
	}
	return out
}

func TestHistoryLibro(t *testing.T) {
	svc := newService(fixture())

	view, err := svc.History(context.Background(), Selection{LibroIDs: []string{"l1"}, Period: core.PeriodMonth})
	require.NoError(t, err)

	assert.Equal(t, []string{"c1", "c2"}, view.Conti)
	assert.Equal(t, day(6, 1), view.Start)
	assert.Equal(t, []int64{170000, 165000, 165000, 162000, 162000}, balances(view.Points))
	assert.Equal(t, []int64{170000, 165000, 165000}, balances(view.Past))
	assert.Equal(t, []int64{165000, 162000, 162000}, balances(view.Future))
	assert.Equal(t, now, view.Future[0].Date)
	assert.Equal(t, int64(165000), view.Balance.Cents)
	assert.Equal(t, view.Past[len(view.Past)-1].Balance, view.Future[0].Balance)
}

func TestHistoryPastMonthReportsCurrentBalance(t *testing.T) {
	svc := newService(fixture())

	view, err := svc.History(context.Background(), Selection{ContoIDs: []string{"c1"}, Anchor: day(5, 1)})
	require.NoError(t, err)

	assert.Equal(t, day(5, 1), view.Start)
	assert.Equal(t, []int64{100000, 120000, 120000}, balances(view.Points))
	// June activity up to now: -5000 expense, -10000 transfer out.
	assert.Equal(t, int64(105000), view.Balance.Cents)

	for _, c := range svc.Conti(context.Background()) {
		if c.ID == "c1" {
			assert.Equal(t, c.Balance, view.Balance)
		}
	}
}

func TestHistoryExplicitInactiveConto(t *testing.T) {
	svc := newService(fixture())

	view, err := svc.History(context.Background(), Selection{ContoIDs: []string{"c3"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1000), view.Balance.Cents)
}

func TestHistoryAllPeriodStartsAtEarliest(t *testing.T) {
	svc := newService(fixture())

	view, err := svc.History(context.Background(), Selection{Period: core.PeriodAll})
	require.NoError(t, err)
	assert.Equal(t, day(4, 1), view.Start)
	assert.Equal(t, core.EndOfMonth(now), view.End)
	// c1 + c2 + c4, inactive c3 excluded.
	assert.Equal(t, int64(100000+50000+20000-5000+7000), view.Balance.Cents)
}

func TestHistoryUnknownEntity(t *testing.T) {
	svc := newService(fixture())

	_, err := svc.History(context.Background(), Selection{LibroIDs: []string{"missing"}})
	assert.ErrorIs(t, err, ErrUnknownEntity)
}

func TestHistoryCanceled(t *testing.T) {
	svc := newService(fixture())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.History(ctx, Selection{LibroIDs: []string{"l1"}})
	assert.ErrorIs(t, err, context.Canceled)
}

type failingStore struct{}

func (failingStore) FetchTransactions(context.Context, ledger.Query) ([]core.Transaction, error) {
	return nil, errors.New("unreachable")
}
func (failingStore) CountTransactions(context.Context, ledger.Query) (int, error) {
	return 0, errors.New("unreachable")
}
func (failingStore) ListConti(context.Context) ([]core.Conto, error) {
	return nil, errors.New("unreachable")
}
func (failingStore) ListLibri(context.Context) ([]core.Libro, error) {
	return nil, errors.New("unreachable")
}

func TestHistoryStoreFailureRendersEmpty(t *testing.T) {
	svc := newService(failingStore{})

	view, err := svc.History(context.Background(), Selection{})
	require.NoError(t, err)
	assert.True(t, view.Balance.IsZero())
	assert.NotEmpty(t, view.Points)
	for _, p := range view.Points {
		assert.True(t, p.Balance.IsZero())
	}
}

// hookStore runs hook once, in the middle of the first transaction fetch.
type hookStore struct {
	*memory.Store
	hook func()
}

func (h *hookStore) FetchTransactions(ctx context.Context, q ledger.Query) ([]core.Transaction, error) {
	if h.hook != nil {
		hook := h.hook
		h.hook = nil
		hook()
	}
	return h.Store.FetchTransactions(ctx, q)
}

func TestHistoryDropsStaleResult(t *testing.T) {
	store := &hookStore{Store: fixture()}
	svc := newService(store)
	store.hook = func() { svc.Invalidate(context.Background()) }

	sel := Selection{View: "chart", LibroIDs: []string{"l1"}}
	_, err := svc.History(context.Background(), sel)
	assert.ErrorIs(t, err, ErrStale)
	_, ok := svc.Latest("chart")
	assert.False(t, ok)

	view, err := svc.History(context.Background(), sel)
	require.NoError(t, err)
	snap, ok := svc.Latest("chart")
	require.True(t, ok)
	assert.Equal(t, view.Generation, snap.Generation)
	assert.Equal(t, view, snap.Value)
}

func TestHistoryNewerSelectionWins(t *testing.T) {
	store := &hookStore{Store: fixture()}
	svc := newService(store)

	var newer HistoryView
	store.hook = func() {
		var err error
		newer, err = svc.History(context.Background(), Selection{View: "chart", ContoIDs: []string{"c4"}})
		require.NoError(t, err)
	}

	_, err := svc.History(context.Background(), Selection{View: "chart", LibroIDs: []string{"l1"}})
	assert.ErrorIs(t, err, ErrStale)

	snap, ok := svc.Latest("chart")
	require.True(t, ok)
	assert.Equal(t, newer, snap.Value)
}

func TestMultiHistoryConti(t *testing.T) {
	svc := newService(fixture())

	view, err := svc.MultiHistory(context.Background(), MultiSelection{
		Level:  core.KindConto,
		IDs:    []string{"c3", "c1", "c4"},
		Months: 3,
	})
	require.NoError(t, err)
	require.Len(t, view.Series, 2)

	c1 := view.Series[0]
	assert.Equal(t, "c1", c1.EntityID)
	assert.Equal(t, balance.DefaultPalette[1], c1.Color)
	assert.Equal(t, []int64{100000, 120000, 105000}, balances(c1.Points))
	assert.Equal(t, now, c1.Points[2].Date)

	c4 := view.Series[1]
	assert.Equal(t, balance.DefaultPalette[2], c4.Color)
	assert.Equal(t, []int64{7000, 7000, 7000}, balances(c4.Points))
}

func TestMultiHistoryLibriDefaultsToAll(t *testing.T) {
	svc := newService(fixture())

	view, err := svc.MultiHistory(context.Background(), MultiSelection{Level: core.KindLibro, Months: 2})
	require.NoError(t, err)
	require.Len(t, view.Series, 2)
	assert.Equal(t, "l1", view.Series[0].EntityID)
	assert.Equal(t, []int64{170000, 165000}, balances(view.Series[0].Points))
	assert.Equal(t, []int64{7000, 7000}, balances(view.Series[1].Points))
}

func TestMultiHistoryUnknownLevel(t *testing.T) {
	svc := newService(fixture())
	_, err := svc.MultiHistory(context.Background(), MultiSelection{Level: "bogus"})
	assert.Error(t, err)
}

func TestSummary(t *testing.T) {
	svc := newService(fixture())

	view, err := svc.Summary(context.Background(), Selection{LibroIDs: []string{"l1"}}, time.Time{}, 2)
	require.NoError(t, err)

	assert.Equal(t, day(6, 1), view.Current.Month)
	assert.Equal(t, int64(8000), view.Current.Totals.Expense.Cents)
	assert.False(t, view.Current.SavingsRate.Valid)

	require.Len(t, view.Trailing, 2)
	assert.Equal(t, day(4, 1), view.Trailing[0].Month)
	assert.Equal(t, int64(20000), view.Trailing[1].Totals.Income.Cents)
	assert.True(t, decimal.NewFromInt(100).Equal(view.AverageIncome), view.AverageIncome.String())
}

func TestRecent(t *testing.T) {
	svc := newService(fixture())

	view, err := svc.Recent(context.Background(), Selection{ContoIDs: []string{"c1"}}, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, view.Total)
	require.Len(t, view.Transactions, 2)
	assert.Equal(t, "t3", view.Transactions[0].ID)
	assert.Equal(t, "t2", view.Transactions[1].ID)
}

type dirtyStore struct {
	*memory.Store
	extra []core.Transaction
}

func (d dirtyStore) FetchTransactions(ctx context.Context, q ledger.Query) ([]core.Transaction, error) {
	all, err := d.Store.FetchTransactions(ctx, ledger.Query{Range: q.Range, ContoIDs: q.ContoIDs})
	if err != nil {
		return nil, err
	}
	return q.Apply(append(all, d.extra...)), nil
}

func TestRecentPagesOverValidRecords(t *testing.T) {
	svc := newService(dirtyStore{Store: fixture(), extra: []core.Transaction{
		{ID: "bad", Date: day(6, 12), Amount: core.UnknownAmount, Type: core.Expense, FromContoID: "c1"},
	}})

	view, err := svc.Recent(context.Background(), Selection{ContoIDs: []string{"c1"}}, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, view.Total)
	require.Len(t, view.Transactions, 2)
	assert.Equal(t, "t3", view.Transactions[0].ID)
	assert.Equal(t, "t2", view.Transactions[1].ID)
}

func TestContiAndLibriBalances(t *testing.T) {
	svc := newService(fixture())

	got := map[string]int64{}
	for _, c := range svc.Conti(context.Background()) {
		got[c.ID] = c.Balance.Cents
	}
	assert.Equal(t, map[string]int64{"c1": 105000, "c2": 60000, "c3": 1000, "c4": 7000}, got)

	libri := svc.Libri(context.Background())
	require.Len(t, libri, 2)
	assert.Equal(t, int64(165000), libri[0].Balance.Cents)
	assert.Equal(t, 2, libri[0].Conti)
	assert.Equal(t, int64(7000), libri[1].Balance.Cents)
}

type countingStore struct {
	*memory.Store
	lists atomic.Int32
}

func (c *countingStore) ListConti(ctx context.Context) ([]core.Conto, error) {
	c.lists.Add(1)
	return c.Store.ListConti(ctx)
}

func TestCatalogCachedUntilInvalidate(t *testing.T) {
	store := &countingStore{Store: fixture()}
	svc := newService(store)
	ctx := context.Background()

	svc.Catalog(ctx)
	svc.Catalog(ctx)
	assert.Equal(t, int32(1), store.lists.Load())

	svc.Invalidate(ctx)
	svc.Catalog(ctx)
	assert.Equal(t, int32(2), store.lists.Load())
}
