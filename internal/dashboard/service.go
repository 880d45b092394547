// Package dashboard turns selections into chart-ready balance series.
//
// Every call re-derives its result from the ledger. The only cached data is
// the libro and conto catalog, which Invalidate clears together with every
// in-flight generation.
package dashboard

import (
	"context"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"saldi/internal/balance"
	"saldi/internal/cache"
	"saldi/internal/core"
	"saldi/internal/ledger"
	"saldi/internal/log"
)

const (
	catalogKey             = "catalog"
	defaultTrailingMonths  = 3
	defaultFetchConcurrent = 4
)

// Options configures a Service. Zero values get defaults.
type Options struct {
	Now            func() time.Time
	Location       *time.Location
	LookbackMonths int
	Palette        []string
	MaxConcurrent  int
	Logger         *log.Logger
}

type (
	// HistoryView is the balance series of one selection over its period.
	HistoryView struct {
		Generation uint64
		Period     core.Period
		Start      time.Time
		End        time.Time
		Conti      []string
		Balance    core.Money // as of now
		Points     []core.BalancePoint
		Past       []core.BalancePoint
		Future     []core.BalancePoint
	}

	MultiHistoryView struct {
		Generation uint64
		Months     int
		Series     []core.EntitySeries
	}

	SummaryView struct {
		Generation uint64
		balance.TrailingSummary
	}

	RecentView struct {
		Generation   uint64
		Transactions []core.Transaction
		Total        int
	}

	// Snapshot is the last result committed for a view.
	Snapshot struct {
		Generation uint64
		At         time.Time
		Value      any
	}

	ContoBalance struct {
		core.Conto
		Balance core.Money
	}

	LibroBalance struct {
		core.Libro
		Balance core.Money
		Conti   int // active conti
	}
)

// Service computes dashboard views from a ledger accessor.
type Service struct {
	accessor *ledger.Accessor
	catalog  cache.Cache[Catalog]
	gens     *Generations
	logger   *log.Logger

	now      func() time.Time
	loc      *time.Location
	lookback int
	palette  []string
	limit    int

	mu           sync.RWMutex
	latest       map[string]Snapshot
	catalogEpoch uint64
}

func NewService(accessor *ledger.Accessor, catalog cache.Cache[Catalog], opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.LookbackMonths <= 0 {
		opts.LookbackMonths = balance.DefaultLookbackMonths
	}
	if len(opts.Palette) == 0 {
		opts.Palette = balance.DefaultPalette
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = defaultFetchConcurrent
	}
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	return &Service{
		accessor: accessor,
		catalog:  catalog,
		gens:     NewGenerations(),
		logger:   opts.Logger.WithComponent(log.ComponentDashboard),
		now:      opts.Now,
		loc:      opts.Location,
		lookback: opts.LookbackMonths,
		palette:  opts.Palette,
		limit:    opts.MaxConcurrent,
		latest:   make(map[string]Snapshot),
	}
}

func (s *Service) clock() time.Time {
	return s.now().In(s.loc)
}

// Catalog returns the libri and conti, cached until Invalidate.
func (s *Service) Catalog(ctx context.Context) Catalog {
	if c, ok := s.catalog.Get(catalogKey); ok {
		return c
	}

	s.mu.RLock()
	epoch := s.catalogEpoch
	s.mu.RUnlock()

	c := Catalog{Libri: s.accessor.Libri(ctx), Conti: s.accessor.Conti(ctx)}
	if len(c.Libri) == 0 && len(c.Conti) == 0 {
		return c
	}

	s.mu.Lock()
	if s.catalogEpoch == epoch {
		s.catalog.Set(catalogKey, c)
	}
	s.mu.Unlock()
	return c
}

// History reconstructs the selection's balance over its period and splits
// it at today.
func (s *Service) History(ctx context.Context, sel Selection) (HistoryView, error) {
	gen := s.begin(sel.View)
	now := s.clock()

	set, initial, err := s.Catalog(ctx).Resolve(sel)
	if err != nil {
		return HistoryView{}, err
	}
	period := sel.Period
	if period == "" {
		period = core.PeriodMonth
	}
	anchor := sel.Anchor
	if anchor.IsZero() {
		anchor = now
	}
	anchor = anchor.In(s.loc)

	// Pre-period history sets the opening balance, so fetch from the start.
	// The current balance needs everything up to now even for past periods.
	_, end := period.Bounds(anchor, time.Time{})
	to := end
	if now.After(to) {
		to = now
	}
	txs := s.fetch(ctx, ledger.Range{To: to}, set)
	if err := ctx.Err(); err != nil {
		return HistoryView{}, err
	}

	var earliest time.Time
	if len(txs) > 0 {
		earliest = txs[0].Date
	}
	start, end := period.Bounds(anchor, earliest)

	points := balance.History(set, initial, start, end, txs)
	past, future := balance.SplitPastFuture(points, now, end)

	ids := set.IDs()
	slices.Sort(ids)
	view := HistoryView{
		Generation: gen,
		Period:     period,
		Start:      start,
		End:        end,
		Conti:      ids,
		Balance:    balance.BalanceAt(set, initial, txs, now),
		Points:     points,
		Past:       past,
		Future:     future,
	}
	return view, s.commit(sel.View, gen, view)
}

// MultiHistory builds one monthly series per entity. Each entity's ledger
// slice is fetched concurrently.
func (s *Service) MultiHistory(ctx context.Context, ms MultiSelection) (MultiHistoryView, error) {
	gen := s.begin(ms.View)
	now := s.clock()

	entities, err := s.Catalog(ctx).Entities(ms)
	if err != nil {
		return MultiHistoryView{}, err
	}
	months := ms.Months
	if months <= 0 {
		months = s.lookback
	}

	fetched := make([][]core.Transaction, len(entities))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.limit)
	for i, e := range entities {
		if len(e.Conti) == 0 {
			continue
		}
		g.Go(func() error {
			fetched[i] = s.accessor.Fetch(gctx, ledger.Range{To: now}, e.Conti.IDs(), ledger.Ascending)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return MultiHistoryView{}, err
	}

	view := MultiHistoryView{
		Generation: gen,
		Months:     months,
		Series:     balance.MultiEntityHistory(entities, mergeByID(fetched), now, months, s.palette),
	}
	return view, s.commit(ms.View, gen, view)
}

// Summary totals the month containing month (now when zero) and the
// trailing months before it.
func (s *Service) Summary(ctx context.Context, sel Selection, month time.Time, trailing int) (SummaryView, error) {
	gen := s.begin(sel.View)
	if month.IsZero() {
		month = s.clock()
	}
	month = core.StartOfMonth(month.In(s.loc))
	if trailing <= 0 {
		trailing = defaultTrailingMonths
	}

	set, _, err := s.Catalog(ctx).Resolve(sel)
	if err != nil {
		return SummaryView{}, err
	}
	txs := s.fetch(ctx, ledger.Range{
		From: core.AddMonths(month, -trailing),
		To:   core.EndOfMonth(month),
	}, set)
	if err := ctx.Err(); err != nil {
		return SummaryView{}, err
	}

	view := SummaryView{
		Generation:      gen,
		TrailingSummary: balance.SummarizeTrailing(set, txs, month, trailing),
	}
	return view, s.commit(sel.View, gen, view)
}

// Recent lists the selection's valid transactions up to the end of today,
// newest first, with the unpaged total of valid records.
func (s *Service) Recent(ctx context.Context, sel Selection, limit, offset int) (RecentView, error) {
	gen := s.begin(sel.View)
	now := s.clock()

	set, _, err := s.Catalog(ctx).Resolve(sel)
	if err != nil {
		return RecentView{}, err
	}
	q := ledger.Query{
		Range:    ledger.Range{To: core.EndOfDay(now).Add(-time.Nanosecond)},
		ContoIDs: set.IDs(),
		Sort:     ledger.Descending,
	}
	view := RecentView{Generation: gen, Transactions: []core.Transaction{}}
	if len(set) > 0 {
		q.Limit, q.Offset = limit, offset
		view.Transactions, view.Total = s.accessor.Page(ctx, q)
	}
	if err := ctx.Err(); err != nil {
		return RecentView{}, err
	}
	return view, s.commit(sel.View, gen, view)
}

// Conti lists every conto with its balance as of now.
func (s *Service) Conti(ctx context.Context) []ContoBalance {
	now := s.clock()
	cat := s.Catalog(ctx)
	txs := s.accessor.Fetch(ctx, ledger.Range{To: now}, nil, ledger.Ascending)

	out := make([]ContoBalance, 0, len(cat.Conti))
	for _, k := range cat.Conti {
		out = append(out, ContoBalance{
			Conto:   k,
			Balance: balance.BalanceAt(core.NewContoSet(k.ID), k.InitialBalance, txs, now),
		})
	}
	return out
}

// Libri lists every libro with the total of its active conti.
func (s *Service) Libri(ctx context.Context) []LibroBalance {
	conti := s.Conti(ctx)
	cat := s.Catalog(ctx)

	out := make([]LibroBalance, 0, len(cat.Libri))
	for _, l := range cat.Libri {
		lb := LibroBalance{Libro: l}
		for _, k := range conti {
			if k.LibroID == l.ID && k.Active {
				lb.Balance = lb.Balance.Add(k.Balance)
				lb.Conti++
			}
		}
		out = append(out, lb)
	}
	return out
}

// Latest returns the last result committed for view.
func (s *Service) Latest(view string) (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.latest[view]
	return snap, ok
}

// LedgerStats reports how many records and store calls the accessor hid.
func (s *Service) LedgerStats() ledger.Stats {
	return s.accessor.Stats()
}

// Invalidate drops the catalog and discards every computation in flight.
// It is called whenever the ledger changes.
func (s *Service) Invalidate(ctx context.Context) {
	s.mu.Lock()
	s.catalogEpoch++
	s.catalog.Purge()
	s.mu.Unlock()
	s.gens.InvalidateAll()

	s.logger.DebugContext(ctx, "Dashboard invalidated", log.FieldOperation, log.OpInvalidate)
}

func (s *Service) fetch(ctx context.Context, r ledger.Range, set core.ContoSet) []core.Transaction {
	if len(set) == 0 {
		return []core.Transaction{}
	}
	return s.accessor.Fetch(ctx, r, set.IDs(), ledger.Ascending)
}

func (s *Service) begin(view string) uint64 {
	if view == "" {
		return 0
	}
	return s.gens.Begin(view)
}

func (s *Service) commit(view string, gen uint64, value any) error {
	if view == "" {
		return nil
	}
	ok := s.gens.Commit(view, gen, func() {
		s.mu.Lock()
		s.latest[view] = Snapshot{Generation: gen, At: s.clock(), Value: value}
		s.mu.Unlock()
	})
	if !ok {
		s.logger.Debug("Dropped stale result",
			log.FieldViewKey, view,
			log.FieldGeneration, gen)
		return ErrStale
	}
	return nil
}

// mergeByID concatenates per-entity fetches, keeping the first copy of a
// transaction that touches several entities, in date order.
func mergeByID(parts [][]core.Transaction) []core.Transaction {
	seen := make(map[string]struct{})
	var out []core.Transaction
	for _, part := range parts {
		for _, t := range part {
			if _, dup := seen[t.ID]; dup {
				continue
			}
			seen[t.ID] = struct{}{}
			out = append(out, t)
		}
	}
	ledger.SortTransactions(out, ledger.Ascending)
	return out
}
