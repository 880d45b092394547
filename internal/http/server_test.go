package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"saldi/internal/amqp"
	"saldi/internal/cache"
	"saldi/internal/core"
	"saldi/internal/dashboard"
	"saldi/internal/ledger"
	"saldi/internal/ledger/memory"
	"saldi/internal/services"
)

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

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

type options struct {
	readOnly   bool
	writeLimit int
	ready      func(context.Context) error
}

func newTestServer(t *testing.T, opts options) *Server {
	t.Helper()
	store := fixture()
	clock := func() time.Time { return testNow }

	dash := dashboard.NewService(
		ledger.NewAccessor(store, nil),
		cache.NewLRUCache[dashboard.Catalog](4, time.Minute),
		dashboard.Options{Now: clock, Location: time.UTC},
	)

	var svc *services.LedgerService
	if !opts.readOnly {
		svc = services.NewLedgerService(store, nil, nil)
		svc.OnChange(func(ctx context.Context, _ *amqp.LedgerChangedMessage) { dash.Invalidate(ctx) })
	}

	srv := NewServer(":0", Deps{
		Dashboard:  dash,
		Ledger:     svc,
		Ready:      opts.ready,
		Location:   time.UTC,
		Now:        clock,
		WriteLimit: opts.writeLimit,
	})
	t.Cleanup(func() { srv.rateLimiter.stop() })
	return srv
}

func do(t *testing.T, srv *Server, method, target, body, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func cents(points []pointDTO) []int64 {
	out := make([]int64, len(points))
	for i, p := range points {
		out[i] = p.BalanceCents
	}
	return out
}

func equalInts(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t, options{})

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		rr := do(t, srv, http.MethodGet, path, "", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}

	rr := do(t, srv, http.MethodGet, "/metrics", "", "")
	if !strings.Contains(rr.Body.String(), "ledger_rejected_records_total 0") {
		t.Fatalf("metrics missing ledger counter: %s", rr.Body.String())
	}
}

func TestReadyReportsBackendFailure(t *testing.T) {
	srv := newTestServer(t, options{ready: func(context.Context) error { return errors.New("db down") }})

	rr := do(t, srv, http.MethodGet, "/readyz", "", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	body := decode[map[string]any](t, rr)
	if body["status"] != "not_ready" {
		t.Fatalf("status=%v", body["status"])
	}
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	srv := newTestServer(t, options{})

	rr := do(t, srv, http.MethodGet, "/api/conti", "", "")
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("missing nosniff header")
	}
	if rr.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("api responses must not be cached")
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatalf("missing request id")
	}
}

func TestContiAndLibri(t *testing.T) {
	srv := newTestServer(t, options{})

	conti := decode[[]contoDTO](t, do(t, srv, http.MethodGet, "/api/conti", "", ""))
	want := map[string]int64{"c1": 105000, "c2": 60000, "c3": 1000, "c4": 7000}
	if len(conti) != len(want) {
		t.Fatalf("got %d conti", len(conti))
	}
	for _, k := range conti {
		if k.BalanceCents != want[k.ID] {
			t.Errorf("%s balance=%d, want %d", k.ID, k.BalanceCents, want[k.ID])
		}
	}

	libri := decode[[]libroDTO](t, do(t, srv, http.MethodGet, "/api/libri", "", ""))
	if len(libri) != 2 || libri[0].ID != "l1" {
		t.Fatalf("libri=%+v", libri)
	}
	if libri[0].BalanceCents != 165000 || libri[0].Conti != 2 {
		t.Fatalf("l1=%+v", libri[0])
	}
}

func TestHistory(t *testing.T) {
	srv := newTestServer(t, options{})

	rr := do(t, srv, http.MethodGet, "/api/history?libri=l1&period=month&view=main", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	h := decode[historyDTO](t, rr)
	if h.Start != "2024-06-01" || h.End != "2024-06-30" {
		t.Fatalf("window %s..%s", h.Start, h.End)
	}
	if !equalInts(cents(h.Points), []int64{170000, 165000, 165000, 162000, 162000}) {
		t.Fatalf("points=%v", cents(h.Points))
	}
	if !equalInts(cents(h.Past), []int64{170000, 165000, 165000}) {
		t.Fatalf("past=%v", cents(h.Past))
	}
	if !equalInts(cents(h.Future), []int64{165000, 162000, 162000}) {
		t.Fatalf("future=%v", cents(h.Future))
	}
	if h.BalanceCents != 165000 || h.View != "main" || h.Generation == 0 {
		t.Fatalf("history=%+v", h)
	}
}

func TestHistoryErrors(t *testing.T) {
	srv := newTestServer(t, options{})

	tests := []struct {
		target string
		want   int
	}{
		{"/api/history?period=decade", http.StatusBadRequest},
		{"/api/history?month=13", http.StatusBadRequest},
		{"/api/history?year=abc", http.StatusBadRequest},
		{"/api/history?conti=nope", http.StatusNotFound},
		{"/api/history?libri=nope", http.StatusNotFound},
	}
	for _, tt := range tests {
		rr := do(t, srv, http.MethodGet, tt.target, "", "")
		if rr.Code != tt.want {
			t.Errorf("%s: status=%d, want %d", tt.target, rr.Code, tt.want)
		}
		if body := decode[errorBody](t, rr); body.Error == "" {
			t.Errorf("%s: empty error message", tt.target)
		}
	}
}

func TestMultiHistory(t *testing.T) {
	srv := newTestServer(t, options{})

	rr := do(t, srv, http.MethodGet, "/api/history/multi?level=conti&ids=c3,c1&ids=c4&months=3", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	m := decode[multiHistoryDTO](t, rr)
	if m.Months != 3 || len(m.Series) != 2 {
		t.Fatalf("multi=%+v", m)
	}
	if m.Series[0].ID != "c1" || m.Series[0].Kind != "conto" {
		t.Fatalf("first series=%+v", m.Series[0])
	}
	if !equalInts(cents(m.Series[0].Points), []int64{100000, 120000, 105000}) {
		t.Fatalf("c1 points=%v", cents(m.Series[0].Points))
	}

	rr = do(t, srv, http.MethodGet, "/api/history/multi?level=banche", "", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestSummary(t *testing.T) {
	srv := newTestServer(t, options{})

	rr := do(t, srv, http.MethodGet, "/api/summary?libri=l1&year=2024&month=6&trailing=2", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"savings_rate":null`) {
		t.Fatalf("month without income must have a null savings rate: %s", rr.Body.String())
	}
	s := decode[summaryDTO](t, rr)
	if s.Current.Month != "2024-06" || s.Current.ExpenseCents != 8000 {
		t.Fatalf("current=%+v", s.Current)
	}
	if len(s.Trailing) != 2 || s.Trailing[0].Month != "2024-04" {
		t.Fatalf("trailing=%+v", s.Trailing)
	}
	if s.AverageIncomeCents != 10000 {
		t.Fatalf("average income=%d", s.AverageIncomeCents)
	}
	if !s.Trailing[1].SavingsRate.Valid {
		t.Fatalf("may had income, savings rate must be set")
	}
}

func TestTransactions(t *testing.T) {
	srv := newTestServer(t, options{})

	rr := do(t, srv, http.MethodGet, "/api/transactions?conti=c1&limit=2", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	r := decode[recentDTO](t, rr)
	if r.Total != 3 || len(r.Transactions) != 2 {
		t.Fatalf("recent=%+v", r)
	}
	if r.Transactions[0].ID != "t3" || r.Transactions[1].ID != "t2" {
		t.Fatalf("order=%s,%s", r.Transactions[0].ID, r.Transactions[1].ID)
	}

	rr = do(t, srv, http.MethodGet, "/api/transactions?limit=0", "", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestCreateAndDeleteTransaction(t *testing.T) {
	srv := newTestServer(t, options{})

	rr := do(t, srv, http.MethodPost, "/api/transactions",
		`{"id":"n1","type":"expense","amount":"12,50","from":"c1","date":"2024-06-14","description":"Pranzo"}`,
		"application/json")
	if rr.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	created := decode[transactionDTO](t, rr)
	if created.AmountCents != 1250 || rr.Header().Get("Location") != "/api/transactions/n1" {
		t.Fatalf("created=%+v", created)
	}

	conti := decode[[]contoDTO](t, do(t, srv, http.MethodGet, "/api/conti", "", ""))
	for _, k := range conti {
		if k.ID == "c1" && k.BalanceCents != 103750 {
			t.Fatalf("c1 balance after expense=%d", k.BalanceCents)
		}
	}

	rr = do(t, srv, http.MethodPost, "/api/transactions", `{"id":"n1","type":"expense","amount":"1","from":"c1"}`, "application/json")
	if rr.Code != http.StatusConflict {
		t.Fatalf("duplicate: expected 409, got %d", rr.Code)
	}

	rr = do(t, srv, http.MethodDelete, "/api/transactions/n1", "", "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rr.Code)
	}
	rr = do(t, srv, http.MethodDelete, "/api/transactions/n1", "", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("second delete: expected 404, got %d", rr.Code)
	}
}

func TestCreateTransactionFromForm(t *testing.T) {
	srv := newTestServer(t, options{})

	rr := do(t, srv, http.MethodPost, "/api/transactions",
		"type=income&amount=100&to=c4&date=2024-06-01", "application/x-www-form-urlencoded")
	if rr.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	created := decode[transactionDTO](t, rr)
	if created.ID == "" || created.Type != "income" || created.AmountCents != 10000 {
		t.Fatalf("created=%+v", created)
	}
}

func TestCreateTransactionValidation(t *testing.T) {
	srv := newTestServer(t, options{writeLimit: 100})

	tests := []struct {
		name string
		body string
		want int
	}{
		{"bad amount", `{"type":"expense","amount":"abc","from":"c1"}`, http.StatusUnprocessableEntity},
		{"missing amount", `{"type":"expense","from":"c1"}`, http.StatusUnprocessableEntity},
		{"missing source", `{"type":"expense","amount":"5"}`, http.StatusUnprocessableEntity},
		{"self transfer", `{"type":"transfer","amount":"5","from":"c1","to":"c1"}`, http.StatusUnprocessableEntity},
		{"unknown type", `{"type":"gift","amount":"5","to":"c1"}`, http.StatusUnprocessableEntity},
		{"bad date", `{"type":"income","amount":"5","to":"c1","date":"yesterday"}`, http.StatusUnprocessableEntity},
		{"malformed json", `{"type":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodPost, "/api/transactions", tt.body, "application/json")
			if rr.Code != tt.want {
				t.Fatalf("status=%d, want %d (body %s)", rr.Code, tt.want, rr.Body.String())
			}
		})
	}
}

func TestReadOnlyLedger(t *testing.T) {
	srv := newTestServer(t, options{readOnly: true})

	rr := do(t, srv, http.MethodPost, "/api/transactions", `{"type":"income","amount":"5","to":"c1"}`, "application/json")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
	if rr.Header().Get("Allow") != http.MethodGet {
		t.Fatalf("Allow=%q", rr.Header().Get("Allow"))
	}
	rr = do(t, srv, http.MethodDelete, "/api/transactions/t1", "", "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestWritesAreRateLimited(t *testing.T) {
	srv := newTestServer(t, options{writeLimit: 2})

	codes := make([]int, 3)
	for i := range codes {
		codes[i] = do(t, srv, http.MethodDelete, "/api/transactions/missing", "", "").Code
	}
	if codes[0] != http.StatusNotFound || codes[1] != http.StatusNotFound {
		t.Fatalf("first two writes must pass the limiter: %v", codes)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Fatalf("third write: expected 429, got %d", codes[2])
	}

	// Reads are never limited.
	if rr := do(t, srv, http.MethodGet, "/api/conti", "", ""); rr.Code != http.StatusOK {
		t.Fatalf("read after limit: %d", rr.Code)
	}
}
