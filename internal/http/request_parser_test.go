package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"strings"
	"testing"
	"time"

	"saldi/internal/core"
)

func TestParseMonthParams(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		query     string
		wantYear  int
		wantMonth int
		wantErr   bool
	}{
		{name: "defaults", query: "", wantYear: 2024, wantMonth: 6},
		{name: "explicit", query: "year=2023&month=2", wantYear: 2023, wantMonth: 2},
		{name: "month only", query: "month=11", wantYear: 2024, wantMonth: 11},
		{name: "month out of range", query: "month=0", wantErr: true},
		{name: "non numeric year", query: "year=twenty", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _ := url.ParseQuery(tt.query)
			result, err := ParseMonthParams(q, now)
			if tt.wantErr {
				if !errors.Is(err, errInvalidParam) {
					t.Fatalf("expected errInvalidParam, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMonthParams() error = %v", err)
			}
			if result.Year != tt.wantYear || result.Month != tt.wantMonth {
				t.Errorf("got %d-%d, want %d-%d", result.Year, result.Month, tt.wantYear, tt.wantMonth)
			}
		})
	}
}

func TestMonthParamsStart(t *testing.T) {
	rome, err := time.LoadLocation("Europe/Rome")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	got := MonthParams{Year: 2024, Month: 3}.Start(rome)
	if got.Hour() != 0 || got.Day() != 1 || got.Location() != rome {
		t.Errorf("Start() = %v", got)
	}
}

func TestParseIDList(t *testing.T) {
	q, _ := url.ParseQuery("conti=c1,%20c2,,c1&conti=c3")
	got := parseIDList(q, "conti")
	if !slices.Equal(got, []string{"c1", "c2", "c3"}) {
		t.Errorf("parseIDList() = %v", got)
	}
	if ids := parseIDList(q, "libri"); ids != nil {
		t.Errorf("absent key = %v, want nil", ids)
	}
}

func TestParseIntParam(t *testing.T) {
	q, _ := url.ParseQuery("limit=50&offset=-1")

	if n, err := parseIntParam(q, "limit", 20, 1, 200); err != nil || n != 50 {
		t.Errorf("limit = %d, %v", n, err)
	}
	if n, err := parseIntParam(q, "months", 12, 1, 120); err != nil || n != 12 {
		t.Errorf("default = %d, %v", n, err)
	}
	if _, err := parseIntParam(q, "offset", 0, 0, 100); !errors.Is(err, errInvalidParam) {
		t.Errorf("negative offset error = %v", err)
	}
}

func TestParseSelection(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	q, _ := url.ParseQuery("libri=l1&conti=c2,c3&period=Quarter&year=2024&month=2&view=main")

	sel, err := parseSelection(q, now)
	if err != nil {
		t.Fatalf("parseSelection() error = %v", err)
	}
	if sel.View != "main" || sel.Period != core.PeriodQuarter {
		t.Errorf("selection = %+v", sel)
	}
	if !slices.Equal(sel.LibroIDs, []string{"l1"}) || !slices.Equal(sel.ContoIDs, []string{"c2", "c3"}) {
		t.Errorf("ids = %v %v", sel.LibroIDs, sel.ContoIDs)
	}
	if !sel.Anchor.Equal(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("anchor = %v", sel.Anchor)
	}

	q, _ = url.ParseQuery("period=fortnight")
	if _, err := parseSelection(q, now); !errors.Is(err, errInvalidParam) {
		t.Errorf("unknown period error = %v", err)
	}
}

func TestParseMultiSelection(t *testing.T) {
	q, _ := url.ParseQuery("level=conti&ids=c1,c2&months=6")
	ms, err := parseMultiSelection(q)
	if err != nil {
		t.Fatalf("parseMultiSelection() error = %v", err)
	}
	if ms.Level != core.KindConto || ms.Months != 6 || len(ms.IDs) != 2 {
		t.Errorf("multi selection = %+v", ms)
	}

	ms, err = parseMultiSelection(url.Values{})
	if err != nil || ms.Level != core.KindLibro || ms.Months != 0 {
		t.Errorf("defaults = %+v, %v", ms, err)
	}
}

func TestParseTransaction(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	body := `{"type":"Transfer","amount":42.5,"from":"c1","to":"c2","date":"2024-06-01","category":"risparmio"}`
	req := httptest.NewRequest(http.MethodPost, "/api/transactions", strings.NewReader(body))

	tx, err := parseTransaction(NewRequestBodyParser(httptest.NewRecorder(), req), now)
	if err != nil {
		t.Fatalf("parseTransaction() error = %v", err)
	}
	if tx.Type != core.Transfer || tx.Amount.Cents != 4250 || tx.CategoryID != "risparmio" {
		t.Errorf("transaction = %+v", tx)
	}
	if !tx.Date.Equal(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("date = %v", tx.Date)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/transactions", strings.NewReader("type=income&amount=3&to=c1"))
	tx, err = parseTransaction(NewRequestBodyParser(httptest.NewRecorder(), req), now)
	if err != nil {
		t.Fatalf("form parseTransaction() error = %v", err)
	}
	if !tx.Date.Equal(now) {
		t.Errorf("missing date = %v, want now", tx.Date)
	}
}

func TestRequestBodyParser_JSON(t *testing.T) {
	body := `{"id": "123", "name": "test", "amount": 42.5, "active": true}`
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	parser := NewRequestBodyParser(httptest.NewRecorder(), req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if !parser.IsJSON() {
		t.Error("Expected IsJSON() to be true")
	}
	if id := parser.Get("id"); id != "123" {
		t.Errorf("Get('id') = %q, want '123'", id)
	}
	if amount := parser.Get("amount"); amount != "42.5" {
		t.Errorf("Get('amount') = %q, want '42.5'", amount)
	}
	if active := parser.Get("active"); active != "true" {
		t.Errorf("Get('active') = %q, want 'true'", active)
	}
}

func TestRequestBodyParser_FormData(t *testing.T) {
	body := "id=456&name=form+test&value=100"
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	parser := NewRequestBodyParser(httptest.NewRecorder(), req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if parser.IsJSON() {
		t.Error("Expected IsJSON() to be false for form data")
	}
	if name := parser.Get("name"); name != "form test" {
		t.Errorf("Get('name') = %q, want 'form test'", name)
	}
}

func TestRequestBodyParser_EmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(""))

	parser := NewRequestBodyParser(httptest.NewRecorder(), req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if val := parser.Get("nonexistent"); val != "" {
		t.Errorf("Get('nonexistent') = %q, want empty string", val)
	}
}

func TestRequestBodyParser_TooLarge(t *testing.T) {
	body := `{"description":"` + strings.Repeat("x", maxBodyBytes) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))

	if err := NewRequestBodyParser(httptest.NewRecorder(), req).Parse(); err == nil {
		t.Fatal("expected an error for an oversized body")
	}
}

func TestSanitizeInput(t *testing.T) {
	if got := sanitizeInput("  caf\x00é\x07\t "); got != "café" {
		t.Errorf("sanitizeInput() = %q", got)
	}
}
