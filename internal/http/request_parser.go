package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"saldi/internal/core"
	"saldi/internal/dashboard"
)

const maxBodyBytes = 64 << 10

var errInvalidParam = errors.New("invalid parameter")

func paramError(key, value string) error {
	return fmt.Errorf("%w %s=%q", errInvalidParam, key, value)
}

// MonthParams holds parsed year/month values from request parameters.
type MonthParams struct {
	Year  int
	Month int
}

// ParseMonthParams extracts year and month from query parameters, using the
// month of now for missing values.
func ParseMonthParams(query url.Values, now time.Time) (MonthParams, error) {
	params := MonthParams{Year: now.Year(), Month: int(now.Month())}

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1970 || y > 9999 {
			return MonthParams{}, paramError("year", v)
		}
		params.Year = y
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			return MonthParams{}, paramError("month", v)
		}
		params.Month = m
	}
	return params, nil
}

// Start is midnight of the first day of the month in loc.
func (p MonthParams) Start(loc *time.Location) time.Time {
	return time.Date(p.Year, time.Month(p.Month), 1, 0, 0, 0, 0, loc)
}

// parseIDList accepts both "ids=a,b" and repeated "ids=a&ids=b", keeping the
// first occurrence of each id.
func parseIDList(query url.Values, key string) []string {
	var ids []string
	for _, raw := range query[key] {
		for _, id := range strings.Split(raw, ",") {
			id = sanitizeInput(id)
			if id == "" || slices.Contains(ids, id) {
				continue
			}
			ids = append(ids, id)
		}
	}
	return ids
}

// parseIntParam returns def when key is absent and an error when the value
// is not an integer within [lo, hi].
func parseIntParam(query url.Values, key string, def, lo, hi int) (int, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < lo || n > hi {
		return 0, paramError(key, v)
	}
	return n, nil
}

// parseSelection reads libri, conti, period, year, month and view.
func parseSelection(query url.Values, now time.Time) (dashboard.Selection, error) {
	period, err := core.ParsePeriod(query.Get("period"))
	if err != nil {
		return dashboard.Selection{}, paramError("period", query.Get("period"))
	}
	month, err := ParseMonthParams(query, now)
	if err != nil {
		return dashboard.Selection{}, err
	}
	return dashboard.Selection{
		View:     sanitizeInput(query.Get("view")),
		LibroIDs: parseIDList(query, "libri"),
		ContoIDs: parseIDList(query, "conti"),
		Period:   period,
		Anchor:   month.Start(now.Location()),
	}, nil
}

func parseMultiSelection(query url.Values) (dashboard.MultiSelection, error) {
	var level core.EntityKind
	switch v := strings.ToLower(strings.TrimSpace(query.Get("level"))); v {
	case "", "libri", "libro":
		level = core.KindLibro
	case "conti", "conto":
		level = core.KindConto
	default:
		return dashboard.MultiSelection{}, paramError("level", v)
	}
	months, err := parseIntParam(query, "months", 0, 1, 120)
	if err != nil {
		return dashboard.MultiSelection{}, err
	}
	return dashboard.MultiSelection{
		View:   sanitizeInput(query.Get("view")),
		Level:  level,
		IDs:    parseIDList(query, "ids"),
		Months: months,
	}, nil
}

// parseTransaction builds a transaction from a JSON or form body. A missing
// date means now.
func parseTransaction(p *RequestBodyParser, now time.Time) (core.Transaction, error) {
	if err := p.Parse(); err != nil {
		return core.Transaction{}, fmt.Errorf("%w: request body: %v", errInvalidParam, err)
	}

	t := core.Transaction{
		ID:          p.Get("id"),
		Type:        core.TxType(strings.ToLower(p.Get("type"))),
		FromContoID: p.Get("from"),
		ToContoID:   p.Get("to"),
		CategoryID:  p.Get("category"),
		Description: p.Get("description"),
		Date:        now,
	}
	if v := p.Get("date"); v != "" {
		d, err := core.ParseDate(v, now.Location())
		if err != nil {
			return core.Transaction{}, fmt.Errorf("%w: %v", core.ErrMissingDate, err)
		}
		t.Date = d
	}
	cents, err := core.ParseDecimalToCents(p.Get("amount"))
	if err != nil {
		return core.Transaction{}, err
	}
	t.Amount = core.Cents(cents)
	return t, nil
}

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]interface{}
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser reads at most maxBodyBytes of the request body once.
func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if p.body[0] == '{' || strings.HasPrefix(p.contentType, "application/json") {
		p.jsonData = make(map[string]interface{})
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.jsonData = nil
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}
