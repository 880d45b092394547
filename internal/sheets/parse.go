package sheets

import (
	"fmt"
	"strings"
	"time"

	"saldi/internal/core"
)

// parseConti reads the conti sheet. Required headers: ID, Libro, Nome.
// Optional: Libro ID, Tipo (default checking), Saldo iniziale, Attivo
// (default true). Libri are the distinct libro values, in first-seen order.
func parseConti(values [][]any) ([]core.Conto, []core.Libro, error) {
	if len(values) == 0 {
		return []core.Conto{}, []core.Libro{}, nil
	}
	headers := toStrings(values[0])
	colID := indexOf(headers, "ID")
	colLibro := indexOf(headers, "Libro")
	colLibroID := indexOf(headers, "Libro ID")
	colNome := indexOf(headers, "Nome")
	colTipo := indexOf(headers, "Tipo")
	colSaldo := indexOf(headers, "Saldo iniziale")
	colAttivo := indexOf(headers, "Attivo")
	if missing := missingHeaders(map[string]int{"ID": colID, "Libro": colLibro, "Nome": colNome}); missing != "" {
		return nil, nil, fmt.Errorf("unexpected conti header: missing %s; got headers=%v", missing, headers)
	}

	conti := []core.Conto{}
	libri := []core.Libro{}
	seen := map[string]bool{}
	for i := 1; i < len(values); i++ {
		row := toStrings(values[i])
		id := safeGet(row, colID)
		if id == "" || strings.HasPrefix(id, "#") {
			continue
		}
		libroName := safeGet(row, colLibro)
		libroID := safeGet(row, colLibroID)
		if libroID == "" {
			libroID = slug(libroName)
		}
		if libroID != "" && !seen[libroID] {
			seen[libroID] = true
			libri = append(libri, core.Libro{ID: libroID, Name: libroName})
		}

		tipo := core.ContoType(strings.ToLower(safeGet(row, colTipo)))
		if tipo == "" {
			tipo = core.Checking
		}
		var initial core.Money
		if s := safeGet(row, colSaldo); s != "" {
			cents, err := core.ParseSignedCents(normalizeAmount(s))
			if err != nil {
				return nil, nil, fmt.Errorf("row %d: saldo iniziale %q: %w", i+1, s, err)
			}
			initial = core.Cents(cents)
		}
		conti = append(conti, core.Conto{
			ID:             id,
			LibroID:        libroID,
			Name:           safeGet(row, colNome),
			Type:           tipo,
			InitialBalance: initial,
			Active:         parseBool(safeGet(row, colAttivo), true),
		})
	}
	return conti, libri, nil
}

// parseMovimenti reads the movimenti sheet. Required headers: Data, Tipo,
// Importo. Optional: ID, Da, A, Categoria, Descrizione. Rows without an id
// are identified by sheet and row number.
func parseMovimenti(values [][]any, sheet string, loc *time.Location) ([]core.Transaction, error) {
	if len(values) == 0 {
		return []core.Transaction{}, nil
	}
	headers := toStrings(values[0])
	colID := indexOf(headers, "ID")
	colData := indexOf(headers, "Data")
	colTipo := indexOf(headers, "Tipo")
	colImporto := indexOf(headers, "Importo")
	colDa := indexOf(headers, "Da")
	colA := indexOf(headers, "A")
	colCat := indexOf(headers, "Categoria")
	colDesc := indexOf(headers, "Descrizione")
	if missing := missingHeaders(map[string]int{"Data": colData, "Tipo": colTipo, "Importo": colImporto}); missing != "" {
		return nil, fmt.Errorf("unexpected movimenti header: missing %s; got headers=%v", missing, headers)
	}

	out := []core.Transaction{}
	for i := 1; i < len(values); i++ {
		row := toStrings(values[i])
		if isBlank(row) {
			continue
		}
		id := safeGet(row, colID)
		if id == "" {
			id = fmt.Sprintf("%s!%d", sheet, i+1)
		}

		// Bad cells become zero values; the accessor rejects and counts them.
		date, err := core.ParseDate(safeGet(row, colData), loc)
		if err != nil {
			date = time.Time{}
		}
		amount := core.UnknownAmount
		if cents, err := core.ParseDecimalToCents(normalizeAmount(safeGet(row, colImporto))); err == nil {
			amount = core.Cents(cents)
		}

		out = append(out, core.Transaction{
			ID:          id,
			Date:        date,
			Amount:      amount,
			Type:        core.TxType(strings.ToLower(safeGet(row, colTipo))),
			FromContoID: safeGet(row, colDa),
			ToContoID:   safeGet(row, colA),
			CategoryID:  safeGet(row, colCat),
			Description: safeGet(row, colDesc),
		})
	}
	return out, nil
}

// normalizeAmount strips the euro sign and thousands separators, so
// "€ 1.234,56" becomes "1234,56".
func normalizeAmount(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "€", ""))
	s = strings.ReplaceAll(s, " ", "")
	if strings.Contains(s, ",") && strings.Contains(s, ".") {
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	}
	return s
}

func parseBool(s string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return def
	case "true", "si", "sì", "yes", "1", "x":
		return true
	default:
		return false
	}
}

func slug(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "-")
}

func missingHeaders(cols map[string]int) string {
	var missing []string
	for _, name := range []string{"ID", "Libro", "Nome", "Data", "Tipo", "Importo"} {
		if idx, ok := cols[name]; ok && idx == -1 {
			missing = append(missing, name)
		}
	}
	return strings.Join(missing, ",")
}

func isBlank(row []string) bool {
	for _, v := range row {
		if v != "" {
			return false
		}
	}
	return true
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(target)) {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
