package dashboard

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"saldi/internal/core"
)

// ErrUnknownEntity is returned when a selection names a libro or conto that
// is not in the catalog.
var ErrUnknownEntity = errors.New("unknown entity")

// Selection picks the conti a single-series view is computed over. An empty
// selection means every active conto.
type Selection struct {
	View     string // generation key; empty disables stale-result tracking
	LibroIDs []string
	ContoIDs []string
	Period   core.Period
	Anchor   time.Time // month the period ends in; zero means now
}

// MultiSelection picks the entities of a comparison chart. Empty IDs means
// every libro, or every active conto.
type MultiSelection struct {
	View   string
	Level  core.EntityKind
	IDs    []string
	Months int
}

// Catalog is the libro and conto listing a selection resolves against.
type Catalog struct {
	Libri []core.Libro
	Conti []core.Conto
}

func (c Catalog) libro(id string) (core.Libro, bool) {
	i := slices.IndexFunc(c.Libri, func(l core.Libro) bool { return l.ID == id })
	if i < 0 {
		return core.Libro{}, false
	}
	return c.Libri[i], true
}

func (c Catalog) conto(id string) (core.Conto, bool) {
	i := slices.IndexFunc(c.Conti, func(k core.Conto) bool { return k.ID == id })
	if i < 0 {
		return core.Conto{}, false
	}
	return c.Conti[i], true
}

// activeConti returns the active conti of libroID, or of every libro when
// libroID is empty.
func (c Catalog) activeConti(libroID string) []core.Conto {
	var out []core.Conto
	for _, k := range c.Conti {
		if k.Active && (libroID == "" || k.LibroID == libroID) {
			out = append(out, k)
		}
	}
	return out
}

// Resolve turns a selection into the conto set and its opening balance.
// Libri contribute their active conti; explicitly named conti are included
// whether active or not.
func (c Catalog) Resolve(sel Selection) (core.ContoSet, core.Money, error) {
	var members []core.Conto
	if len(sel.LibroIDs) == 0 && len(sel.ContoIDs) == 0 {
		members = c.activeConti("")
	}
	for _, id := range sel.LibroIDs {
		if _, ok := c.libro(id); !ok {
			return nil, core.Money{}, fmt.Errorf("%w: libro %q", ErrUnknownEntity, id)
		}
		members = append(members, c.activeConti(id)...)
	}
	for _, id := range sel.ContoIDs {
		k, ok := c.conto(id)
		if !ok {
			return nil, core.Money{}, fmt.Errorf("%w: conto %q", ErrUnknownEntity, id)
		}
		members = append(members, k)
	}

	set := core.NewContoSet()
	var initial core.Money
	for _, k := range members {
		if set.Has(k.ID) {
			continue
		}
		set[k.ID] = struct{}{}
		initial = initial.Add(k.InitialBalance)
	}
	return set, initial, nil
}

// Entities lists the chart entities of a multi selection in request order.
func (c Catalog) Entities(ms MultiSelection) ([]core.Entity, error) {
	switch ms.Level {
	case core.KindLibro:
		ids := ms.IDs
		if len(ids) == 0 {
			for _, l := range c.Libri {
				ids = append(ids, l.ID)
			}
		}
		out := make([]core.Entity, 0, len(ids))
		for _, id := range ids {
			l, ok := c.libro(id)
			if !ok {
				return nil, fmt.Errorf("%w: libro %q", ErrUnknownEntity, id)
			}
			conti := c.activeConti(id)
			set := core.NewContoSet()
			for _, k := range conti {
				set[k.ID] = struct{}{}
			}
			out = append(out, core.Entity{
				ID:             l.ID,
				Name:           l.Name,
				Kind:           core.KindLibro,
				Conti:          set,
				InitialBalance: core.InitialBalance(conti, set),
			})
		}
		return out, nil

	case core.KindConto:
		var conti []core.Conto
		if len(ms.IDs) == 0 {
			conti = c.activeConti("")
		}
		for _, id := range ms.IDs {
			k, ok := c.conto(id)
			if !ok {
				return nil, fmt.Errorf("%w: conto %q", ErrUnknownEntity, id)
			}
			conti = append(conti, k)
		}
		out := make([]core.Entity, 0, len(conti))
		for _, k := range conti {
			out = append(out, core.Entity{
				ID:             k.ID,
				Name:           k.Name,
				Kind:           core.KindConto,
				Conti:          core.NewContoSet(k.ID),
				InitialBalance: k.InitialBalance,
			})
		}
		return out, nil

	default:
		return nil, fmt.Errorf("unknown level %q", ms.Level)
	}
}
