// File: internal/wardrobe/wardrobe.go
package wardrobe

import (
	"github.com/fitforge/fitroom-cli/api/schemas"
)

// Wardrobe accumulates every garment the session has seen. It grows
// monotonically: items are never removed except by an explicit reset back to
// the stock catalog.
type Wardrobe struct {
	items map[string]schemas.Garment
	order []string
}

// DefaultGarments returns the stock items a fresh wardrobe starts with. The
// ids are fixed so saved looks referencing stock items survive restarts.
func DefaultGarments() []schemas.Garment {
	return []schemas.Garment{
		{ID: "stock-gemini-tee", Name: "Classic Tee", Category: schemas.CategoryGarment},
		{ID: "stock-denim-jacket", Name: "Denim Jacket", Category: schemas.CategoryGarment},
	}
}

// New builds a wardrobe seeded with the given items.
func New(seed []schemas.Garment) *Wardrobe {
	w := &Wardrobe{items: make(map[string]schemas.Garment, len(seed))}
	for _, g := range seed {
		w.Add(g)
	}
	return w
}

// Add records a garment. Known ids are left untouched; returns whether the
// item was new.
func (w *Wardrobe) Add(g schemas.Garment) bool {
	if _, ok := w.items[g.ID]; ok {
		return false
	}
	w.items[g.ID] = g
	w.order = append(w.order, g.ID)
	return true
}

// Get looks a garment up by id.
func (w *Wardrobe) Get(id string) (schemas.Garment, bool) {
	g, ok := w.items[id]
	return g, ok
}

// All lists the wardrobe in insertion order.
func (w *Wardrobe) All() []schemas.Garment {
	out := make([]schemas.Garment, 0, len(w.order))
	for _, id := range w.order {
		out = append(out, w.items[id])
	}
	return out
}

// Len reports the number of items.
func (w *Wardrobe) Len() int { return len(w.items) }

// ResetToDefaults drops everything accumulated and reseeds the stock items.
func (w *Wardrobe) ResetToDefaults() {
	w.items = make(map[string]schemas.Garment)
	w.order = nil
	for _, g := range DefaultGarments() {
		w.Add(g)
	}
}
