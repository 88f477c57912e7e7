// File: internal/history/catalog.go
package history

// PoseCatalog is the ordered, append-only sequence of unique pose
// instructions. Indices never change once assigned; index 0 holds the initial
// full-frontal pose a session starts in.
type PoseCatalog struct {
	poses []string
}

// NewPoseCatalog seeds a catalog, dropping duplicate seed entries while
// keeping first-seen order.
func NewPoseCatalog(seed []string) *PoseCatalog {
	c := &PoseCatalog{poses: make([]string, 0, len(seed))}
	for _, p := range seed {
		c.Add(p)
	}
	return c
}

// Len reports the number of catalogued poses.
func (c *PoseCatalog) Len() int { return len(c.poses) }

// At returns the pose instruction at the given index.
func (c *PoseCatalog) At(i int) (string, bool) {
	if i < 0 || i >= len(c.poses) {
		return "", false
	}
	return c.poses[i], true
}

// IndexOf finds a pose by exact, case-sensitive instruction text.
func (c *PoseCatalog) IndexOf(text string) (int, bool) {
	for i, p := range c.poses {
		if p == text {
			return i, true
		}
	}
	return 0, false
}

// Add appends a pose instruction and returns its index. Adding text that is
// already catalogued returns the existing index without appending.
func (c *PoseCatalog) Add(text string) int {
	if i, ok := c.IndexOf(text); ok {
		return i
	}
	c.poses = append(c.poses, text)
	return len(c.poses) - 1
}

// All returns a copy of the catalogued instructions in index order.
func (c *PoseCatalog) All() []string {
	out := make([]string, len(c.poses))
	copy(out, c.poses)
	return out
}
