package models

// Collection maps country labels to measurement tables. Insertion order
// is preserved so that iteration-order tie-breaks (highest-mean lookup,
// region ranking) are deterministic; Go's map iteration is randomized,
// which would make "first encountered wins" meaningless.
//
// A Collection is scoped to one interactive session and is not safe for
// concurrent use; each session owns its own.
type Collection struct {
	order  []string
	tables map[string]*Table
}

func NewCollection() *Collection {
	return &Collection{tables: make(map[string]*Table)}
}

// Set stores a table under country. Re-uploading a country replaces its
// table without changing its position in the iteration order.
func (c *Collection) Set(country string, t *Table) {
	if _, ok := c.tables[country]; !ok {
		c.order = append(c.order, country)
	}
	c.tables[country] = t
}

func (c *Collection) Get(country string) (*Table, bool) {
	t, ok := c.tables[country]
	return t, ok
}

// Countries returns the country keys in insertion order.
func (c *Collection) Countries() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

func (c *Collection) Len() int {
	return len(c.order)
}
