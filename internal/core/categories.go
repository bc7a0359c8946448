package core

// Catalog is the static category table consulted by the capture flows.
// Each category belongs to exactly one kind; the kind of a committed
// transaction is derived from this table, never from user-declared intent.
type Catalog struct {
	byName map[string]Kind
	byKind map[Kind][]string
}

// NewCatalog builds a catalog from ordered category lists. A name listed
// under both kinds keeps the income classification; keep the lists disjoint.
func NewCatalog(income, expense []string) Catalog {
	c := Catalog{
		byName: make(map[string]Kind, len(income)+len(expense)),
		byKind: map[Kind][]string{
			Income:  append([]string(nil), income...),
			Expense: append([]string(nil), expense...),
		},
	}
	for _, name := range expense {
		c.byName[name] = Expense
	}
	for _, name := range income {
		c.byName[name] = Income
	}
	return c
}

// DefaultCatalog returns the built-in category table.
func DefaultCatalog() Catalog {
	return NewCatalog(
		[]string{"Salary", "Sales", "Other Income"},
		[]string{"Rent", "Food", "Transport", "Internet", "Other Expense"},
	)
}

// KindOf reports the kind a category belongs to.
func (c Catalog) KindOf(category string) (Kind, bool) {
	k, ok := c.byName[category]
	return k, ok
}

// Categories returns the ordered category names for a kind.
func (c Catalog) Categories(kind Kind) []string {
	return c.byKind[kind]
}

// Has reports whether category is a member of the kind's enumerated set.
func (c Catalog) Has(kind Kind, category string) bool {
	k, ok := c.byName[category]
	return ok && k == kind
}
