package catalog

import (
	"fmt"

	"github.com/kailas-cloud/bookrec/internal/domain"
)

// Catalog is the immutable reference data: books, tags and their associations.
// Safe for concurrent reads; nothing mutates it after New.
type Catalog struct {
	books      []Book
	tags       []Tag
	bookTags   []BookTag
	byID       map[int]int
	byExternal map[int]int
}

// New indexes the reference tables. Duplicate catalog or external ids are rejected.
func New(books []Book, tags []Tag, bookTags []BookTag) (*Catalog, error) {
	c := &Catalog{
		books:      books,
		tags:       tags,
		bookTags:   bookTags,
		byID:       make(map[int]int, len(books)),
		byExternal: make(map[int]int, len(books)),
	}
	for i, b := range books {
		if _, dup := c.byID[b.ID]; dup {
			return nil, fmt.Errorf("duplicate book id %d", b.ID)
		}
		if _, dup := c.byExternal[b.ExternalID]; dup {
			return nil, fmt.Errorf("duplicate external book id %d", b.ExternalID)
		}
		c.byID[b.ID] = i
		c.byExternal[b.ExternalID] = i
	}
	return c, nil
}

// Books returns all books. The slice is shared and must not be modified.
func (c *Catalog) Books() []Book { return c.books }

// Tags returns all tags. The slice is shared and must not be modified.
func (c *Catalog) Tags() []Tag { return c.tags }

// BookTags returns all associations. The slice is shared and must not be modified.
func (c *Catalog) BookTags() []BookTag { return c.bookTags }

// Book resolves an item id under the given scheme.
func (c *Catalog) Book(id int, scheme IDScheme) (Book, bool) {
	idx := c.byExternal
	if scheme == SchemeCatalog {
		idx = c.byID
	}
	i, ok := idx[id]
	if !ok {
		return Book{}, false
	}
	return c.books[i], true
}

// Reconciliation reports how many prediction rows resolve to catalog books.
type Reconciliation struct {
	Rows       int
	Resolved   int
	Unresolved int
}

// Reconcile checks that the prediction table's item ids resolve under its scheme.
// A non-empty table with zero resolvable rows means the scheme is misconfigured.
func (c *Catalog) Reconcile(p *Predictions) (Reconciliation, error) {
	rec := Reconciliation{Rows: p.Len()}
	p.each(func(r Prediction) {
		if _, ok := c.Book(r.ItemID, p.Scheme()); ok {
			rec.Resolved++
		} else {
			rec.Unresolved++
		}
	})

	if rec.Rows > 0 && rec.Resolved == 0 {
		return rec, fmt.Errorf("%w: none of %d prediction rows resolve by %s id",
			domain.ErrCatalogMismatch, rec.Rows, p.Scheme())
	}
	return rec, nil
}
