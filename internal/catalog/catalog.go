package catalog

import (
	"stars-shop/internal/models"
)

const CategoryAll = "All"

// Catalog is read-only after construction.
type Catalog struct {
	products   []models.Product
	byID       map[string]models.Product
	categories []string
}

func New(products []models.Product) *Catalog {
	c := &Catalog{
		products:   make([]models.Product, 0, len(products)),
		byID:       make(map[string]models.Product, len(products)),
		categories: []string{CategoryAll},
	}
	seen := map[string]bool{}
	for _, p := range products {
		if p.ID == "" {
			continue
		}
		if _, dup := c.byID[p.ID]; dup {
			continue
		}
		c.products = append(c.products, p)
		c.byID[p.ID] = p
		if p.Category != "" && !seen[p.Category] {
			seen[p.Category] = true
			c.categories = append(c.categories, p.Category)
		}
	}
	return c
}

func (c *Catalog) Get(id string) (models.Product, bool) {
	p, ok := c.byID[id]
	return p, ok
}

// List returns products of the category; empty or All means everything.
func (c *Catalog) List(category string) []models.Product {
	out := []models.Product{}
	for _, p := range c.products {
		if category == "" || category == CategoryAll || p.Category == category {
			out = append(out, p)
		}
	}
	return out
}

func (c *Catalog) Categories() []string {
	out := make([]string, len(c.categories))
	copy(out, c.categories)
	return out
}

func (c *Catalog) Len() int { return len(c.products) }
