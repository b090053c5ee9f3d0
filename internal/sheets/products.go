package sheets

import (
	"context"
	"fmt"
	"strconv"

	"stars-shop/internal/models"
)

// ListProducts reads the Products sheet:
// id | name | description | price | image | category | in_stock
func (c *Client) ListProducts(ctx context.Context) ([]models.Product, error) {
	values, err := c.readAll(ctx, SheetProducts)
	if err != nil {
		return nil, fmt.Errorf("read products: %w", err)
	}

	products := []models.Product{}
	for i := 1; i < len(values); i++ {
		row := values[i]
		if len(row) == 0 {
			continue
		}
		price, err := strconv.ParseInt(get(row, 3), 10, 64)
		if err != nil || price <= 0 {
			continue
		}
		p := models.Product{
			ID:          get(row, 0),
			Name:        get(row, 1),
			Description: get(row, 2),
			Price:       price,
			Image:       get(row, 4),
			Category:    get(row, 5),
			InStock:     parseBool(get(row, 6)),
		}
		if p.ID == "" || p.Name == "" {
			continue
		}
		products = append(products, p)
	}
	return products, nil
}
