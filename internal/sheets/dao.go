package sheets

import (
	"context"
	"fmt"
	"strings"
)

const (
	SheetProducts = "Products"
	SheetPayments = "Payments"
)

func (c *Client) readAll(ctx context.Context, sheet string) ([][]interface{}, error) {
	return c.values.Get(ctx, sheet+"!A:Z")
}

func (c *Client) appendRow(ctx context.Context, sheet string, row []interface{}) error {
	return c.values.Append(ctx, sheet+"!A:Z", row)
}

func (c *Client) updateRange(ctx context.Context, sheet, a1 string, row []interface{}) error {
	return c.values.Update(ctx, sheet+"!"+a1, [][]interface{}{row})
}

// findRow returns the 1-based sheet row whose first column equals key, or 0.
func (c *Client) findRow(ctx context.Context, sheet, key string) (int, error) {
	values, err := c.readAll(ctx, sheet)
	if err != nil {
		return 0, err
	}
	// header row at index 0
	for i := 1; i < len(values); i++ {
		if get(values[i], 0) == key {
			return i + 1, nil // sheet rows are 1-indexed
		}
	}
	return 0, nil
}

func get(row []interface{}, idx int) string {
	if idx < 0 || idx >= len(row) || row[idx] == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(row[idx]))
}

// parseBool accepts the values people type into a spreadsheet cell.
func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y", "да", "+", "✅":
		return true
	default:
		return false
	}
}
