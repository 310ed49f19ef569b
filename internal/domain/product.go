package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID             int64           `json:"id"`
	Name           string          `json:"product_name"`
	Description    string          `json:"description,omitempty"`
	Category       string          `json:"dress_category"`
	Occasion       string          `json:"occasion,omitempty"`
	Price          decimal.Decimal `json:"price"`
	Stock          int             `json:"stock"`
	Material       string          `json:"material,omitempty"`
	AvailableSizes string          `json:"available_sizes,omitempty"`
	Colors         string          `json:"colors,omitempty"`
	ImageURL       string          `json:"image_url,omitempty"`
	Featured       bool            `json:"featured_dress"`
	CreatedAt      string          `json:"created_at,omitempty"`
	UpdatedAt      string          `json:"updated_at,omitempty"`
}

// Sizes splits the comma separated available_sizes field.
func (p Product) Sizes() []string {
	return splitList(p.AvailableSizes)
}

// ColorList splits the comma separated colors field.
func (p Product) ColorList() []string {
	return splitList(p.Colors)
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}
