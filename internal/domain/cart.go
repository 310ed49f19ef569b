package domain

import "github.com/shopspring/decimal"

// CartLine is one entry of the client cart. Lines are unique by
// (Product.ID, Size, Color).
type CartLine struct {
	ID       int64   `json:"id"`
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
	Size     string  `json:"size"`
	Color    string  `json:"color"`
}

func (l CartLine) Matches(productID int64, size, color string) bool {
	return l.Product.ID == productID && l.Size == size && l.Color == color
}

func (l CartLine) Total() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// RemoteCartItem is a cart row as the backend stores it.
type RemoteCartItem struct {
	ID        int64    `json:"id"`
	UserID    int64    `json:"user_id"`
	ProductID int64    `json:"product_id"`
	Quantity  int      `json:"quantity"`
	Size      string   `json:"size,omitempty"`
	Color     string   `json:"color,omitempty"`
	AddedAt   string   `json:"added_at,omitempty"`
	Product   *Product `json:"product,omitempty"`
}

// Line converts a backend row into a client cart line.
func (i RemoteCartItem) Line() CartLine {
	product := Product{ID: i.ProductID}
	if i.Product != nil {
		product = *i.Product
	}
	return CartLine{
		ID:       i.ID,
		Product:  product,
		Quantity: i.Quantity,
		Size:     i.Size,
		Color:    i.Color,
	}
}
