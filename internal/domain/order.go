package domain

import "github.com/shopspring/decimal"

type OrderItem struct {
	ID          int64           `json:"id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

type Order struct {
	ID          int64           `json:"id"`
	OrderNumber string          `json:"order_number"`
	FinalAmount decimal.Decimal `json:"final_amount"`
	Status      string          `json:"order_status"`
	CreatedAt   string          `json:"created_at"`
	Items       []OrderItem     `json:"items"`
}

type CheckoutRequest struct {
	ShippingAddress string `json:"shipping_address"`
	BillingAddress  string `json:"billing_address"`
	PaymentMethod   string `json:"payment_method"`
}
