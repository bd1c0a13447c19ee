package models

import "time"

// Point-of-sale records exchanged with the data service.

// User is an authenticated store user.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Email    string `json:"email,omitempty"`
	RoleID   int    `json:"role_id"`
	Active   bool   `json:"active"`
}

// Credentials for the login call.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Product is an inventory item.
type Product struct {
	ID              int64   `json:"id"`
	Code            string  `json:"code"`
	Name            string  `json:"name"`
	Description     string  `json:"description,omitempty"`
	Price           float64 `json:"price"`
	Stock           int     `json:"stock"`
	MinStock        int     `json:"min_stock"`
	CategoryID      int64   `json:"category_id"`
	DiscountPercent float64 `json:"discount_percent"`
}

// Category groups products.
type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// StoreSettings are the shop details printed on receipts.
type StoreSettings struct {
	Name    string  `json:"name"`
	Address string  `json:"address"`
	Phone   string  `json:"phone"`
	TaxRate float64 `json:"tax_rate"`
}

// SaleItem is one line of a sale.
type SaleItem struct {
	ProductID int64   `json:"product_id"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

// Sale is a completed checkout.
type Sale struct {
	ID            int64      `json:"id"`
	Folio         string     `json:"folio"`
	UserID        int64      `json:"user_id"`
	Items         []SaleItem `json:"items"`
	Total         float64    `json:"total"`
	PaymentMethod string     `json:"payment_method"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Return reverses part or all of a sale.
type Return struct {
	ID        int64      `json:"id"`
	SaleFolio string     `json:"sale_folio"`
	UserID    int64      `json:"user_id"`
	Items     []SaleItem `json:"items"`
	Reason    string     `json:"reason"`
	Refund    float64    `json:"refund"`
}

// SalesSummary aggregates sales over a date range.
type SalesSummary struct {
	From        time.Time `json:"from"`
	To          time.Time `json:"to"`
	SaleCount   int       `json:"sale_count"`
	Total       float64   `json:"total"`
	ReturnCount int       `json:"return_count"`
	Refunded    float64   `json:"refunded"`
}
