package schema

// ShopOrderTable represents the 'shop.orders' table
type ShopOrderTable struct {
	Table            string
	ID               string
	OrderNumber      string
	UserID           string
	CustomerName     string
	CustomerEmail    string
	CustomerPhone    string
	CustomerAddress  string
	CustomerCity     string
	CustomerZip      string
	TotalAmount      string
	PaymentMethod    string
	Status           string
	PaymentID        string
	PreferenceID     string
	CheckoutURL      string
	VerificationCode string
	CreatedAt        string
	UpdatedAt        string
}

// ShopOrder is the schema definition for shop.orders
var ShopOrder = ShopOrderTable{
	Table:            "shop.orders",
	ID:               "id",
	OrderNumber:      "order_number",
	UserID:           "user_id",
	CustomerName:     "customer_name",
	CustomerEmail:    "customer_email",
	CustomerPhone:    "customer_phone",
	CustomerAddress:  "customer_address",
	CustomerCity:     "customer_city",
	CustomerZip:      "customer_zip",
	TotalAmount:      "total_amount",
	PaymentMethod:    "payment_method",
	Status:           "status",
	PaymentID:        "payment_id",
	PreferenceID:     "preference_id",
	CheckoutURL:      "checkout_url",
	VerificationCode: "verification_code",
	CreatedAt:        "created_at",
	UpdatedAt:        "updated_at",
}

// Columns returns all standard column names
func (t ShopOrderTable) Columns() []string {
	return []string{
		t.ID, t.OrderNumber, t.UserID, t.CustomerName, t.CustomerEmail, t.CustomerPhone,
		t.CustomerAddress, t.CustomerCity, t.CustomerZip, t.TotalAmount, t.PaymentMethod, t.Status,
		t.PaymentID, t.PreferenceID, t.CheckoutURL, t.VerificationCode, t.CreatedAt, t.UpdatedAt,
	}
}
