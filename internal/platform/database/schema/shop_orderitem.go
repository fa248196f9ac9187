package schema

// ShopOrderItemTable represents the 'shop.order_item' table
type ShopOrderItemTable struct {
	Table       string
	ID          string
	OrderID     string
	ProductID   string
	ProductName string
	Size        string
	Quantity    string
	UnitPrice   string
}

// ShopOrderItem is the schema definition for shop.order_item
var ShopOrderItem = ShopOrderItemTable{
	Table:       "shop.order_item",
	ID:          "id",
	OrderID:     "order_id",
	ProductID:   "product_id",
	ProductName: "product_name",
	Size:        "size",
	Quantity:    "quantity",
	UnitPrice:   "unit_price",
}

// Columns returns all standard column names
func (t ShopOrderItemTable) Columns() []string {
	return []string{t.ID, t.OrderID, t.ProductID, t.ProductName, t.Size, t.Quantity, t.UnitPrice}
}
