package schema

// ShopProductTable represents the 'shop.product' table
type ShopProductTable struct {
	Table           string
	ID              string
	Name            string
	Slug            string
	Brand           string
	Description     string
	Price           string
	DiscountPercent string
	Category        string
	Sizes           string
	Stock           string
	Image           string
	Images          string
	Status          string
	CreatedAt       string
	UpdatedAt       string
}

// ShopProduct is the schema definition for shop.product
var ShopProduct = ShopProductTable{
	Table:           "shop.product",
	ID:              "id",
	Name:            "name",
	Slug:            "slug",
	Brand:           "brand",
	Description:     "description",
	Price:           "price",
	DiscountPercent: "discount_percent",
	Category:        "category",
	Sizes:           "sizes",
	Stock:           "stock",
	Image:           "image",
	Images:          "images",
	Status:          "status",
	CreatedAt:       "created_at",
	UpdatedAt:       "updated_at",
}

// Columns returns all standard column names
func (t ShopProductTable) Columns() []string {
	return []string{
		t.ID, t.Name, t.Slug, t.Brand, t.Description, t.Price, t.DiscountPercent, t.Category,
		t.Sizes, t.Stock, t.Image, t.Images, t.Status, t.CreatedAt, t.UpdatedAt,
	}
}
