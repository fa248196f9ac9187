package schema

// UserAccountTable represents the 'users.account' table
type UserAccountTable struct {
	Table         string
	ID            string
	Username      string
	Email         string
	PasswordHash  string
	Role          string
	FirstName     string
	LastName      string
	NationalID    string
	Phone         string
	Address       string
	PostalCode    string
	EmailVerified string
	CreatedAt     string
	UpdatedAt     string
}

// UserAccount is the schema definition for users.account
var UserAccount = UserAccountTable{
	Table:         "users.account",
	ID:            "id",
	Username:      "username",
	Email:         "email",
	PasswordHash:  "password_hash",
	Role:          "role",
	FirstName:     "first_name",
	LastName:      "last_name",
	NationalID:    "national_id",
	Phone:         "phone",
	Address:       "address",
	PostalCode:    "postal_code",
	EmailVerified: "email_verified",
	CreatedAt:     "created_at",
	UpdatedAt:     "updated_at",
}

// Columns returns all standard column names
func (t UserAccountTable) Columns() []string {
	return []string{
		t.ID, t.Username, t.Email, t.PasswordHash, t.Role, t.FirstName, t.LastName,
		t.NationalID, t.Phone, t.Address, t.PostalCode, t.EmailVerified, t.CreatedAt, t.UpdatedAt,
	}
}
