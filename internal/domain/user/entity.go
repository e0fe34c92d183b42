package user

// User is the single mapped record the probe writes through raw SQL.
type User struct {
	ID    int64  `json:"id"`    // ID is assigned by the database
	Name  string `json:"name"`  // Name is the display name of the user
	Email string `json:"email"` // Email is unique across the table
}
