package harness

import "gorm-multistatement/internal/domain/user"

// UserSchema represents the database schema for the users table.
type UserSchema struct {
	ID    int64  `gorm:"primaryKey;autoIncrement"` // Unique identifier with auto-increment
	Name  string `gorm:"not null"`                 // User's name (required)
	Email string `gorm:"not null;unique"`          // User's unique email address (required, unique)
}

// TableName specifies the table name for the UserSchema model.
func (UserSchema) TableName() string {
	return "users"
}

func (s UserSchema) toDomain() user.User {
	return user.User{
		ID:    s.ID,
		Name:  s.Name,
		Email: s.Email,
	}
}
