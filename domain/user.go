package domain

// User represents a registered account.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// UserRecord is a stored user including the password hash. The hash never
// leaves the domain layer.
type UserRecord struct {
	User
	PasswordHash string
}
