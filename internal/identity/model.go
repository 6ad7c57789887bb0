package identity

import "time"

// User represents a registered exchange participant. Offers and transactions
// reference users by email.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash []byte
	TokenVersion int
	CreatedAt    time.Time
}

// Credentials carries registration and login input.
type Credentials struct {
	Email    string
	Name     string
	Password string
}
