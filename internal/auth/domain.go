package auth

import "time"

// User represents a registered account. Accounts are append-only: there is
// no update or delete path.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}
