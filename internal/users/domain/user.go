package domain

import "time"

// User is the identity-store record. The token and claims layers only ever
// read ID, Email, UserName and the soft-delete flag; everything else belongs
// to the identity store.
type User struct {
	ID             string
	Email          string
	UserName       string
	FirstName      string
	LastName       string
	PasswordHash   string // argon2id encoded, managed by the identity store
	EmailConfirmed bool
	IsDeleted      bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// DisplayName is what goes into the name claim: username first, then email,
// then the bare identifier. Never empty for a persisted user.
func (u User) DisplayName() string {
	switch {
	case u.UserName != "":
		return u.UserName
	case u.Email != "":
		return u.Email
	default:
		return u.ID
	}
}
