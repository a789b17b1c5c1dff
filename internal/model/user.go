package model

import "time"

// Roles assignable to an account.  New registrations always start as
// RoleUser; elevated roles are granted out of band.
const (
	RoleUser      = "user"
	RoleOrganizer = "organizer"
	RoleAdmin     = "admin"
)

// User represents an account record as stored in the `users` table.  The
// json tags are omitted because these structs are used internally by the
// repository layer; handlers define separate response types.
//
// Fields:
//
//	ID           – primary key identifier of the user.
//	Username     – display name chosen at registration.
//	Email        – unique email address, stored lowercase.
//	PasswordHash – bcrypt hashed password.
//	Role         – one of RoleUser, RoleOrganizer, RoleAdmin.
//	CreatedAt    – timestamp of creation.
//	UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64
	Username     string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RefreshToken models an entry in the `refresh_tokens` table.  The plain
// token is never stored; only its SHA-256 hash.
type RefreshToken struct {
	ID        uint64
	UserID    uint64
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}
