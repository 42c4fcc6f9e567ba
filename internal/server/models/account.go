package models

// Account roles form a small closed set.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// ValidRole reports whether r is one of the known account roles.
func ValidRole(r string) bool {
	return r == RoleAdmin || r == RoleUser
}

// Account is the persisted credential record. PasswordHash is the bcrypt
// digest of the secret; the plaintext never leaves the handler that read it.
type Account struct {
	ID           string
	Username     string
	PasswordHash string
	Role         string
}
