package domain

// Role gates which audit log entries a user may read.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// User is a registered account. PasswordHash is a bcrypt digest; this layer
// never sees or stores plaintext passwords.
type User struct {
	ID           int64  `json:"userId"`
	PasswordHash string `json:"-"`
	Role         Role   `json:"role"`
}
