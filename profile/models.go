package profile

import "time"

// Role says which side of a deal a profile takes. Every profile has a fixed
// role; a transaction always pairs one buyer with one seller.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

// Profile is a platform identity. It mirrors the profiles table and carries
// no JSON annotations so it can be reused by different presentation layers.
type Profile struct {
	ID           string
	Name         string
	Role         Role
	Phone        string
	Email        string
	PasscodeHash string
	CreatedAt    time.Time
}

// Valid reports whether the role is one of the two known values.
func (r Role) Valid() bool {
	return r == RoleBuyer || r == RoleSeller
}

// Other returns the counterpart role.
func (r Role) Other() Role {
	if r == RoleBuyer {
		return RoleSeller
	}
	return RoleBuyer
}
