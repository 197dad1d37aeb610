package model

import "time"

// User is an entry in the identity registry. Existence is the presence of the
// record itself; the role is granted in the same write and revoked by deleting
// the record.
type User struct {
	Principal string    `json:"principal" db:"principal"`
	Role      Role      `json:"role"      db:"role"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
