package model

import "time"

// Company is a directory record. ID 0 is never allocated, so the zero Company
// doubles as the "not found" value returned by lookups.
type Company struct {
	ID        int64     `json:"id"        db:"id"`
	Name      string    `json:"name"      db:"name"`
	Website   string    `json:"website"   db:"website"`
	Location  string    `json:"location"  db:"location"`
	Extra     string    `json:"extra"     db:"extra"`
	Creator   string    `json:"creator"   db:"creator"` // immutable after creation
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Exists reports whether c is a real record rather than the zero value.
func (c Company) Exists() bool {
	return c.ID != 0
}

// Membership links a recruiter to a company.
type Membership struct {
	CompanyID int64     `json:"companyId" db:"company_id"`
	Recruiter string    `json:"recruiter" db:"recruiter"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
