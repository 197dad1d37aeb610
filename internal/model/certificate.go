package model

import (
	"fmt"
	"strings"
	"time"
)

// CertificateStatus is the verification state of a certificate.
//
//	Pending ──verify──▶ Verified (terminal)
//	Pending ──reject──▶ Rejected (terminal)
type CertificateStatus int

const (
	StatusPending CertificateStatus = iota
	StatusVerified
	StatusRejected
)

func (s CertificateStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusVerified:
		return "verified"
	case StatusRejected:
		return "rejected"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Terminal reports whether s is a final decision.
func (s CertificateStatus) Terminal() bool {
	return s == StatusVerified || s == StatusRejected
}

// ParseStatus accepts the status name or its number.
func ParseStatus(v string) (CertificateStatus, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "pending", "0":
		return StatusPending, nil
	case "verified", "1":
		return StatusVerified, nil
	case "rejected", "2":
		return StatusRejected, nil
	}
	return 0, fmt.Errorf("model: unknown certificate status %q", v)
}

func (s CertificateStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *CertificateStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Certificate is a credential claimed by a candidate and decided by the
// creator of CompanyID. The deciding principal is never stored: it is looked
// up from the company each time a decision is attempted.
type Certificate struct {
	ID        int64             `json:"id"        db:"id"`
	Name      string            `json:"name"      db:"name"`
	URL       string            `json:"url"       db:"url"` // unique across the platform
	Candidate string            `json:"candidate" db:"candidate"`
	CompanyID int64             `json:"companyId" db:"company_id"`
	Status    CertificateStatus `json:"status"    db:"status"`
	DecidedAt time.Time         `json:"decidedAt" db:"decided_at"` // zero while pending
	CreatedAt time.Time         `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time         `json:"updatedAt" db:"updated_at"`
}

func (c Certificate) Exists() bool {
	return c.ID != 0
}
