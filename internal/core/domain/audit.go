package domain

import "time"

// AuditFields holds standard audit information for ledger records.
type AuditFields struct {
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Touch stamps UpdatedAt, and CreatedAt when it is still zero.
func (a *AuditFields) Touch(now time.Time) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
}
