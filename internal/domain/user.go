// Package domain contains entities without logic, just meta-data.
package domain

// User statuses as stored by the external approval workflow.
const (
	StatusApproved = "approved"
	StatusPending  = "pending"
	StatusRejected = "rejected"
)

// User is the identity resolved from a bearer credential.
type User struct {
	Handle string `json:"githubHandle"`
	Status string `json:"status"`
}

func (u *User) Approved() bool { return u.Status == StatusApproved }
