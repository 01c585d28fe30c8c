// Package models provides data models for the contact verifier system.
package models

import "time"

// PhoneRecord represents one phone number owned by a caller.
// Records with Checked=false form the caller's verification backlog;
// once checked they carry either a resolved identity or an error message.
type PhoneRecord struct {
	ID        string    `json:"id" db:"id"`
	OwnerID   string    `json:"ownerId" db:"owner_id"`
	Phone     string    `json:"phone" db:"phone"`
	Checked   bool      `json:"checked" db:"checked"`
	IsFound   bool      `json:"isFound" db:"is_found"`
	Username  *string   `json:"username,omitempty" db:"username"`
	FirstName *string   `json:"firstName,omitempty" db:"first_name"`
	LastName  *string   `json:"lastName,omitempty" db:"last_name"`
	Error     *string   `json:"error,omitempty" db:"error"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}
