package model

import (
	"time"
)

type Family struct {
	ID         string    `db:"id" json:"id"`
	FamilyName string    `db:"family_name" json:"familyName"`
	CreatedBy  string    `db:"created_by" json:"createdBy"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time `db:"updated_at" json:"updatedAt"`
}

type FamilyMember struct {
	ID           string       `db:"id" json:"id"`
	UserID       string       `db:"user_id" json:"userId"`
	FamilyID     string       `db:"family_id" json:"familyId"`
	Relationship Role         `db:"relationship" json:"relationship"`
	Status       MemberStatus `db:"status" json:"status"`
	CreatedAt    time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updatedAt"`
}

// User is the identity slice the core reads from the account system. The
// core never writes users.
type User struct {
	ID       string `db:"id" json:"id"`
	Email    string `db:"email" json:"email"`
	Role     Role   `db:"role" json:"role"`
	Verified bool   `db:"verified" json:"verified"`
}
