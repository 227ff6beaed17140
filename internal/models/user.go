package models

import (
	"time"

	"github.com/secureboat/recipe-api/internal/datastore"
)

// User is a cached profile for a subject, kept for display purposes only.
// It carries no ownership semantics; resources reference the subject id
// directly. The subject doubles as the public user id.
type User struct {
	ID         int64     `json:"-"`
	Sub        string    `json:"id"`
	Email      string    `json:"email,omitempty"`
	Name       string    `json:"name,omitempty"`
	GivenName  string    `json:"given_name,omitempty"`
	FamilyName string    `json:"family_name,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (u *User) Document() datastore.Document {
	return datastore.Document{
		"sub":         u.Sub,
		"email":       u.Email,
		"name":        u.Name,
		"given_name":  u.GivenName,
		"family_name": u.FamilyName,
		"createdAt":   u.CreatedAt,
		"updatedAt":   u.UpdatedAt,
	}
}

func UserFromDocument(doc datastore.Document) *User {
	return &User{
		ID:         docID(doc),
		Sub:        docString(doc, "sub"),
		Email:      docString(doc, "email"),
		Name:       docString(doc, "name"),
		GivenName:  docString(doc, "given_name"),
		FamilyName: docString(doc, "family_name"),
		CreatedAt:  docTime(doc, "createdAt"),
		UpdatedAt:  docTime(doc, "updatedAt"),
	}
}
