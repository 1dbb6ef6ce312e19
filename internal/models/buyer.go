package models

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

type BuyerKind string

const (
	BuyerRegistered BuyerKind = "registered"
	BuyerGuest      BuyerKind = "guest"
)

type Guest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

// Buyer is either a registered user reference or an embedded guest contact.
// Exactly one of UserID and Guest is set, matching Kind.
type Buyer struct {
	Kind   BuyerKind
	UserID uuid.UUID
	Guest  *Guest

	// Contact details resolved from the users table on read; never persisted
	// on the order for registered buyers.
	UserName  string
	UserEmail string
}

func RegisteredBuyer(userID uuid.UUID) Buyer {
	return Buyer{Kind: BuyerRegistered, UserID: userID}
}

func GuestBuyer(name, email string) Buyer {
	return Buyer{Kind: BuyerGuest, Guest: &Guest{Name: name, Email: email}}
}

func (b Buyer) IsGuest() bool {
	return b.Kind == BuyerGuest
}

func (b Buyer) Validate() error {
	switch b.Kind {
	case BuyerRegistered:
		if b.UserID == uuid.Nil || b.Guest != nil {
			return fmt.Errorf("registered buyer needs a user id and no guest details")
		}
	case BuyerGuest:
		if b.Guest == nil || b.UserID != uuid.Nil {
			return fmt.Errorf("guest buyer needs guest details and no user id")
		}
	default:
		return fmt.Errorf("unknown buyer kind %q", b.Kind)
	}
	return nil
}

// DisplayName is the name to print on a packing slip.
func (b Buyer) DisplayName() string {
	if b.IsGuest() {
		return b.Guest.Name
	}
	return b.UserName
}

// Email is where order notifications go; empty when unknown.
func (b Buyer) Email() string {
	if b.IsGuest() {
		return b.Guest.Email
	}
	return b.UserEmail
}

type buyerJSON struct {
	IsGuest bool       `json:"is_guest"`
	UserID  *uuid.UUID `json:"user_id,omitempty"`
	Name    string     `json:"name,omitempty"`
	Email   string     `json:"email,omitempty"`
}

func (b Buyer) MarshalJSON() ([]byte, error) {
	out := buyerJSON{IsGuest: b.IsGuest(), Name: b.DisplayName(), Email: b.Email()}
	if !b.IsGuest() {
		id := b.UserID
		out.UserID = &id
	}
	return json.Marshal(out)
}
