// Package domain contains core concepts of the chat system.
// This file defines the user Profile consumed by message expansion.
// Account creation and password handling live outside this module.
package domain

// Profile is the display-ready slice of a user account. The fan-out layer
// only reads profiles; they are written by the account flows.
type Profile struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Image     string `json:"image,omitempty"`
	Color     int    `json:"color"`
}
