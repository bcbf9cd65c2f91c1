package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Channel is a named group conversation with a fixed member set and one admin.
// Messages holds the ordered list of message IDs appended on each channel send.
// UpdatedAt tracks the latest send so listings surface active channels first.
type Channel struct {
	ID        uuid.UUID   `json:"id"`
	Name      string      `json:"name"`
	Members   []string    `json:"members"`
	Admin     string      `json:"admin"`
	Messages  []uuid.UUID `json:"messages"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// Recipients returns every user the channel fans out to: all members plus the
// admin, deduplicated. The admin is a participant whether or not the member
// list includes them.
func (c Channel) Recipients() []string {
	return lo.Uniq(append(append([]string{}, c.Members...), c.Admin))
}

// HasParticipant reports whether the user is a member or the admin.
func (c Channel) HasParticipant(userID string) bool {
	return lo.Contains(c.Recipients(), userID)
}
