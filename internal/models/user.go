package models

import (
	"time"

	"github.com/google/uuid"
)

// User carries just enough profile for alert delivery; account management
// belongs to the external auth service.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	CreatedAt time.Time `json:"created_at"`
}
