package db

import (
	"github.com/google/uuid"
)

// GroupInfo is the metadata of one trip group. The trip code is a short
// shareable string members use to join; it is stored uppercase.
type GroupInfo struct {
	ID          uuid.UUID
	Name        string
	Description string
	CreatedBy   string
	TripCode    string
}
