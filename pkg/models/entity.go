package models

import (
	"time"

	"github.com/google/uuid"
)

// BusinessEntity is a tenant/workspace boundary. Entities are created on
// demand and referenced, never mutated, by the ingestion pipeline.
type BusinessEntity struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	OwnerID   uuid.UUID `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}
