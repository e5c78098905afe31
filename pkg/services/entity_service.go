package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/crowdpulse/feedback-engine/pkg/models"
	"github.com/crowdpulse/feedback-engine/pkg/repositories"
)

// EntityService manages business entities, the ownership boundary for
// batches and feedback.
type EntityService struct {
	entities repositories.EntityRepository
}

// NewEntityService creates a new EntityService.
func NewEntityService(entities repositories.EntityRepository) *EntityService {
	return &EntityService{entities: entities}
}

// Create registers a new entity owned by ownerID.
func (s *EntityService) Create(ctx context.Context, name string, ownerID uuid.UUID) (*models.BusinessEntity, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("entity name is required")
	}

	entity := &models.BusinessEntity{
		ID:      uuid.New(),
		Name:    name,
		OwnerID: ownerID,
	}
	if err := s.entities.Create(ctx, entity); err != nil {
		return nil, err
	}
	return entity, nil
}

// Get fetches one entity.
func (s *EntityService) Get(ctx context.Context, id uuid.UUID) (*models.BusinessEntity, error) {
	return s.entities.GetByID(ctx, id)
}

// List returns all entities.
func (s *EntityService) List(ctx context.Context) ([]*models.BusinessEntity, error) {
	return s.entities.List(ctx)
}
