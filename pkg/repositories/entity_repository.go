package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/crowdpulse/feedback-engine/pkg/apperrors"
	"github.com/crowdpulse/feedback-engine/pkg/database"
	"github.com/crowdpulse/feedback-engine/pkg/models"
)

// EntityRepository provides data access for business entities.
type EntityRepository interface {
	Create(ctx context.Context, entity *models.BusinessEntity) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.BusinessEntity, error)
	List(ctx context.Context) ([]*models.BusinessEntity, error)
}

type entityRepository struct {
	db *database.DB
}

// NewEntityRepository creates a new EntityRepository.
func NewEntityRepository(db *database.DB) EntityRepository {
	return &entityRepository{db: db}
}

var _ EntityRepository = (*entityRepository)(nil)

func (r *entityRepository) Create(ctx context.Context, entity *models.BusinessEntity) error {
	if entity.ID == uuid.Nil {
		entity.ID = uuid.New()
	}
	entity.CreatedAt = time.Now()

	query := `
		INSERT INTO entities (id, name, owner_id, created_at)
		VALUES ($1, $2, $3, $4)`

	_, err := r.db.Exec(ctx, query, entity.ID, entity.Name, entity.OwnerID, entity.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return fmt.Errorf("entity %q: %w", entity.Name, apperrors.ErrConflict)
		}
		return fmt.Errorf("failed to create entity: %w", err)
	}
	return nil
}

func (r *entityRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.BusinessEntity, error) {
	query := `SELECT id, name, owner_id, created_at FROM entities WHERE id = $1`

	var e models.BusinessEntity
	err := r.db.QueryRow(ctx, query, id).Scan(&e.ID, &e.Name, &e.OwnerID, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrEntityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entity: %w", err)
	}
	return &e, nil
}

func (r *entityRepository) List(ctx context.Context) ([]*models.BusinessEntity, error) {
	query := `SELECT id, name, owner_id, created_at FROM entities ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	defer rows.Close()

	var entities []*models.BusinessEntity
	for rows.Next() {
		var e models.BusinessEntity
		if err := rows.Scan(&e.ID, &e.Name, &e.OwnerID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		entities = append(entities, &e)
	}
	return entities, rows.Err()
}
