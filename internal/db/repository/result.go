package repository

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/inferbench/bench-server/internal/db/models"
)

// ResultFilter narrows result queries. Zero-value fields are ignored.
type ResultFilter struct {
	ModelID  string
	Task     string
	Platform string
	Mode     string
	Device   string
	DType    string
	Status   string
	Limit    int
}

const defaultResultLimit = 100

type IResultRepository interface {
	Repository[models.Result]
	WithTx(tx *bun.Tx) IResultRepository
	WithDB(db *bun.DB) IResultRepository
	List(ctx context.Context, filter ResultFilter) ([]models.Result, error)
	GetLatestByIdentity(ctx context.Context, identity string) (*models.Result, error)
}

type ResultRepository struct {
	db bun.IDB
}

func NewResultRepository(db *bun.DB) IResultRepository {
	return &ResultRepository{db: db}
}

func (r *ResultRepository) Create(ctx context.Context, result *models.Result) (*models.Result, error) {
	if result == nil {
		return nil, fmt.Errorf("result model is nil")
	}

	if err := r.db.NewInsert().Model(result).Returning("*").Scan(ctx); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *ResultRepository) GetByID(ctx context.Context, id string) (*models.Result, error) {
	var result models.Result
	if err := r.db.NewSelect().Model(&result).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, err
	}

	return &result, nil
}

func (r *ResultRepository) UpdateByID(ctx context.Context, id string, result *models.Result) (*models.Result, error) {
	if result == nil {
		return nil, fmt.Errorf("result model is nil")
	}

	if err := r.db.NewUpdate().Model(result).Where("id = ?", id).Returning("*").Scan(ctx); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *ResultRepository) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.NewDelete().Model(&models.Result{}).Where("id = ?", id).Exec(ctx)
	return err
}

func (r *ResultRepository) List(ctx context.Context, filter ResultFilter) ([]models.Result, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultResultLimit
	}

	var results []models.Result
	q := r.db.NewSelect().Model(&results)
	if filter.ModelID != "" {
		q = q.Where("model_id = ?", filter.ModelID)
	}
	if filter.Task != "" {
		q = q.Where("task = ?", filter.Task)
	}
	if filter.Platform != "" {
		q = q.Where("platform = ?", filter.Platform)
	}
	if filter.Mode != "" {
		q = q.Where("mode = ?", filter.Mode)
	}
	if filter.Device != "" {
		q = q.Where("device = ?", filter.Device)
	}
	if filter.DType != "" {
		q = q.Where("d_type = ?", filter.DType)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}

	if err := q.Order("created_at DESC").Limit(limit).Scan(ctx); err != nil {
		return nil, err
	}

	return results, nil
}

func (r *ResultRepository) GetLatestByIdentity(ctx context.Context, identity string) (*models.Result, error) {
	var result models.Result
	err := r.db.NewSelect().Model(&result).
		Where("identity = ?", identity).
		Order("created_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return &result, nil
}

func (r *ResultRepository) WithTx(tx *bun.Tx) IResultRepository {
	return &ResultRepository{db: tx}
}

func (r *ResultRepository) WithDB(db *bun.DB) IResultRepository {
	return &ResultRepository{db: db}
}
