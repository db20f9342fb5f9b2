package repository

import (
	"context"
	"database/sql"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	"pitch-recorder/entities"
)

type EvaluationRepository interface {
	SaveEvaluation(ctx context.Context, evaluation *entities.Evaluation) error
	FindEvaluationById(ctx context.Context, id string) (*entities.Evaluation, error)
	ListEvaluations(ctx context.Context, limit int) ([]*entities.Evaluation, error)
}

type repo struct {
	db *gorm.DB
}

func NewRepo(db *sql.DB) (EvaluationRepository, error) {
	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db}),
		&gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		},
	)
	if err != nil {
		return nil, err
	}
	if err := gormDB.AutoMigrate(&entities.Evaluation{}); err != nil {
		return nil, err
	}
	return &repo{
		db: gormDB,
	}, nil
}

// SaveEvaluation inserts the row, overwriting an earlier evaluation of the
// same segment.
func (r *repo) SaveEvaluation(ctx context.Context, evaluation *entities.Evaluation) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(evaluation).Error
}

func (r *repo) FindEvaluationById(ctx context.Context, id string) (*entities.Evaluation, error) {
	evaluation := &entities.Evaluation{}
	err := r.db.WithContext(ctx).First(evaluation, "id = ?", id).Error
	if err != nil {
		return nil, err
	}

	return evaluation, nil
}

func (r *repo) ListEvaluations(ctx context.Context, limit int) ([]*entities.Evaluation, error) {
	var evaluations []*entities.Evaluation
	query := r.db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&evaluations).Error
	if err != nil {
		return nil, err
	}
	return evaluations, nil
}
