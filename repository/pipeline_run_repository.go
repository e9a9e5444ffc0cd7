package repository

import (
	"fmt"

	"MeetScope/model"

	"gorm.io/gorm"
)

// PipelineRunRepository persists pipeline execution audit rows.
type PipelineRunRepository interface {
	Record(run *model.PipelineRun) error
}

// gormPipelineRunRepository implements PipelineRunRepository with GORM.
type gormPipelineRunRepository struct {
	db *gorm.DB
}

// NewGormPipelineRunRepository creates a GORM-backed run repository.
func NewGormPipelineRunRepository(gdb *gorm.DB) PipelineRunRepository {
	return &gormPipelineRunRepository{db: gdb}
}

func (r *gormPipelineRunRepository) Record(run *model.PipelineRun) error {
	if err := r.db.Create(run).Error; err != nil {
		return fmt.Errorf("failed to record pipeline run: %w", err)
	}
	return nil
}

// noopPipelineRunRepository drops audit rows; used when MySQL is not configured.
type noopPipelineRunRepository struct{}

// NewNoopPipelineRunRepository creates a run repository that discards rows.
func NewNoopPipelineRunRepository() PipelineRunRepository {
	return noopPipelineRunRepository{}
}

func (noopPipelineRunRepository) Record(*model.PipelineRun) error { return nil }
