package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-template-backend/internal/domain"
	"github.com/tbourn/go-template-backend/internal/repo"
)

// FailureLogService is the append-only failure audit log.
type FailureLogService struct {
	DB *gorm.DB
}

// NewFailureLogService builds a FailureLogService.
func NewFailureLogService(db *gorm.DB) *FailureLogService {
	return &FailureLogService{DB: db}
}

// Record appends one entry on the root handle.
func (s *FailureLogService) Record(ctx context.Context, e *domain.FailureLog) error {
	return repo.CreateFailureLog(ctx, s.DB, e)
}

// ForRequest lists the entries recorded for a request.
func (s *FailureLogService) ForRequest(ctx context.Context, requestID uint) ([]domain.FailureLog, error) {
	return repo.ListFailureLogs(ctx, s.DB, requestID)
}
