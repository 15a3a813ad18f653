package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-template-backend/internal/domain"
)

// CreateFailureLog appends an audit entry. ID and CreatedAt are assigned
// when empty.
func CreateFailureLog(ctx context.Context, db *gorm.DB, e *domain.FailureLog) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(e).Error
}

// ListFailureLogs returns the audit entries of one request, oldest first.
func ListFailureLogs(ctx context.Context, db *gorm.DB, requestID uint) ([]domain.FailureLog, error) {
	var out []domain.FailureLog
	err := db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("created_at asc, id asc").
		Find(&out).Error
	return out, err
}

// CountFailureLogs returns the number of audit entries for a request.
func CountFailureLogs(ctx context.Context, db *gorm.DB, requestID uint) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.FailureLog{}).Where("request_id = ?", requestID).Count(&n).Error
	return n, err
}
