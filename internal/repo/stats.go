package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-template-backend/internal/domain"
)

// TemplatesStats returns the number of userID's templates matching status
// (all when empty) and the greatest UpdatedAt among them. It feeds the weak
// ETag on the list endpoint. maxUpdatedAt is nil when there are no rows.
func TemplatesStats(ctx context.Context, db *gorm.DB, userID string, status domain.TemplateStatus) (count int64, maxUpdatedAt *time.Time, err error) {
	if err = templatesQuery(ctx, db, userID, status).Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// avoid MAX() -> TEXT in SQLite
	var row struct {
		UpdatedAt time.Time
	}
	if err = templatesQuery(ctx, db, userID, status).Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
