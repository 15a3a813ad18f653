package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-template-backend/internal/domain"
)

// CreateTemplateRequest inserts a PENDING request for userID.
func CreateTemplateRequest(ctx context.Context, db *gorm.DB, userID, content string) (*domain.TemplateRequest, error) {
	now := time.Now().UTC()
	r := &domain.TemplateRequest{
		UserID:    userID,
		Content:   content,
		Status:    domain.RequestPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.WithContext(ctx).Create(r).Error; err != nil {
		return nil, err
	}
	return r, nil
}

// GetTemplateRequest fetches a request by id, or ErrNotFound.
func GetTemplateRequest(ctx context.Context, db *gorm.DB, id uint) (*domain.TemplateRequest, error) {
	var r domain.TemplateRequest
	if err := db.WithContext(ctx).First(&r, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// LatestPendingRequest returns the PENDING request with the highest id for
// userID, or ErrNotFound.
func LatestPendingRequest(ctx context.Context, db *gorm.DB, userID string) (*domain.TemplateRequest, error) {
	var r domain.TemplateRequest
	err := db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, domain.RequestPending).
		Order("id DESC").
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// TransitionTemplateRequest moves a PENDING request to status. It reports
// the number of rows changed; zero means the request was missing or no
// longer PENDING.
func TransitionTemplateRequest(ctx context.Context, db *gorm.DB, id uint, status domain.RequestStatus) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.TemplateRequest{}).
		Where("id = ? AND status = ?", id, domain.RequestPending).
		Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()})
	return res.RowsAffected, res.Error
}
