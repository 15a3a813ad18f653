package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-template-backend/internal/domain"
)

// CreateTemplate inserts a template with a fresh UUID and UTC timestamps.
func CreateTemplate(ctx context.Context, db *gorm.DB, t *domain.Template) error {
	now := time.Now().UTC()
	t.ID = uuid.NewString()
	t.CreatedAt = now
	t.UpdatedAt = now
	return db.WithContext(ctx).Create(t).Error
}

// GetTemplate fetches a template by id regardless of owner, or ErrNotFound.
// Ownership is checked by the caller so it can tell missing from forbidden.
func GetTemplate(ctx context.Context, db *gorm.DB, id string) (*domain.Template, error) {
	var t domain.Template
	if err := db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// CountTemplates counts userID's templates, optionally filtered by status.
func CountTemplates(ctx context.Context, db *gorm.DB, userID string, status domain.TemplateStatus) (int64, error) {
	var total int64
	err := templatesQuery(ctx, db, userID, status).Count(&total).Error
	return total, err
}

// ListTemplatesPage returns a page of userID's templates, newest first.
func ListTemplatesPage(ctx context.Context, db *gorm.DB, userID string, status domain.TemplateStatus, offset, limit int) ([]domain.Template, error) {
	var out []domain.Template
	err := templatesQuery(ctx, db, userID, status).
		Order("created_at desc, id desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// UpdateTemplateStatus moves a template from one status to another. It
// reports the number of rows changed; zero means the template was not in
// status from.
func UpdateTemplateStatus(ctx context.Context, db *gorm.DB, id string, from, to domain.TemplateStatus) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Template{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{"status": to, "updated_at": time.Now().UTC()})
	return res.RowsAffected, res.Error
}

// AddTemplateHistory appends a status entry for a template.
func AddTemplateHistory(ctx context.Context, db *gorm.DB, templateID string, status domain.TemplateStatus) (*domain.TemplateHistory, error) {
	h := &domain.TemplateHistory{
		ID:         uuid.NewString(),
		TemplateID: templateID,
		Status:     status,
		CreatedAt:  time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(h).Error; err != nil {
		return nil, err
	}
	return h, nil
}

// ListTemplateHistory returns a template's status entries, oldest first.
func ListTemplateHistory(ctx context.Context, db *gorm.DB, templateID string) ([]domain.TemplateHistory, error) {
	var out []domain.TemplateHistory
	err := db.WithContext(ctx).
		Where("template_id = ?", templateID).
		Order("created_at asc, id asc").
		Find(&out).Error
	return out, err
}

func templatesQuery(ctx context.Context, db *gorm.DB, userID string, status domain.TemplateStatus) *gorm.DB {
	q := db.WithContext(ctx).Model(&domain.Template{}).Where("user_id = ?", userID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	return q
}
