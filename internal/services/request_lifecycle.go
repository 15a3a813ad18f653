package services

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-template-backend/internal/domain"
	"github.com/tbourn/go-template-backend/internal/repo"
)

// RequestLifecycle owns the PENDING -> COMPLETED | FAILED state machine of
// template requests.
//
// CreateInitial and MarkFailed always run in their own transaction on the
// root handle, so their effect survives a caller that later rolls back.
// MarkCompleted runs inside the caller's transaction so the request and the
// template it produced commit together.
//
// CreateInitial and MarkFailed also ignore the caller's cancellation: a
// request that was created must always be settled, even when the client has
// gone away.
type RequestLifecycle struct {
	// DB must be the root handle, never a transaction.
	DB *gorm.DB
}

// durableTimeout bounds CreateInitial and MarkFailed once detached.
const durableTimeout = 5 * time.Second

// durable detaches ctx from its cancellation and bounds it.
func durable(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), durableTimeout)
}

// NewRequestLifecycle builds a RequestLifecycle.
func NewRequestLifecycle(db *gorm.DB) *RequestLifecycle {
	return &RequestLifecycle{DB: db}
}

// CreateInitial persists a PENDING request for ownerID.
func (l *RequestLifecycle) CreateInitial(ctx context.Context, ownerID, content string) (*domain.TemplateRequest, error) {
	ctx, cancel := durable(ctx)
	defer cancel()
	ctx, span := otel.Tracer("services/RequestLifecycle").Start(ctx, "CreateInitial",
		trace.WithAttributes(attribute.String("user.id", ownerID)))
	defer span.End()

	var out *domain.TemplateRequest
	err := l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := repo.CreateTemplateRequest(ctx, tx, ownerID, content)
		out = r
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MarkCompleted moves request id to COMPLETED using tx.
func (l *RequestLifecycle) MarkCompleted(ctx context.Context, tx *gorm.DB, id uint) error {
	return transition(ctx, tx, id, domain.RequestCompleted)
}

// MarkFailed moves request id to FAILED in its own transaction.
func (l *RequestLifecycle) MarkFailed(ctx context.Context, id uint) error {
	ctx, cancel := durable(ctx)
	defer cancel()
	ctx, span := otel.Tracer("services/RequestLifecycle").Start(ctx, "MarkFailed",
		trace.WithAttributes(attribute.Int64("request.id", int64(id))))
	defer span.End()

	return l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return transition(ctx, tx, id, domain.RequestFailed)
	})
}

// LatestPending returns the newest PENDING request of ownerID, or
// ErrRequestNotFound.
func (l *RequestLifecycle) LatestPending(ctx context.Context, ownerID string) (*domain.TemplateRequest, error) {
	r, err := repo.LatestPendingRequest(ctx, l.DB, ownerID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrRequestNotFound
	}
	return r, err
}

// FindLatestPending adapts LatestPending for the guard.
func (l *RequestLifecycle) FindLatestPending(ctx context.Context, ownerID string) (uint, bool, error) {
	r, err := l.LatestPending(ctx, ownerID)
	switch {
	case errors.Is(err, ErrRequestNotFound):
		return 0, false, nil
	case err != nil:
		return 0, false, err
	}
	return r.ID, true, nil
}

// Get returns request id, or ErrRequestNotFound.
func (l *RequestLifecycle) Get(ctx context.Context, id uint) (*domain.TemplateRequest, error) {
	r, err := repo.GetTemplateRequest(ctx, l.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrRequestNotFound
	}
	return r, err
}

func transition(ctx context.Context, db *gorm.DB, id uint, to domain.RequestStatus) error {
	n, err := repo.TransitionTemplateRequest(ctx, db, id, to)
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	// nothing changed: tell missing from terminal
	if _, err := repo.GetTemplateRequest(ctx, db, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrRequestNotFound
		}
		return err
	}
	return ErrInvalidTransition
}
