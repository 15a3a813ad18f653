package repo

import (
	"context"
	"testing"
	"time"

	"github.com/tbourn/go-template-backend/internal/domain"
)

const scopeCreate = "templates:create"

func TestGetIdempotency_BlankScopeOrKey_ReturnsNotFound(t *testing.T) {
	db := newTestDB(t)
	now := time.Now().UTC()

	if rec, err := GetIdempotency(context.Background(), db, "u1", "   ", "k1", now); rec != nil || err != ErrNotFound {
		t.Fatalf("expected (nil, ErrNotFound) for blank scope, got (%v, %v)", rec, err)
	}
	if rec, err := GetIdempotency(context.Background(), db, "u1", scopeCreate, "", now); rec != nil || err != ErrNotFound {
		t.Fatalf("expected (nil, ErrNotFound) for blank key, got (%v, %v)", rec, err)
	}
}

func TestGetIdempotency_ExpiredOrMissing_ReturnsNotFound(t *testing.T) {
	db := newTestDB(t)
	now := time.Now().UTC()

	exp := &domain.Idempotency{ID: "expired", UserID: "u1", Scope: scopeCreate, Key: "k1",
		ResourceID: "t1", Status: 200, CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)}
	if err := db.Create(exp).Error; err != nil {
		t.Fatalf("seed expired: %v", err)
	}

	if rec, err := GetIdempotency(context.Background(), db, "u1", scopeCreate, "k1", now); rec != nil || err != ErrNotFound {
		t.Fatalf("expected (nil, ErrNotFound) for expired, got (%v, %v)", rec, err)
	}
	if rec, err := GetIdempotency(context.Background(), db, "u1", scopeCreate, "missing", now); rec != nil || err != ErrNotFound {
		t.Fatalf("expected (nil, ErrNotFound) for missing, got (%v, %v)", rec, err)
	}
}

func TestCreateIdempotency_SuccessThenDuplicate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	rec, err := CreateIdempotency(ctx, db, "u1", scopeCreate, "k1", "t1", 200, time.Hour)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.ExpiresAt.Sub(rec.CreatedAt) != time.Hour {
		t.Fatalf("ttl not applied: %+v", rec)
	}

	got, err := GetIdempotency(ctx, db, "u1", scopeCreate, "k1", time.Now().UTC())
	if err != nil || got.ResourceID != "t1" || got.Status != 200 {
		t.Fatalf("get: %+v %v", got, err)
	}

	if _, err := CreateIdempotency(ctx, db, "u1", scopeCreate, "k1", "t2", 202, time.Hour); err != ErrDuplicate {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestPurgeExpiredIdempotency(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_ = db.Create(&domain.Idempotency{ID: "old", UserID: "u1", Scope: scopeCreate, Key: "a",
		ResourceID: "t", Status: 200, CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)}).Error
	_, _ = CreateIdempotency(ctx, db, "u1", scopeCreate, "b", "t", 200, time.Hour)

	n, err := PurgeExpiredIdempotency(ctx, db, now)
	if err != nil || n != 1 {
		t.Fatalf("purge: n=%d err=%v", n, err)
	}
}
