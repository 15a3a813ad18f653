package services

import (
	"context"
	"fmt"
	"strings"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-template-backend/internal/aiclient"
	"github.com/tbourn/go-template-backend/internal/errcode"
	"github.com/tbourn/go-template-backend/internal/extcall"
	"github.com/tbourn/go-template-backend/internal/repo"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db.Exec("PRAGMA foreign_keys=ON;")
	require.NoError(t, repo.AutoMigrate(db))
	return db
}

// fakeGenerator returns a canned outcome and counts calls.
type fakeGenerator struct {
	out   extcall.Outcome[aiclient.TemplateDraft]
	err   error
	calls int
	last  aiclient.GenerateRequest
}

func (g *fakeGenerator) CreateTemplate(_ context.Context, in aiclient.GenerateRequest) (extcall.Outcome[aiclient.TemplateDraft], error) {
	g.calls++
	g.last = in
	return g.out, g.err
}

func newTemplateService(t *testing.T, gen Generator) (*TemplateService, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	svc := NewTemplateService(db, gen, errcode.MustBuiltin(), NewFailureLogService(db))
	return svc, db
}
