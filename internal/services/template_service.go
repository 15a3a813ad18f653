package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"

	"github.com/tbourn/go-template-backend/internal/aiclient"
	"github.com/tbourn/go-template-backend/internal/domain"
	"github.com/tbourn/go-template-backend/internal/errcode"
	"github.com/tbourn/go-template-backend/internal/extcall"
	"github.com/tbourn/go-template-backend/internal/guard"
	"github.com/tbourn/go-template-backend/internal/observability"
	"github.com/tbourn/go-template-backend/internal/repo"
)

// Generator is the AI call the service depends on. *aiclient.Client
// satisfies it.
type Generator interface {
	CreateTemplate(ctx context.Context, in aiclient.GenerateRequest) (extcall.Outcome[aiclient.TemplateDraft], error)
}

// CreationResult is the result of a successful Create. Template is set when
// Kind is extcall.Complete, Draft when it is extcall.Partial.
type CreationResult struct {
	Kind      extcall.Kind
	RequestID uint
	Template  *domain.Template
	Draft     *aiclient.TemplateDraft
}

// TemplateService runs the create-template workflow and the template
// read/approval operations.
type TemplateService struct {
	DB        *gorm.DB
	AI        Generator
	Registry  *errcode.Registry
	Lifecycle *RequestLifecycle
	Guard     *guard.Interceptor
	Policy    guard.Policy

	// MaxContentRunes caps the request content; zero disables the check.
	MaxContentRunes int
}

// NewTemplateService wires the service against the AI taxonomy. It panics
// if the registry lacks it.
func NewTemplateService(db *gorm.DB, ai Generator, reg *errcode.Registry, audit guard.AuditLog) *TemplateService {
	lc := NewRequestLifecycle(db)
	return &TemplateService{
		DB:              db,
		AI:              ai,
		Registry:        reg,
		Lifecycle:       lc,
		Guard:           guard.New(reg, lc, audit),
		Policy:          guard.MustPolicy(reg, errcode.AI, errcode.CodeServiceUnavailable),
		MaxContentRunes: 2000,
	}
}

// Create records a PENDING request, asks the vendor for a template and
// settles the request.
//
// On Complete the template, its CREATED history row and the COMPLETED
// transition commit together. On Partial nothing is stored and the request
// stays PENDING. Vendor and transport failures come back as *errcode.Error
// after the guard has failed and audited the request.
func (s *TemplateService) Create(ctx context.Context, userID, content string) (*CreationResult, error) {
	tr := otel.Tracer("services/TemplateService")
	ctx, span := tr.Start(ctx, "Create", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	content = norm.NFC.String(strings.TrimSpace(content))
	if content == "" {
		return nil, Invalid("request_content", "must not be empty", nil)
	}
	if s.MaxContentRunes > 0 && utf8.RuneCountInString(content) > s.MaxContentRunes {
		return nil, Invalid("request_content", "too long", map[string]any{"max_runes": s.MaxContentRunes})
	}

	req, err := s.Lifecycle.CreateInitial(ctx, userID, content)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int64("request.id", int64(req.ID)))

	out, err := guard.Run(ctx, s.Guard, s.Policy, userID, func(ctx context.Context) (extcall.Outcome[aiclient.TemplateDraft], error) {
		return s.generate(ctx, aiclient.GenerateRequest{UserID: userID, RequestContent: content})
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if out.Kind == extcall.Partial {
		draft := out.Payload
		return &CreationResult{Kind: extcall.Partial, RequestID: req.ID, Draft: &draft}, nil
	}

	tpl, err := s.persist(ctx, userID, req.ID, out.Payload)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		// the request must not stay PENDING for a later failure to claim
		if ferr := s.Lifecycle.MarkFailed(ctx, req.ID); ferr != nil {
			loggerFrom(ctx).Error().Err(ferr).Uint("request_id", req.ID).Msg("mark request failed after persist error")
		}
		return nil, err
	}
	return &CreationResult{Kind: extcall.Complete, RequestID: req.ID, Template: tpl}, nil
}

// generate performs one vendor call and turns a Failure outcome into its
// *extcall.RawFailure so the guard can translate it.
func (s *TemplateService) generate(ctx context.Context, in aiclient.GenerateRequest) (extcall.Outcome[aiclient.TemplateDraft], error) {
	start := time.Now()
	out, err := s.AI.CreateTemplate(ctx, in)
	observability.AICallDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		observability.AICalls.WithLabelValues("transport").Inc()
		return out, err
	}
	observability.AICalls.WithLabelValues(out.Kind.String()).Inc()
	if ferr := out.Err(); ferr != nil {
		return out, ferr
	}
	return out, nil
}

func (s *TemplateService) persist(ctx context.Context, userID string, requestID uint, d aiclient.TemplateDraft) (*domain.Template, error) {
	tpl := &domain.Template{
		UserID:     userID,
		RequestID:  requestID,
		Title:      norm.NFC.String(strings.TrimSpace(d.Title)),
		Content:    d.Content,
		CategoryID: d.CategoryID,
		Type:       d.Type,
		Buttons:    d.Buttons,
		Variables:  d.Variables,
		Industries: d.Industries,
		Purposes:   d.Purposes,
		Status:     domain.TemplateCreated,
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.CreateTemplate(ctx, tx, tpl); err != nil {
			return err
		}
		if _, err := repo.AddTemplateHistory(ctx, tx, tpl.ID, domain.TemplateCreated); err != nil {
			return err
		}
		return s.Lifecycle.MarkCompleted(ctx, tx, requestID)
	})
	if err != nil {
		return nil, err
	}
	return tpl, nil
}

// ListPage returns a page of userID's templates, optionally filtered by
// status, and the total count.
func (s *TemplateService) ListPage(ctx context.Context, userID string, status domain.TemplateStatus, page, pageSize int) ([]domain.Template, int64, error) {
	tr := otel.Tracer("services/TemplateService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("status", string(status)),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if status != "" && !status.Valid() {
		return nil, 0, BadInput("unknown template status", map[string]any{"status": string(status)})
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountTemplates(ctx, s.DB, userID, status)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Template{}, 0, nil
	}
	items, err := repo.ListTemplatesPage(ctx, s.DB, userID, status, offset, pageSize)
	return items, total, err
}

// Stats feeds the list ETag.
func (s *TemplateService) Stats(ctx context.Context, userID string, status domain.TemplateStatus) (int64, *time.Time, error) {
	return repo.TemplatesStats(ctx, s.DB, userID, status)
}

// Get returns template id if userID owns it.
func (s *TemplateService) Get(ctx context.Context, userID, id string) (*domain.Template, error) {
	tpl, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if tpl.UserID != userID {
		return nil, s.templateError(errcode.CodeForbiddenTemplate)
	}
	return tpl, nil
}

// History lists the statuses template id went through.
func (s *TemplateService) History(ctx context.Context, userID, id string) ([]domain.TemplateHistory, error) {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return nil, err
	}
	return repo.ListTemplateHistory(ctx, s.DB, id)
}

// RequestApproval moves a CREATED template to APPROVE_REQUESTED and records
// the history row in the same transaction.
func (s *TemplateService) RequestApproval(ctx context.Context, userID, id string) (*domain.Template, error) {
	tr := otel.Tracer("services/TemplateService")
	ctx, span := tr.Start(ctx, "RequestApproval",
		trace.WithAttributes(attribute.String("user.id", userID), attribute.String("template.id", id)))
	defer span.End()

	tpl, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if tpl.UserID != userID {
		return nil, s.templateError(errcode.CodeForbiddenTemplate)
	}
	switch tpl.Status {
	case domain.TemplateCreated:
	case domain.TemplateApproveRequested:
		return nil, s.templateError(errcode.CodeAlreadyApproveRequested)
	default:
		return nil, s.templateError(errcode.CodeApproveRequestForbidden)
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := repo.UpdateTemplateStatus(ctx, tx, id, domain.TemplateCreated, domain.TemplateApproveRequested)
		if err != nil {
			return err
		}
		if n == 0 {
			// lost a race with a concurrent request
			return s.templateError(errcode.CodeAlreadyApproveRequested)
		}
		_, err = repo.AddTemplateHistory(ctx, tx, id, domain.TemplateApproveRequested)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

func (s *TemplateService) load(ctx context.Context, id string) (*domain.Template, error) {
	tpl, err := repo.GetTemplate(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, s.templateError(errcode.CodeTemplateNotFound)
	}
	return tpl, err
}

// templateError raises a template-taxonomy error for code.
func (s *TemplateService) templateError(code string) error {
	v, err := s.Registry.Resolve(errcode.Template, code)
	if err != nil {
		return err
	}
	return errcode.New(v, "")
}

func loggerFrom(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return l
	}
	l := log.With().Logger()
	return &l
}
