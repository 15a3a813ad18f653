// Template HTTP handlers.
//
// This file exposes REST endpoints for template resources:
//   - POST   /templates                      (generate via the AI vendor)
//   - GET    /templates                      (list, paginated, ETag support)
//   - GET    /templates/{id}                 (fetch)
//   - GET    /templates/{id}/history         (status history)
//   - POST   /templates/{id}/approve-request (request approval)
//
// Handlers are transport-thin: they bind input, call the template service
// and hand every error to RespondError.
//
// Idempotency:
// If the client supplies an Idempotency-Key header and a completed creation
// exists for (user, scope, key), POST /templates returns the stored template
// and sets `Idempotency-Replayed: true` without calling the vendor again.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-template-backend/internal/domain"
	"github.com/tbourn/go-template-backend/internal/extcall"
	"github.com/tbourn/go-template-backend/internal/http/middleware"
	"github.com/tbourn/go-template-backend/internal/services"
	"github.com/tbourn/go-template-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// TemplateService defines the template operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type TemplateService interface {
	// Create runs one generation for userID.
	Create(ctx context.Context, userID, content string) (*services.CreationResult, error)
	// ListPage returns a page of userID's templates and the total count.
	ListPage(ctx context.Context, userID string, status domain.TemplateStatus, page, pageSize int) ([]domain.Template, int64, error)
	// Stats returns the count and newest update time used for ETags.
	Stats(ctx context.Context, userID string, status domain.TemplateStatus) (int64, *time.Time, error)
	// Get returns a template owned by userID.
	Get(ctx context.Context, userID, id string) (*domain.Template, error)
	// History lists the status changes of a template owned by userID.
	History(ctx context.Context, userID, id string) ([]domain.TemplateHistory, error)
	// RequestApproval moves a CREATED template to APPROVE_REQUESTED.
	RequestApproval(ctx context.Context, userID, id string) (*domain.Template, error)
}

// IdempotencyStore keeps completed creations keyed by (user, scope, key).
type IdempotencyStore interface {
	// Find returns the stored resource id, or found=false.
	Find(ctx context.Context, userID, scope, key string, now time.Time) (resourceID string, found bool, err error)
	// Save records resourceID for ttl.
	Save(ctx context.Context, userID, scope, key, resourceID string, status int, ttl time.Duration) error
}

// errNoTemplate reports a Complete result without a template.
var errNoTemplate = errors.New("completed creation returned no template")

// defaultIdempotencyTTL is the replay window New installs.
const defaultIdempotencyTTL = 24 * time.Hour

//
// Handler wiring
//

// Handlers groups the template endpoints.
type Handlers struct {
	svc  TemplateService
	idem IdempotencyStore

	// IdempotencyTTL is how long a completed creation can be replayed.
	IdempotencyTTL time.Duration
}

// New constructs Handlers. idem may be nil to disable replay.
func New(svc TemplateService, idem IdempotencyStore) *Handlers {
	return &Handlers{svc: svc, idem: idem, IdempotencyTTL: defaultIdempotencyTTL}
}

// userID extracts the caller id set by middleware.Identity. It falls back to
// the X-User-ID header (tests use it) and finally to "demo-user". It never
// touches c.Request if it's nil.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader(middleware.HeaderUserID)); h != "" {
			return h
		}
	}
	return "demo-user"
}

//
// DTOs
//

// CreateTemplateRequest is the JSON payload for generating a template.
type CreateTemplateRequest struct {
	// RequestContent describes the template the AI should draft.
	RequestContent string `json:"request_content" binding:"required" example:"Shipping notice with a tracking button"`
}

// DraftResponse is returned when the vendor produced a partial draft. The
// draft is not stored.
type DraftResponse struct {
	RequestID uint `json:"request_id"`
	Draft     any  `json:"draft"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListTemplatesResponse wraps a page of templates and pagination information.
type ListTemplatesResponse struct {
	Templates  []domain.Template `json:"templates"`
	Pagination Pagination        `json:"pagination"`
}

//
// Helpers
//

// templateID validates the :id path parameter.
func templateID(c *gin.Context) (string, error) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		return "", services.BadInput("template id must be a UUID", map[string]any{"id": id})
	}
	return id, nil
}

//
// Handlers
//

// CreateTemplate godoc
// @ID          createTemplate
// @Summary     Generate a template
// @Description Asks the AI vendor for a template draft. A complete draft is stored and returned (200);
// @Description a partial draft is returned unsaved (202). Vendor failures keep the vendor's code.
// @Description Supports idempotency via the Idempotency-Key header for completed creations.
// @Tags        Templates
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID        header  string  false "User ID (demo header)"  example(user123)
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       body             body    handlers.CreateTemplateRequest  true  "Generation payload"
//
// @Success     200  {object}  handlers.Envelope{data=domain.Template}  "Template stored"
// @Success     202  {object}  handlers.Envelope{data=handlers.DraftResponse}  "Partial draft"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request or vendor rejection"
// @Failure     429  {object}  handlers.ErrorResponse  "Rate limited or quota exceeded"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Failure     503  {object}  handlers.ErrorResponse  "AI service unavailable"
// @Router      /templates [post]
func (h *Handlers) CreateTemplate(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)

	var req CreateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, services.BadInput("invalid JSON body", map[string]any{"error": err.Error()}))
		return
	}

	// Idempotency (replay path).
	idemKey, _ := middleware.GetIdempotencyKey(c)
	scope := middleware.IdempotencyScope(c)
	if idemKey != "" && h.idem != nil {
		id, found, err := h.idem.Find(ctx, uid, scope, idemKey, time.Now().UTC())
		if err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("idempotency find failed")
		}
		if found {
			if prev, err := h.svc.Get(ctx, uid, id); err == nil {
				c.Header("Idempotency-Replayed", "true")
				ok(c, http.StatusOK, prev)
				return
			}
		}
	}

	res, err := h.svc.Create(ctx, uid, req.RequestContent)
	if err != nil {
		RespondError(c, err)
		return
	}

	if res.Kind == extcall.Partial {
		ok(c, http.StatusAccepted, DraftResponse{RequestID: res.RequestID, Draft: res.Draft})
		return
	}

	if res.Template == nil {
		RespondError(c, errNoTemplate)
		return
	}

	// Idempotency (store path): best effort.
	if idemKey != "" && h.idem != nil {
		if err := h.idem.Save(ctx, uid, scope, idemKey, res.Template.ID, http.StatusOK, h.IdempotencyTTL); err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("idempotency save failed")
		}
	}
	ok(c, http.StatusOK, res.Template)
}

// ListTemplates godoc
// @ID          listTemplates
// @Summary     List templates (paginated)
// @Description Returns a page of the user's templates, optionally filtered by status.
// @Description Supports weak ETag via If-None-Match and may return 304.
// @Tags        Templates
// @Produce     json
//
// @Param       X-User-ID      header  string  false "User ID (demo header)"       example(user123)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       status         query   string  false "Template status"  Enums(CREATED, APPROVE_REQUESTED, APPROVED, REJECTED)
// @Param       page           query   int     false "Page number"                  minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"               minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.Envelope{data=handlers.ListTemplatesResponse}
// @Header      200  {string} ETag           "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /templates [get]
func (h *Handlers) ListTemplates(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	status := domain.TemplateStatus(strings.ToUpper(strings.TrimSpace(c.Query("status"))))
	if status != "" && !status.Valid() {
		RespondError(c, services.BadInput("unknown template status", map[string]any{"status": string(status)}))
		return
	}
	page, pageSize := utils.ParsePage(c.Query("page"), c.Query("page_size"))

	// ETag pre-check (best effort).
	if count, maxTS, err := h.svc.Stats(ctx, uid, status); err == nil {
		var ts int64
		if maxTS != nil {
			ts = maxTS.UnixNano()
		}
		etag := fmt.Sprintf(`W/"templates:%s:%s:%d:%d"`, uid, status, count, ts)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	items, total, err := h.svc.ListPage(ctx, uid, status, page, pageSize)
	if err != nil {
		RespondError(c, err)
		return
	}

	totalPages := utils.TotalPages(total, pageSize)
	ok(c, http.StatusOK, ListTemplatesResponse{
		Templates: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// GetTemplate godoc
// @ID          getTemplate
// @Summary     Get a template
// @Tags        Templates
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Template ID (UUID)"     format(uuid)
//
// @Success     200  {object} handlers.Envelope{data=domain.Template}
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     403  {object} handlers.ErrorResponse "Not the owner"
// @Failure     404  {object} handlers.ErrorResponse "Template not found"
// @Router      /templates/{id} [get]
func (h *Handlers) GetTemplate(c *gin.Context) {
	id, err := templateID(c)
	if err != nil {
		RespondError(c, err)
		return
	}
	tpl, err := h.svc.Get(c.Request.Context(), userID(c), id)
	if err != nil {
		RespondError(c, err)
		return
	}
	ok(c, http.StatusOK, tpl)
}

// TemplateHistory godoc
// @ID          templateHistory
// @Summary     List a template's status history
// @Tags        Templates
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Template ID (UUID)"     format(uuid)
//
// @Success     200  {object} handlers.Envelope{data=[]domain.TemplateHistory}
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     403  {object} handlers.ErrorResponse "Not the owner"
// @Failure     404  {object} handlers.ErrorResponse "Template not found"
// @Router      /templates/{id}/history [get]
func (h *Handlers) TemplateHistory(c *gin.Context) {
	id, err := templateID(c)
	if err != nil {
		RespondError(c, err)
		return
	}
	items, err := h.svc.History(c.Request.Context(), userID(c), id)
	if err != nil {
		RespondError(c, err)
		return
	}
	ok(c, http.StatusOK, items)
}

// RequestApproval godoc
// @ID          requestApproval
// @Summary     Request approval of a template
// @Description Moves a CREATED template to APPROVE_REQUESTED.
// @Tags        Templates
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Template ID (UUID)"     format(uuid)
//
// @Success     200  {object} handlers.Envelope{data=domain.Template}
// @Failure     403  {object} handlers.ErrorResponse "Not the owner"
// @Failure     404  {object} handlers.ErrorResponse "Template not found"
// @Failure     409  {object} handlers.ErrorResponse "Wrong template status"
// @Router      /templates/{id}/approve-request [post]
func (h *Handlers) RequestApproval(c *gin.Context) {
	id, err := templateID(c)
	if err != nil {
		RespondError(c, err)
		return
	}
	tpl, err := h.svc.RequestApproval(c.Request.Context(), userID(c), id)
	if err != nil {
		RespondError(c, err)
		return
	}
	ok(c, http.StatusOK, tpl)
}
