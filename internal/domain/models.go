// Package domain defines the persistence models for template generation
// requests, their failure audit trail, and the templates they produce.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// RequestStatus is the lifecycle state of a TemplateRequest.
type RequestStatus string

const (
	RequestPending   RequestStatus = "PENDING"
	RequestCompleted RequestStatus = "COMPLETED"
	RequestFailed    RequestStatus = "FAILED"
)

// Terminal reports whether no further transition is allowed.
func (s RequestStatus) Terminal() bool {
	return s == RequestCompleted || s == RequestFailed
}

// TemplateRequest records one attempt to generate a template. It is created
// PENDING before the AI call and moved to COMPLETED or FAILED exactly once.
// Rows are never deleted.
type TemplateRequest struct {
	ID        uint          `json:"id"         gorm:"primaryKey;autoIncrement"`
	UserID    string        `json:"user_id"    gorm:"type:varchar(64);not null;index:idx_req_user_status,priority:1"`
	Content   string        `json:"content"    gorm:"type:text;not null"`
	Status    RequestStatus `json:"status"     gorm:"type:varchar(16);not null;default:'PENDING';index:idx_req_user_status,priority:2;check:status IN ('PENDING','COMPLETED','FAILED')"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// TableName returns the database table name for TemplateRequest.
func (TemplateRequest) TableName() string { return "template_requests" }

// FailureLog is an append-only audit entry for one translated external
// failure. Detail always has the form "[Original Code: <code>] <message>".
type FailureLog struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	RequestID  uint      `json:"request_id"  gorm:"not null;index"`
	ErrorCode  string    `json:"error_code"  gorm:"type:varchar(64);not null;index"`
	Detail     string    `json:"detail"      gorm:"type:text;not null"`
	RetryCount int       `json:"retry_count" gorm:"not null;default:1"`
	UserAgent  string    `json:"user_agent"  gorm:"type:varchar(512);not null"`
	ClientIP   string    `json:"client_ip"   gorm:"type:varchar(64);not null"`
	HTTPStatus int       `json:"http_status" gorm:"not null"`
	LatencyMs  int64     `json:"latency_ms"  gorm:"not null"`
	CreatedAt  time.Time `json:"created_at"  gorm:"not null;index"`

	Request TemplateRequest `json:"-" gorm:"foreignKey:RequestID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// TableName returns the database table name for FailureLog.
func (FailureLog) TableName() string { return "failure_logs" }

// TemplateStatus is the review state of a Template.
type TemplateStatus string

const (
	TemplateCreated          TemplateStatus = "CREATED"
	TemplateApproveRequested TemplateStatus = "APPROVE_REQUESTED"
	TemplateApproved         TemplateStatus = "APPROVED"
	TemplateRejected         TemplateStatus = "REJECTED"
)

// Valid reports whether s is a known template status.
func (s TemplateStatus) Valid() bool {
	switch s {
	case TemplateCreated, TemplateApproveRequested, TemplateApproved, TemplateRejected:
		return true
	}
	return false
}

// Button is a call-to-action stored with a template. LinkType is the
// messaging channel's link kind, e.g. "WL" for a web link.
type Button struct {
	Name     string `json:"name"`
	LinkMo   string `json:"linkMo,omitempty"`
	LinkPc   string `json:"linkPc,omitempty"`
	LinkAnd  string `json:"linkAnd,omitempty"`
	LinkIos  string `json:"linkIos,omitempty"`
	LinkType string `json:"linkType,omitempty"`
	Ordering int    `json:"ordering"`
}

// Variable is a placeholder the sender fills in, e.g. "#{shop}".
type Variable struct {
	VariableKey string `json:"variableKey"`
	Placeholder string `json:"placeholder"`
	InputType   string `json:"inputType,omitempty"`
}

// Tag classifies a template by industry or purpose.
type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Template is a generated message template owned by a user.
type Template struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    string         `json:"user_id"    gorm:"type:varchar(64);not null;index:idx_user_templates,priority:1"`
	RequestID uint           `json:"request_id" gorm:"not null;uniqueIndex"`
	Title     string         `json:"title"      gorm:"type:varchar(255);not null"`
	Content   string         `json:"content"    gorm:"type:text;not null"`
	CategoryID string        `json:"category_id" gorm:"type:varchar(32)"`
	Type       string        `json:"type"        gorm:"type:varchar(32)"`
	Variables  []Variable    `json:"variables"   gorm:"type:text;serializer:json"`
	Buttons    []Button      `json:"buttons"     gorm:"type:text;serializer:json"`
	Industries []Tag         `json:"industries"  gorm:"type:text;serializer:json"`
	Purposes   []Tag         `json:"purposes"    gorm:"type:text;serializer:json"`
	Status    TemplateStatus `json:"status"     gorm:"type:varchar(24);not null;index"`
	CreatedAt time.Time      `json:"created_at" gorm:"index:idx_user_templates,priority:2"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`

	Request TemplateRequest `json:"-" gorm:"foreignKey:RequestID;references:ID"`
}

// TableName returns the database table name for Template.
func (Template) TableName() string { return "templates" }

// TemplateHistory records each status a template entered.
type TemplateHistory struct {
	ID         string         `json:"id"          gorm:"type:char(36);primaryKey"`
	TemplateID string         `json:"template_id" gorm:"type:char(36);not null;index:idx_tpl_history,priority:1"`
	Status     TemplateStatus `json:"status"      gorm:"type:varchar(24);not null"`
	CreatedAt  time.Time      `json:"created_at"  gorm:"index:idx_tpl_history,priority:2"`

	Template Template `json:"-" gorm:"foreignKey:TemplateID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for TemplateHistory.
func (TemplateHistory) TableName() string { return "template_history" }
