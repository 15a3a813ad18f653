package errcode

import "net/http"

const (
	AI       TaxonomyID = "ai"
	Template TaxonomyID = "template"
)

// AI vendor codes. The first six are mirrored 1:1 from the vendor's
// published error contract; the rest are raised by this service.
const (
	CodeProfanityDetected        = "PROFANITY_DETECTED"
	CodePolicyViolation          = "POLICY_VIOLATION"
	CodeValidationError          = "VALIDATION_ERROR"
	CodeProcessingTimeout        = "PROCESSING_TIMEOUT"
	CodeAPIQuotaExceeded         = "API_QUOTA_EXCEEDED"
	CodeTemplateGenerationFailed = "TEMPLATE_GENERATION_FAILED"

	CodeAIRequestFailed      = "AI_REQUEST_FAILED"
	CodeServiceUnavailable   = "SERVICE_UNAVAILABLE"
	CodeUnexpectedAIResponse = "UNEXPECTED_AI_RESPONSE"
)

// Template operation codes.
const (
	CodeTemplateNotFound        = "TEMPLATE_NOT_FOUND"
	CodeForbiddenTemplate       = "FORBIDDEN_TEMPLATE"
	CodeAlreadyApproveRequested = "ALREADY_APPROVE_REQUESTED"
	CodeApproveRequestForbidden = "APPROVE_REQUEST_FORBIDDEN"
	CodeTemplateOperationFailed = "TEMPLATE_OPERATION_FAILED"
)

// AITaxonomy is the vendor error contract, version 1.
func AITaxonomy() Taxonomy {
	return Taxonomy{ID: AI, Variants: []Variant{
		{Code: CodeProfanityDetected, Status: http.StatusBadRequest, Message: "The request contains inappropriate language."},
		{Code: CodePolicyViolation, Status: http.StatusBadRequest, Message: "The request violates the content policy."},
		{Code: CodeValidationError, Status: http.StatusUnprocessableEntity, Message: "The request could not be validated."},
		{Code: CodeProcessingTimeout, Status: http.StatusRequestTimeout, Message: "Template generation timed out."},
		{Code: CodeAPIQuotaExceeded, Status: http.StatusTooManyRequests, Message: "Template generation quota exceeded."},
		{Code: CodeTemplateGenerationFailed, Status: http.StatusInternalServerError, Message: "Template generation failed."},
		{Code: CodeAIRequestFailed, Status: http.StatusInternalServerError, Message: "The AI request failed.", InternallyControlled: true},
		{Code: CodeServiceUnavailable, Status: http.StatusServiceUnavailable, Message: "The AI service is temporarily unavailable.", InternallyControlled: true},
		{Code: CodeUnexpectedAIResponse, Status: http.StatusInternalServerError, Message: "The AI service returned an unexpected response.", InternallyControlled: true, Fallback: true},
	}}
}

// TemplateTaxonomy covers failures of template operations owned by this service.
func TemplateTaxonomy() Taxonomy {
	return Taxonomy{ID: Template, Variants: []Variant{
		{Code: CodeTemplateNotFound, Status: http.StatusNotFound, Message: "Template not found."},
		{Code: CodeForbiddenTemplate, Status: http.StatusForbidden, Message: "You do not have access to this template."},
		{Code: CodeAlreadyApproveRequested, Status: http.StatusConflict, Message: "Approval has already been requested for this template."},
		{Code: CodeApproveRequestForbidden, Status: http.StatusConflict, Message: "Approval cannot be requested in the template's current state."},
		{Code: CodeTemplateOperationFailed, Status: http.StatusInternalServerError, Message: "The template operation failed.", InternallyControlled: true, Fallback: true},
	}}
}

// Builtin returns a registry holding every taxonomy the service ships with.
func Builtin() (*Registry, error) {
	r := NewRegistry()
	for _, t := range []Taxonomy{AITaxonomy(), TemplateTaxonomy()} {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// MustBuiltin is Builtin for main; a broken taxonomy aborts startup.
func MustBuiltin() *Registry {
	r, err := Builtin()
	if err != nil {
		panic(err)
	}
	return r
}
