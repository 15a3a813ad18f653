package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-template-backend/internal/errcode"
	"github.com/tbourn/go-template-backend/internal/http/middleware"
	"github.com/tbourn/go-template-backend/internal/redact"
	"github.com/tbourn/go-template-backend/internal/services"
)

// RespondError turns err into the error envelope.
//
// Normalized errors keep their variant's status and code; the message is the
// variant's fixed text when the variant is internally controlled, else the
// original vendor text. Unmanaged errors map to fixed responses and their
// text is only ever logged.
func RespondError(c *gin.Context, err error) {
	lg := middleware.LoggerFrom(c)

	if e, found := errcode.As(err); found {
		v := e.Variant
		logAt(lg, v.Status).
			Str("taxonomy", string(v.Taxonomy)).
			Str("code", v.Code).
			Str("original_message", redact.String(e.OriginalMessage)).
			Msg("request failed")
		fail(c, v.Status, v.Code, e.PublicMessage())
		return
	}

	var bad *services.BadInputError
	var invalid *services.ValidationError
	switch {
	case errors.As(err, &bad):
		lg.Warn().Interface("details", redact.Map(bad.Details)).Msg(redact.String(bad.Msg))
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, bad.Msg)
	case errors.As(err, &invalid):
		lg.Warn().
			Str("field", invalid.Field).
			Interface("details", redact.Map(invalid.Details)).
			Msg(redact.String(invalid.Msg))
		fail(c, http.StatusBadRequest, ErrCodeValidation, invalid.Error())
	default:
		lg.Error().Err(err).Msg("unhandled error")
		fail(c, http.StatusInternalServerError, ErrCodeUnexpected, msgUnexpected)
	}
}

func logAt(lg *zerolog.Logger, status int) *zerolog.Event {
	if status >= http.StatusInternalServerError {
		return lg.Error()
	}
	return lg.Warn()
}
