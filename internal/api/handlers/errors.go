package handlers

import (
	"errors"
	"net/http"

	"github.com/Harikeshav-R/Penny/internal/api/middleware"
	"github.com/Harikeshav-R/Penny/internal/domain"
	"github.com/rs/zerolog"
)

// Messages returned for failures whose detail stays in the log.
const (
	msgNotConfigured  = "AI features are disabled: the model credential is not configured"
	msgAnalysisFailed = "Image analysis failed, please try again"
	msgInternal       = "Internal server error"
)

// writeAppError maps the domain taxonomy onto HTTP statuses.
func writeAppError(w http.ResponseWriter, log *zerolog.Logger, err error, action string) {
	switch {
	case errors.Is(err, domain.ErrConfiguration):
		log.Warn().Err(err).Msg(action + ": not configured")
		middleware.WriteError(w, http.StatusServiceUnavailable, msgNotConfigured)
	case errors.Is(err, domain.ErrValidation):
		middleware.WriteError(w, http.StatusBadRequest, validationMessage(err))
	case errors.Is(err, domain.ErrNotFound):
		middleware.WriteError(w, http.StatusNotFound, notFoundMessage(err))
	case errors.Is(err, domain.ErrExtraction), errors.Is(err, domain.ErrTransientModel):
		log.Error().Err(err).Msg(action + " failed")
		middleware.WriteError(w, http.StatusBadGateway, msgAnalysisFailed)
	default:
		log.Error().Err(err).Msg(action + " failed")
		middleware.WriteError(w, http.StatusInternalServerError, msgInternal)
	}
}

// validationMessage returns the message of the innermost validation error.
func validationMessage(err error) string {
	return appMessage(err, domain.CodeValidation, "Invalid request")
}

func notFoundMessage(err error) string {
	return appMessage(err, domain.CodeNotFound, "Not found")
}

func appMessage(err error, code, fallback string) string {
	for err != nil {
		var appErr *domain.AppError
		if !errors.As(err, &appErr) {
			break
		}
		if appErr.Code == code {
			return appErr.Message
		}
		err = appErr.Cause
	}
	return fallback
}
