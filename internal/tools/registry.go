// Package tools is the catalog of ledger operations the assistant may call.
// Every tool is bound to one owner and returns plain text; failures are
// rendered as text so the agent loop can hand them back to the model.
package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Harikeshav-R/Penny/internal/domain"
	"github.com/Harikeshav-R/Penny/internal/ledger"
	"github.com/Harikeshav-R/Penny/internal/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const textInvalidID = "Invalid ID format."

// Registry binds the tool catalog to one owner and one store. Build one per
// request.
type Registry struct {
	store ledger.Store
	owner uuid.UUID
	now   func() time.Time
}

// NewRegistry creates a registry for owner. now may be nil.
func NewRegistry(store ledger.Store, owner uuid.UUID, now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{store: store, owner: owner, now: now}
}

// Owner returns the identity every tool is bound to.
func (r *Registry) Owner() uuid.UUID {
	return r.owner
}

// Invoke runs the named tool. It always returns text: unknown tools,
// bad arguments, store errors and panics are all reported in the result.
func (r *Registry) Invoke(ctx context.Context, name string, rawArgs map[string]any) (out string) {
	log := logger.Component(logger.FromContext(ctx), "tools").With().
		Str("tool", name).
		Str("owner_id", r.owner.String()).
		Logger()

	spec, ok := catalog[Name(name)]
	if !ok {
		log.Warn().Msg("unknown tool requested")
		return fmt.Sprintf("Unknown tool: %s.", name)
	}

	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic", p).Msg("tool panicked")
			out = fmt.Sprintf("Failed to %s: internal error", spec.action)
		}
	}()

	start := time.Now()
	out = spec.run(r, ctx, args(rawArgs))
	log.Debug().Dur("duration", time.Since(start)).Msg("tool invoked")
	return out
}

// failed renders err as the failure text of action. Validation errors show
// only their message.
func failed(action string, err error) string {
	msg := err.Error()
	var appErr *domain.AppError
	if errors.As(err, &appErr) && appErr.Code == domain.CodeValidation {
		msg = appErr.Message
	}
	return fmt.Sprintf("Failed to %s: %s", action, msg)
}

// byIDFailure renders an error from an id-addressed tool. Missing and
// foreign records read the same.
func byIDFailure(entity, action string, err error) string {
	switch {
	case errors.Is(err, errInvalidID):
		return textInvalidID
	case errors.Is(err, domain.ErrNotFound):
		return entity + " not found."
	default:
		return failed(action, err)
	}
}

func money(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

func day(t time.Time) string {
	return t.Format("2006-01-02")
}
