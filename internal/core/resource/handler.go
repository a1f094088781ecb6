package resource

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/baseplate/tracker/internal/core/store"
	"github.com/baseplate/tracker/internal/core/validation"
	"github.com/baseplate/tracker/internal/core/workspace"
	"github.com/baseplate/tracker/internal/telemetry"
)

// Handler runs the canonical operations for one Config. Every operation
// takes a resolved workspace.Context; there is no way to reach the model
// without one.
type Handler struct {
	cfg       *Config
	hooks     Hooks
	validator *validation.Validator
	logger    zerolog.Logger
	metrics   *telemetry.Metrics
}

func (h *Handler) Config() *Config { return h.cfg }

func (h *Handler) List(ctx context.Context, wc *workspace.Context, params ListParams) (*Response, error) {
	start := time.Now()
	resp, err := h.list(ctx, wc, params.normalize())
	return resp, h.observe(wc, "list", start, err)
}

func (h *Handler) Create(ctx context.Context, wc *workspace.Context, input store.Record) (*Response, error) {
	start := time.Now()
	resp, err := h.create(ctx, wc, input)
	return resp, h.observe(wc, "create", start, err)
}

// Get reads wc.ItemID.
func (h *Handler) Get(ctx context.Context, wc *workspace.Context) (*Response, error) {
	start := time.Now()
	item, err := h.findVisible(ctx, wc, wc.ItemID, true)
	if err != nil {
		return nil, h.observe(wc, "get", start, err)
	}
	return ok(item), h.observe(wc, "get", start, nil)
}

// Update patches wc.ItemID.
func (h *Handler) Update(ctx context.Context, wc *workspace.Context, input store.Record) (*Response, error) {
	start := time.Now()
	resp, err := h.update(ctx, wc, input)
	return resp, h.observe(wc, "update", start, err)
}

// Delete removes wc.ItemID.
func (h *Handler) Delete(ctx context.Context, wc *workspace.Context) (*Response, error) {
	start := time.Now()
	resp, err := h.delete(ctx, wc)
	return resp, h.observe(wc, "delete", start, err)
}

func (h *Handler) list(ctx context.Context, wc *workspace.Context, p ListParams) (*Response, error) {
	where, err := h.visibility(ctx, wc)
	if err != nil {
		return nil, err
	}
	if p.Search != "" && len(h.cfg.SearchFields) > 0 {
		terms := make([]store.Filter, 0, len(h.cfg.SearchFields))
		for _, f := range h.cfg.SearchFields {
			terms = append(terms, store.Contains{Field: f, Value: p.Search})
		}
		where = store.All(where, store.Any(terms...))
	}

	order, err := h.ordering(p)
	if err != nil {
		return nil, err
	}

	total, err := h.cfg.Model.Count(ctx, where)
	if err != nil {
		return nil, persistence("count", err)
	}

	rows, err := h.cfg.Model.FindMany(ctx, store.Query{
		Where:   where,
		Include: BuildIncludes(h.cfg.Relations, h.cfg.RelationMap),
		OrderBy: order,
		Skip:    (p.Page - 1) * p.Limit,
		Take:    p.Limit,
	})
	if err != nil {
		return nil, persistence("find", err)
	}
	if rows == nil {
		rows = []store.Record{}
	}

	resp := ok(rows)
	resp.Meta = &Meta{
		Page:       p.Page,
		Limit:      p.Limit,
		Total:      total,
		TotalPages: TotalPages(total, p.Limit),
	}
	return resp, nil
}

func (h *Handler) ordering(p ListParams) ([]store.Order, error) {
	if p.SortBy != "" {
		if !h.cfg.sortable(p.SortBy) {
			return nil, fmt.Errorf("%w: cannot sort %s by %q", ErrInvalidRequest, h.cfg.Name, p.SortBy)
		}
		return []store.Order{{Field: p.SortBy, Desc: p.SortOrder != "asc"}}, nil
	}
	if h.cfg.SortField != "" {
		return []store.Order{{Field: h.cfg.SortField, Desc: !h.cfg.SortAscending}}, nil
	}
	return []store.Order{{Field: "created_at", Desc: true}}, nil
}

func (h *Handler) create(ctx context.Context, wc *workspace.Context, input store.Record) (*Response, error) {
	if p := h.cfg.Permissions.Create; p != nil && !p(wc) {
		return nil, ErrForbidden
	}
	if err := h.validator.Validate(input, h.cfg.CreateSchema); err != nil {
		return nil, err
	}

	data, err := h.hooks.BuildCreateData(ctx, wc, input)
	if err != nil {
		return nil, err
	}
	data, err = h.hooks.BeforeCreate(ctx, wc, data)
	if err != nil {
		return nil, err
	}

	rec, err := h.cfg.Model.Create(ctx, data)
	if err != nil {
		return nil, h.writeFailure("create", err)
	}

	rec, err = h.hooks.AfterCreate(ctx, wc, rec)
	if err != nil {
		return nil, err
	}
	return created(h.reload(ctx, wc, rec)), nil
}

func (h *Handler) update(ctx context.Context, wc *workspace.Context, input store.Record) (*Response, error) {
	existing, err := h.findVisible(ctx, wc, wc.ItemID, false)
	if err != nil {
		return nil, err
	}
	if p := h.cfg.Permissions.Update; p != nil && !p(wc, existing) {
		return nil, ErrNotFound
	}
	if err := h.validator.ValidatePartial(input, h.cfg.UpdateSchema); err != nil {
		return nil, err
	}

	data, err := h.hooks.BeforeUpdate(ctx, wc, existing, input)
	if err != nil {
		return nil, err
	}
	updated, err := h.hooks.PersistUpdate(ctx, wc, existing, data)
	if err != nil {
		if errors.Is(err, store.ErrNoRecord) {
			return nil, ErrNotFound
		}
		return nil, h.writeFailure("update", err)
	}
	updated, err = h.hooks.AfterUpdate(ctx, wc, updated)
	if err != nil {
		return nil, err
	}
	return ok(h.reload(ctx, wc, updated)), nil
}

func (h *Handler) delete(ctx context.Context, wc *workspace.Context) (*Response, error) {
	existing, err := h.findVisible(ctx, wc, wc.ItemID, false)
	if err != nil {
		return nil, err
	}
	if p := h.cfg.Permissions.Delete; p != nil && !p(wc, existing) {
		return nil, ErrNotFound
	}
	if err := h.hooks.BeforeDelete(ctx, wc, existing); err != nil {
		return nil, err
	}

	if err := h.cfg.Model.Delete(ctx, existing.ID()); err != nil {
		if errors.Is(err, store.ErrNoRecord) {
			return nil, ErrNotFound
		}
		return nil, persistence("delete", err)
	}
	return ok(existing), nil
}

// visibility is the config's default filter. It is the only source of
// tenant scoping, so an empty result is refused rather than treated as
// "match everything".
func (h *Handler) visibility(ctx context.Context, wc *workspace.Context) (store.Filter, error) {
	if wc == nil || wc.Workspace.ID == "" {
		return nil, ErrNotFound
	}
	where, err := h.cfg.defaultFilter(ctx, wc)
	if err != nil {
		return nil, persistence("default filter", err)
	}
	if where == nil {
		return nil, persistence("default filter", fmt.Errorf("resource %s has an empty visibility filter", h.cfg.Name))
	}
	return where, nil
}

// findVisible loads id under the visibility filter. Missing and invisible
// items both yield ErrNotFound.
func (h *Handler) findVisible(ctx context.Context, wc *workspace.Context, id string, withRelations bool) (store.Record, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	where, err := h.visibility(ctx, wc)
	if err != nil {
		return nil, err
	}
	q := store.Query{Where: store.All(where, store.Eq{Field: "id", Value: id})}
	if withRelations {
		q.Include = BuildIncludes(h.cfg.Relations, h.cfg.RelationMap)
	}

	item, err := h.cfg.Model.FindFirst(ctx, q)
	if err != nil {
		return nil, persistence("find", err)
	}
	if item == nil {
		return nil, ErrNotFound
	}
	return item, nil
}

// reload re-reads a written item with its relations. The written record is
// returned as is when the re-read fails or the item is no longer visible.
func (h *Handler) reload(ctx context.Context, wc *workspace.Context, rec store.Record) store.Record {
	if len(h.cfg.Relations) == 0 || rec.ID() == "" {
		return rec
	}
	item, err := h.findVisible(ctx, wc, rec.ID(), true)
	if err != nil {
		return rec
	}
	for k, v := range rec {
		if _, present := item[k]; !present {
			item[k] = v
		}
	}
	return item
}

func (h *Handler) writeFailure(op string, err error) error {
	if errors.Is(err, store.ErrConflict) {
		return Rejected("a %s with these values already exists", h.cfg.singular())
	}
	if isClassified(err) {
		return err
	}
	return persistence(op, err)
}

// isClassified reports whether err already belongs to the caller-facing
// taxonomy.
func isClassified(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrPersistence) ||
		errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, workspace.ErrUnauthenticated) ||
		validation.IsValidationError(err) ||
		IsBusinessRule(err)
}

// Outcome labels an operation result for logs and metrics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, workspace.ErrUnauthenticated):
		return "unauthenticated"
	case validation.IsValidationError(err), errors.Is(err, ErrInvalidRequest):
		return "invalid"
	case IsBusinessRule(err):
		return "rejected"
	default:
		return "error"
	}
}

// observe records the operation and normalizes unclassified hook errors
// into persistence failures.
func (h *Handler) observe(wc *workspace.Context, op string, start time.Time, err error) error {
	if err != nil && !isClassified(err) {
		err = persistence(op, err)
	}
	outcome := Outcome(err)
	h.metrics.ObserveOperation(h.cfg.Name, op, outcome, time.Since(start))

	var event *zerolog.Event
	if outcome == "error" {
		event = h.logger.Error().Err(err)
	} else {
		event = h.logger.Debug()
	}
	if wc != nil {
		event = event.Str("workspace", wc.Workspace.Slug).Str("caller", wc.CallerID)
	}
	event.Str("resource", h.cfg.Name).
		Str("operation", op).
		Str("outcome", outcome).
		Dur("elapsed", time.Since(start)).
		Msg("resource operation")
	return err
}
