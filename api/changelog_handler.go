package api

import (
	"net/http"
	"time"

	"github.com/xraph/forge"

	"github.com/xraph/fieldgate/changelog"
)

func (a *API) registerChangeLogRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("changelog"))

	return g.GET("/changelog", a.listChanges,
		forge.WithSummary("Query change log"),
		forge.WithDescription("Returns permission level changes, newest first, with optional filters."),
		forge.WithOperationID("listPermissionChanges"),
		forge.WithRequestSchema(ListChangesRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Change list", &ListResponse[ChangeResponse]{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) listChanges(ctx forge.Context, req *ListChangesRequest) (*ListResponse[ChangeResponse], error) {
	if err := a.requireAdmin(ctx.Context()); err != nil {
		return nil, err
	}

	filter := &changelog.QueryFilter{
		ModuleCode: req.Module,
		FieldCode:  req.Field,
		RoleCode:   req.Role,
		Actor:      req.Actor,
		BatchID:    req.BatchID,
		Limit:      defaultLimit(req.Limit),
		Offset:     req.Offset,
	}

	if req.After != "" {
		t, err := time.Parse(time.RFC3339, req.After)
		if err != nil {
			return nil, forge.BadRequest("invalid after timestamp")
		}
		filter.After = &t
	}
	if req.Before != "" {
		t, err := time.Parse(time.RFC3339, req.Before)
		if err != nil {
			return nil, forge.BadRequest("invalid before timestamp")
		}
		filter.Before = &t
	}

	entries, err := a.eng.ListChangeLog(ctx.Context(), filter)
	if err != nil {
		return nil, mapError(err)
	}
	total, err := a.eng.Store().CountChanges(ctx.Context(), filter)
	if err != nil {
		return nil, mapError(err)
	}

	items := make([]ChangeResponse, len(entries))
	for i, e := range entries {
		items[i] = changeResponse(e)
	}

	resp := &ListResponse[ChangeResponse]{Items: items, Total: total, Limit: filter.Limit, Offset: filter.Offset}
	return resp, ctx.JSON(http.StatusOK, resp)
}
