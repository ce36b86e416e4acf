package api

import (
	"fmt"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/fieldgate/field"
	"github.com/xraph/fieldgate/id"
)

func (a *API) registerFieldRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("fields"))

	if err := g.POST("/fields", a.createField,
		forge.WithSummary("Create field"),
		forge.WithDescription("Adds a field to the catalog of a governed module."),
		forge.WithOperationID("createField"),
		forge.WithRequestSchema(CreateFieldRequest{}),
		forge.WithCreatedResponse(&field.Field{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/fields/:fieldId", a.getField,
		forge.WithSummary("Get field"),
		forge.WithDescription("Returns a catalog field."),
		forge.WithOperationID("getField"),
		forge.WithResponseSchema(http.StatusOK, "Field details", &field.Field{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.PUT("/fields/:fieldId", a.updateField,
		forge.WithSummary("Update field"),
		forge.WithDescription("Updates the label, group or order of a catalog field."),
		forge.WithOperationID("updateField"),
		forge.WithRequestSchema(UpdateFieldRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Updated field", &field.Field{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.DELETE("/fields/:fieldId", a.deleteField,
		forge.WithSummary("Delete field"),
		forge.WithDescription("Removes a field from the catalog. Its entries stay until pruned."),
		forge.WithOperationID("deleteField"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.GET("/fields", a.listFields,
		forge.WithSummary("List fields"),
		forge.WithDescription("Lists catalog fields with optional filters."),
		forge.WithOperationID("listFields"),
		forge.WithRequestSchema(ListFieldsRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Field list", &ListResponse[*field.Field]{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) createField(ctx forge.Context, req *CreateFieldRequest) (*field.Field, error) {
	if err := a.requireAdmin(ctx.Context()); err != nil {
		return nil, err
	}
	if req.Code == "" {
		return nil, forge.BadRequest("code is required")
	}
	if !a.eng.IsGoverned(req.Module) {
		return nil, forge.BadRequest(fmt.Sprintf("module %q is not governed", req.Module))
	}
	if req.Label == "" {
		req.Label = req.Code
	}

	f := &field.Field{
		ID:         id.NewFieldID(),
		ModuleCode: req.Module,
		Code:       req.Code,
		Label:      req.Label,
		GroupCode:  req.GroupCode,
		GroupLabel: req.GroupLabel,
		OrderIndex: req.OrderIndex,
		Metadata:   req.Metadata,
	}

	if err := a.eng.Store().CreateField(ctx.Context(), f); err != nil {
		return nil, mapError(err)
	}

	a.eng.Plugins().EmitFieldCreated(ctx.Context(), f)

	return f, ctx.JSON(http.StatusCreated, f)
}

func (a *API) getField(ctx forge.Context, _ *GetFieldRequest) (*field.Field, error) {
	fieldID, err := id.ParseFieldID(ctx.Param("fieldId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid field ID: %v", err))
	}

	f, err := a.eng.Store().GetField(ctx.Context(), fieldID)
	if err != nil {
		return nil, mapError(err)
	}

	return f, ctx.JSON(http.StatusOK, f)
}

func (a *API) updateField(ctx forge.Context, req *UpdateFieldRequest) (*field.Field, error) {
	if err := a.requireAdmin(ctx.Context()); err != nil {
		return nil, err
	}
	fieldID, err := id.ParseFieldID(ctx.Param("fieldId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid field ID: %v", err))
	}

	f, err := a.eng.Store().GetField(ctx.Context(), fieldID)
	if err != nil {
		return nil, mapError(err)
	}

	if req.Label != "" {
		f.Label = req.Label
	}
	if req.GroupCode != "" {
		f.GroupCode = req.GroupCode
	}
	if req.GroupLabel != "" {
		f.GroupLabel = req.GroupLabel
	}
	if req.OrderIndex != nil {
		f.OrderIndex = *req.OrderIndex
	}
	if req.Metadata != nil {
		f.Metadata = req.Metadata
	}

	if err := a.eng.Store().UpdateField(ctx.Context(), f); err != nil {
		return nil, mapError(err)
	}

	a.eng.Plugins().EmitFieldUpdated(ctx.Context(), f)

	return f, ctx.JSON(http.StatusOK, f)
}

func (a *API) deleteField(ctx forge.Context, _ *GetFieldRequest) (*struct{}, error) {
	if err := a.requireAdmin(ctx.Context()); err != nil {
		return nil, err
	}
	fieldID, err := id.ParseFieldID(ctx.Param("fieldId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid field ID: %v", err))
	}

	if err := a.eng.Store().DeleteField(ctx.Context(), fieldID); err != nil {
		return nil, mapError(err)
	}

	a.eng.Plugins().EmitFieldDeleted(ctx.Context(), fieldID)

	return nil, ctx.NoContent(http.StatusNoContent)
}

func (a *API) listFields(ctx forge.Context, req *ListFieldsRequest) (*ListResponse[*field.Field], error) {
	filter := &field.ListFilter{
		ModuleCode: req.Module,
		GroupCode:  req.Group,
		Search:     req.Search,
		Limit:      defaultLimit(req.Limit),
		Offset:     req.Offset,
	}

	fields, err := a.eng.Store().ListFields(ctx.Context(), filter)
	if err != nil {
		return nil, mapError(err)
	}
	total, err := a.eng.Store().CountFields(ctx.Context(), filter)
	if err != nil {
		return nil, mapError(err)
	}

	resp := &ListResponse[*field.Field]{Items: fields, Total: total, Limit: filter.Limit, Offset: filter.Offset}
	return resp, ctx.JSON(http.StatusOK, resp)
}
