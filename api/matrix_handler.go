package api

import (
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/fieldgate"
)

func (a *API) registerMatrixRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("permissions"))

	if err := g.GET("/permissions/matrix", a.getMatrix,
		forge.WithSummary("Get permission matrix"),
		forge.WithDescription("Returns the dense matrix of every governed module with its field groups and the active roles."),
		forge.WithOperationID("getPermissionMatrix"),
		forge.WithResponseSchema(http.StatusOK, "Permission matrix", &fieldgate.Matrix{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.PUT("/permissions/matrix", a.saveMatrix,
		forge.WithSummary("Save permission matrix"),
		forge.WithDescription("Validates and persists matrix edits. One invalid level rejects the whole batch."),
		forge.WithOperationID("savePermissionMatrix"),
		forge.WithRequestSchema(SaveMatrixRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Save result", &fieldgate.SaveResult{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/permissions/modules/:module", a.getModuleMatrix,
		forge.WithSummary("Get module matrix"),
		forge.WithDescription("Returns the dense field by role matrix of one module."),
		forge.WithOperationID("getModuleMatrix"),
		forge.WithResponseSchema(http.StatusOK, "Module matrix", &ModuleMatrixResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/permissions/modules/:module/me", a.getMyPermissions,
		forge.WithSummary("Get my permissions"),
		forge.WithDescription("Returns the caller's level on every field of a module. The role comes from the session."),
		forge.WithOperationID("getMyPermissions"),
		forge.WithResponseSchema(http.StatusOK, "Caller permissions", &MyPermissionsResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/permissions/prune", a.pruneEntries,
		forge.WithSummary("Prune orphaned entries"),
		forge.WithDescription("Deletes entries whose module, field or role no longer exists."),
		forge.WithOperationID("prunePermissionEntries"),
		forge.WithResponseSchema(http.StatusOK, "Prune result", &PruneResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.GET("/modules", a.listModules,
		forge.WithSummary("List governed modules"),
		forge.WithDescription("Returns the modules whose fields carry permissions."),
		forge.WithOperationID("listModules"),
		forge.WithResponseSchema(http.StatusOK, "Module list", []fieldgate.Module{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) getMatrix(ctx forge.Context, _ *struct{}) (*fieldgate.Matrix, error) {
	if err := a.requireAdmin(ctx.Context()); err != nil {
		return nil, err
	}

	m, err := a.eng.GetFullMatrix(ctx.Context())
	if err != nil {
		return nil, mapError(err)
	}

	return m, ctx.JSON(http.StatusOK, m)
}

func (a *API) saveMatrix(ctx forge.Context, req *SaveMatrixRequest) (*fieldgate.SaveResult, error) {
	if err := a.requireAdmin(ctx.Context()); err != nil {
		return nil, err
	}

	edits, err := editsFromRequest(req)
	if err != nil {
		return nil, mapError(err)
	}

	res, err := a.eng.SaveMatrix(ctx.Context(), edits)
	if err != nil {
		return nil, mapError(err)
	}

	return res, ctx.JSON(http.StatusOK, res)
}

func (a *API) getModuleMatrix(ctx forge.Context, _ *ModuleRequest) (*ModuleMatrixResponse, error) {
	if err := a.requireAdmin(ctx.Context()); err != nil {
		return nil, err
	}

	moduleCode := ctx.Param("module")
	if !a.eng.IsGoverned(moduleCode) {
		return nil, forge.NotFound("module " + moduleCode + " is not governed")
	}

	grid, err := a.eng.ResolveModuleMatrix(ctx.Context(), moduleCode)
	if err != nil {
		return nil, mapError(err)
	}

	resp := &ModuleMatrixResponse{Module: moduleCode, Permissions: grid}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) getMyPermissions(ctx forge.Context, _ *ModuleRequest) (*MyPermissionsResponse, error) {
	moduleCode := ctx.Param("module")
	roleCode, err := a.eng.CurrentRole(ctx.Context())
	if err != nil {
		return nil, mapError(err)
	}

	perms, err := a.eng.ResolveRolePermissions(ctx.Context(), moduleCode, roleCode)
	if err != nil {
		return nil, mapError(err)
	}

	resp := &MyPermissionsResponse{Module: moduleCode, Role: roleCode, Permissions: perms}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) pruneEntries(ctx forge.Context, _ *struct{}) (*PruneResponse, error) {
	if err := a.requireAdmin(ctx.Context()); err != nil {
		return nil, err
	}

	n, err := a.eng.PruneOrphanEntries(ctx.Context())
	if err != nil {
		return nil, mapError(err)
	}

	resp := &PruneResponse{Pruned: n}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) listModules(ctx forge.Context, _ *struct{}) ([]fieldgate.Module, error) {
	modules := a.eng.Modules()
	return modules, ctx.JSON(http.StatusOK, modules)
}
