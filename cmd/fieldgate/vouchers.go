package main

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/xraph/forge"

	"github.com/xraph/fieldgate"
	"github.com/xraph/fieldgate/enforce"
	"github.com/xraph/fieldgate/middleware"
)

// statusField governs a voucher's payment state. Changing it is a state
// transition and needs A; W alone is not enough.
const statusField = "paymentStatus"

var errVoucherNotFound = errors.New("voucher not found")

// voucherBook is a small in-memory cost voucher collection used to show
// field enforcement on a governed module.
type voucherBook struct {
	mu       sync.RWMutex
	vouchers map[string]enforce.Record
	adapter  *enforce.Adapter
}

// UpdateVoucherRequest carries the fields a client wants to change.
type UpdateVoucherRequest struct {
	Fields enforce.Record `json:"fields" description:"Field code to value"`
}

func newVoucherBook(eng *fieldgate.Engine) *voucherBook {
	return &voucherBook{
		adapter: enforce.NewAdapter(eng),
		vouchers: map[string]enforce.Record{
			"CP-0001": {
				"voucherNo":     "CP-0001",
				"title":         "Office supplies",
				"costType":      "operations",
				"amount":        1250000,
				"paymentMethod": "transfer",
				"paymentStatus": "pending",
			},
		},
	}
}

func (b *voucherBook) registerRoutes(router forge.Router, eng *fieldgate.Engine, adminRoles []string) error {
	g := router.Group("/v1", forge.WithGroupTags("vouchers"))

	if err := g.GET("/vouchers/:voucherId", b.get,
		forge.WithSummary("Get voucher"),
		forge.WithDescription("Returns a cost voucher without the fields hidden from the caller's role."),
		forge.WithOperationID("getVoucher"),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.PUT("/vouchers/:voucherId", b.update,
		forge.WithSummary("Update voucher"),
		forge.WithDescription("Applies only the fields the caller's role may write. Changing paymentStatus requires A."),
		forge.WithOperationID("updateVoucher"),
		forge.WithRequestSchema(UpdateVoucherRequest{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	approve := middleware.RequireLevel(eng, fieldgate.ModuleCostVoucher, statusField, fieldgate.LevelAdmin)
	if err := g.POST("/vouchers/:voucherId/approve", approve(b.approve),
		forge.WithSummary("Approve voucher"),
		forge.WithDescription("Marks the voucher as paid. Requires A on paymentStatus."),
		forge.WithOperationID("approveVoucher"),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	adminOnly := middleware.RequireRole(eng, adminRoles...)
	return g.DELETE("/vouchers/:voucherId", adminOnly(b.delete),
		forge.WithSummary("Delete voucher"),
		forge.WithDescription("Removes a voucher. Admin roles only."),
		forge.WithOperationID("deleteVoucher"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	)
}

func (b *voucherBook) lookup(voucherID string) (enforce.Record, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.vouchers[voucherID]
	if !ok {
		return nil, false
	}
	out := make(enforce.Record, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out, true
}

func (b *voucherBook) get(ctx forge.Context) error {
	out, err := b.read(ctx.Context(), ctx.Param("voucherId"))
	if err != nil {
		return httpError(err)
	}
	return ctx.JSON(http.StatusOK, out)
}

func (b *voucherBook) update(ctx forge.Context, req *UpdateVoucherRequest) (enforce.Record, error) {
	out, err := b.applyUpdate(ctx.Context(), ctx.Param("voucherId"), req.Fields)
	if err != nil {
		return nil, httpError(err)
	}
	return out, ctx.JSON(http.StatusOK, out)
}

// read returns a voucher without the fields hidden from the caller's role.
func (b *voucherBook) read(ctx context.Context, voucherID string) (enforce.Record, error) {
	v, ok := b.lookup(voucherID)
	if !ok {
		return nil, errVoucherNotFound
	}
	return b.adapter.FilterRead(ctx, fieldgate.ModuleCostVoucher, v)
}

// applyUpdate writes the fields the caller's role may write. A change to
// the payment status additionally needs A on it.
func (b *voucherBook) applyUpdate(ctx context.Context, voucherID string, fields enforce.Record) (enforce.Record, error) {
	if _, ok := b.lookup(voucherID); !ok {
		return nil, errVoucherNotFound
	}
	allowed, err := b.adapter.FilterWrite(ctx, fieldgate.ModuleCostVoucher, fields)
	if err != nil {
		return nil, err
	}
	if _, ok := allowed[statusField]; ok {
		if err := b.adapter.RequireAction(ctx, fieldgate.ModuleCostVoucher, statusField); err != nil {
			return nil, err
		}
	}

	b.mu.Lock()
	v, ok := b.vouchers[voucherID]
	if ok {
		for k, val := range allowed {
			v[k] = val
		}
	}
	b.mu.Unlock()
	if !ok {
		return nil, errVoucherNotFound
	}
	return b.read(ctx, voucherID)
}

func (b *voucherBook) approve(ctx forge.Context) error {
	voucherID := ctx.Param("voucherId")
	b.mu.Lock()
	v, ok := b.vouchers[voucherID]
	if ok {
		v[statusField] = "paid"
	}
	b.mu.Unlock()
	if !ok {
		return httpError(errVoucherNotFound)
	}
	return ctx.JSON(http.StatusOK, map[string]string{"voucherNo": voucherID, statusField: "paid"})
}

func (b *voucherBook) delete(ctx forge.Context) error {
	voucherID := ctx.Param("voucherId")
	b.mu.Lock()
	_, ok := b.vouchers[voucherID]
	delete(b.vouchers, voucherID)
	b.mu.Unlock()
	if !ok {
		return httpError(errVoucherNotFound)
	}
	return ctx.NoContent(http.StatusNoContent)
}

// httpError maps voucher and enforcement errors the way the middleware
// does: no role is 401, a denial is 403, anything else is a server error.
func httpError(err error) error {
	switch {
	case errors.Is(err, errVoucherNotFound):
		return forge.NotFound(err.Error())
	case errors.Is(err, fieldgate.ErrNoRole):
		return forge.Unauthorized(err.Error())
	case errors.Is(err, fieldgate.ErrAccessDenied):
		return forge.Forbidden(err.Error())
	}
	return err
}
