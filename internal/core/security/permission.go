package security

import (
	"context"
	"fmt"

	"workshop/internal/core/apperror"
	appctx "workshop/internal/core/context"
)

// Permission names follow "resource:action".
const (
	PermWorkOrderRead      = "work_order:read"
	PermWorkOrderWrite     = "work_order:write"
	PermBillingRead        = "billing:read"
	PermBillingWrite       = "billing:write"
	PermBillingSubmit      = "billing:submit"
	PermSalesInvoiceCreate = "sales_invoice:create"
	PermPriceRead          = "price:read"
	PermPriceWrite         = "price:write"
	PermStockRead          = "stock:read"
	PermStockWrite         = "stock:write"
	PermStockSubmit        = "stock:submit"
)

// Require returns PermissionDenied unless the acting user holds permission.
func Require(ctx context.Context, permission, target string) error {
	if appctx.HasPermission(ctx, permission) {
		return nil
	}
	return apperror.NewPermissionDenied(fmt.Sprintf("Not permitted: %s", target)).
		WithDetail("permission", permission)
}
