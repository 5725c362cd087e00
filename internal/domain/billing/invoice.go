package billing

import (
	"context"
	"fmt"
	"time"

	"workshop/internal/core/apperror"
	"workshop/internal/core/entity"
	"workshop/internal/core/id"
	"workshop/internal/core/types"
	"workshop/internal/domain/catalog"
)

// ApplyDiscountOnGrandTotal is the only discount base used on invoices.
const ApplyDiscountOnGrandTotal = "Grand Total"

// SalesInvoice is the draft invoice made from a submitted billing.
type SalesInvoice struct {
	entity.Document

	Customer         string        `db:"customer" json:"customer"`
	CustomerVehicle  string        `db:"customer_vehicle" json:"customer_vehicle"`
	WorkOrder        id.ID         `db:"work_order" json:"work_order"`
	WorkOrderBilling id.ID         `db:"work_order_billing" json:"work_order_billing"`
	IsReturn         bool          `db:"is_return" json:"is_return"`
	DueDate          *time.Time    `db:"due_date" json:"due_date,omitempty"`
	Currency         string        `db:"currency" json:"currency"`
	PriceList        string        `db:"selling_price_list" json:"selling_price_list"`
	TaxesAndCharges  string        `db:"taxes_and_charges" json:"taxes_and_charges,omitempty"`
	ApplyDiscountOn  string        `db:"apply_discount_on" json:"apply_discount_on,omitempty"`
	DiscountAmount   types.Money   `db:"discount_amount" json:"discount_amount"`
	Items            []InvoiceItem `db:"-" json:"items"`
}

// InvoiceItem is one sales invoice row.
type InvoiceItem struct {
	LineID      id.ID          `db:"line_id" json:"line_id"`
	LineNo      int            `db:"line_no" json:"idx"`
	ItemCode    string         `db:"item_code" json:"item_code"`
	Qty         types.Quantity `db:"qty" json:"qty"`
	Rate        types.Money    `db:"rate" json:"rate"`
	Amount      types.Money    `db:"amount" json:"amount"`
	Description string         `db:"description" json:"description"`
}

// ItemLinker resolves the stock item of a catalog reference.
type ItemLinker interface {
	ItemCode(ctx context.Context, ref catalog.Reference) (string, error)
}

// BuildSalesInvoice maps a submitted billing to a draft sales invoice.
// Rows whose reference has no stock item are skipped. Return rows become
// negative quantity rows. External services are
// billed as externalItem, which must be configured when such rows exist.
func BuildSalesInvoice(ctx context.Context, b *Billing, items ItemLinker, externalItem string) (*SalesInvoice, error) {
	if !b.IsSubmitted() {
		return nil, apperror.NewInvalidStateTransition(EntityName, b.DocStatus.String(), "make sales invoice from")
	}

	inv := &SalesInvoice{
		Document:         entity.NewDocument(),
		Customer:         b.Customer,
		CustomerVehicle:  b.CustomerVehicle,
		WorkOrder:        b.WorkOrder,
		WorkOrderBilling: b.ID,
		IsReturn:         b.IsReturn,
		DueDate:          b.DueDate,
		Currency:         b.Currency,
		PriceList:        b.PriceList,
		TaxesAndCharges:  b.TaxesAndCharges,
	}
	inv.PostingDate = b.PostingDate

	add := func(ref catalog.Reference, qty, rate, amount types.Money, description string) error {
		itemCode, err := items.ItemCode(ctx, ref)
		if err != nil {
			return err
		}
		if itemCode == "" {
			return nil
		}
		inv.Items = append(inv.Items, InvoiceItem{
			ItemCode: itemCode, Qty: qty, Rate: rate, Amount: amount, Description: description,
		})
		return nil
	}

	for _, l := range b.JobTypes {
		if err := add(catalog.Ref(catalog.KindJobType, l.JobType), l.Hours, l.Rate, l.Amount, "Job: "+l.JobName); err != nil {
			return nil, err
		}
	}
	for _, l := range b.ServicePackages {
		if err := add(catalog.Ref(catalog.KindServicePackage, l.ServicePackage), l.Quantity, l.Rate, l.Amount,
			"Service Package: "+l.PackageName); err != nil {
			return nil, err
		}
	}
	for _, l := range b.Parts {
		if err := add(catalog.Ref(catalog.KindPart, l.Part), l.Quantity, l.Rate, l.Amount, "Part: "+l.PartName); err != nil {
			return nil, err
		}
	}
	for _, l := range b.ExternalServices {
		if externalItem == "" {
			return nil, apperror.NewMissingRequiredField("default_external_service_item").
				WithDetail("reason", "Please set Default External Service Item in settings")
		}
		inv.Items = append(inv.Items, InvoiceItem{
			ItemCode:    externalItem,
			Qty:         types.Qty(1),
			Rate:        l.Rate,
			Amount:      l.Amount,
			Description: "External Service: " + l.ServiceName,
		})
	}

	for _, l := range b.ReturnItems {
		if err := add(catalog.Ref(catalog.KindPart, l.Part), l.Quantity.Neg(), l.Rate, l.Amount,
			fmt.Sprintf("Return: %s (%s)", l.PartName, l.Reason)); err != nil {
			return nil, err
		}
	}

	if b.DiscountAmount.IsPositive() {
		inv.ApplyDiscountOn = ApplyDiscountOnGrandTotal
		inv.DiscountAmount = b.DiscountAmount
	}

	for i := range inv.Items {
		inv.Items[i].LineID = id.New()
		inv.Items[i].LineNo = i + 1
	}
	return inv, nil
}
