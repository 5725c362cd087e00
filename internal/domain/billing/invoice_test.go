package billing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workshop/internal/core/apperror"
	"workshop/internal/core/entity"
	"workshop/internal/core/id"
	"workshop/internal/domain/catalog"
)

type itemMap map[catalog.Reference]string

func (im itemMap) ItemCode(_ context.Context, ref catalog.Reference) (string, error) {
	return im[ref], nil
}

func TestBuildSalesInvoice(t *testing.T) {
	b := sampleBilling()
	b.JobTypes[0].JobName = "Tune Up"
	b.ServicePackages[0].PackageName = "Basic Service"
	b.Parts = append(b.Parts, PartLine{Part: "P-NOITEM", Quantity: m("1"), Rate: m("5")})
	b.Parts[0].PartName = "Oil Filter"
	CalculateTotals(b, nil)
	b.DocStatus = entity.DocStatusSubmitted

	items := itemMap{
		catalog.Ref(catalog.KindJobType, "JT-01"):        "ITEM-TU",
		catalog.Ref(catalog.KindServicePackage, "SP-01"): "ITEM-BS",
		catalog.Ref(catalog.KindPart, "P-01"):            "ITEM-OF",
	}

	inv, err := BuildSalesInvoice(context.Background(), b, items, "EXT-SERVICE")
	require.NoError(t, err)

	require.Len(t, inv.Items, 4)
	assert.Equal(t, "ITEM-TU", inv.Items[0].ItemCode)
	assert.Equal(t, "Job: Tune Up", inv.Items[0].Description)
	assert.True(t, m("2").Equal(inv.Items[0].Qty))
	assert.Equal(t, "Service Package: Basic Service", inv.Items[1].Description)
	assert.Equal(t, "Part: Oil Filter", inv.Items[2].Description)
	assert.Equal(t, "EXT-SERVICE", inv.Items[3].ItemCode)
	assert.Equal(t, "External Service: Towing", inv.Items[3].Description)
	assert.True(t, m("1").Equal(inv.Items[3].Qty))
	assert.Equal(t, 4, inv.Items[3].LineNo)

	assert.Equal(t, ApplyDiscountOnGrandTotal, inv.ApplyDiscountOn)
	assert.True(t, m("10").Equal(inv.DiscountAmount))
	assert.Equal(t, b.ID, inv.WorkOrderBilling)
	assert.Equal(t, entity.DocStatusDraft, inv.DocStatus)
}

func TestBuildSalesInvoice_Guards(t *testing.T) {
	b := sampleBilling()
	_, err := BuildSalesInvoice(context.Background(), b, itemMap{}, "EXT")
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidStateTransition), "draft billing")

	b.DocStatus = entity.DocStatusSubmitted
	_, err = BuildSalesInvoice(context.Background(), b, itemMap{}, "")
	assert.True(t, apperror.HasCode(err, apperror.CodeMissingRequiredField), "external item not configured")

	b.DiscountAmount = m("0")
	b.ExternalServices = nil
	inv, err := BuildSalesInvoice(context.Background(), b, itemMap{}, "")
	require.NoError(t, err)
	assert.Empty(t, inv.Items)
	assert.Empty(t, inv.ApplyDiscountOn)
}

func TestBuildSalesInvoice_ReturnRows(t *testing.T) {
	b := New(id.New())
	b.IsReturn = true
	b.ReturnItems = []ReturnLine{{Part: "P-01", PartName: "Oil Filter", Quantity: m("2"), Rate: m("70"), Reason: "damaged"}}
	CalculateTotals(b, nil)
	b.DocStatus = entity.DocStatusSubmitted

	inv, err := BuildSalesInvoice(context.Background(), b, itemMap{catalog.Ref(catalog.KindPart, "P-01"): "ITEM-OF"}, "")
	require.NoError(t, err)

	assert.True(t, inv.IsReturn)
	require.Len(t, inv.Items, 1)
	assert.True(t, m("-2").Equal(inv.Items[0].Qty))
	assert.True(t, m("70").Equal(inv.Items[0].Rate))
	assert.True(t, m("-140").Equal(inv.Items[0].Amount))
	assert.Equal(t, "Return: Oil Filter (damaged)", inv.Items[0].Description)
}
