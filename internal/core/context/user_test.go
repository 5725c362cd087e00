package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasAnyRole(t *testing.T) {
	assert.True(t, HasAnyRole([]string{"Service Advisor", "Accountant"}, []string{"Accountant"}))
	assert.False(t, HasAnyRole([]string{"Service Advisor"}, []string{"Accountant", "Workshop Manager"}))
	assert.False(t, HasAnyRole(nil, []string{"Accountant"}))
}

func TestHasPermission(t *testing.T) {
	ctx := WithUser(context.Background(), &UserContext{
		UserID:      "advisor@example.com",
		Permissions: []string{"work_order:read"},
	})
	assert.True(t, HasPermission(ctx, "work_order:read"))
	assert.False(t, HasPermission(ctx, "sales_invoice:create"))

	assert.False(t, HasPermission(context.Background(), "work_order:read"))
	assert.True(t, HasPermission(WithSystemUser(context.Background()), "sales_invoice:create"))
}

func TestGetUserID_System(t *testing.T) {
	ctx := WithSystemUser(context.Background())
	assert.Equal(t, SystemUser, GetUserID(ctx))
	assert.True(t, GetUser(ctx).IsSystem)
}
