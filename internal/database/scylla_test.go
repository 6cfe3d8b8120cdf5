package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront_back_end/internal/models"
)

func TestStockGuard(t *testing.T) {
	current, cond, args := stockGuard(nil)
	assert.Equal(t, 0, current)
	assert.Equal(t, "stock_count = null", cond)
	assert.Empty(t, args)

	current, cond, args = stockGuard(ptr(0))
	assert.Equal(t, 0, current)
	assert.Equal(t, "stock_count = ?", cond)
	assert.Equal(t, []interface{}{0}, args)

	current, _, args = stockGuard(ptr(7))
	assert.Equal(t, 7, current)
	assert.Equal(t, []interface{}{7}, args)
}

func TestPatchAssignments_DeductionFlags(t *testing.T) {
	missing := []string{"p1"}
	sets, args, err := patchAssignments(models.OrderPatch{
		UndeductedProductIDs:     &missing,
		FlagInventoryDeductError: true,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"undeducted_products = ?", "inventory_deduct_error = ?"}, sets)
	assert.Equal(t, []interface{}{missing, true}, args)

	sets, _, err = patchAssignments(models.OrderPatch{})
	require.NoError(t, err)
	assert.Empty(t, sets)
}
