package pricing

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmacia/internal/core/apperror"
	"farmacia/internal/core/id"
)

func seedProducts(n int) []*PricedEntity {
	out := make([]*PricedEntity, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, newEntity(EntityProduct, fmt.Sprintf("produto-%02d", i), fmt.Sprintf("%d.50", 10+i), "2.5", strPtr("alopaticos")))
	}
	return out
}

func refsOf(entities []*PricedEntity) []EntityRef {
	refs := make([]EntityRef, 0, len(entities))
	for _, e := range entities {
		refs = append(refs, e.Ref())
	}
	return refs
}

func TestBulkApply_AllSucceedInInputOrder(t *testing.T) {
	products := seedProducts(25)
	f := newFixture(testGlobal(), nil, products...)
	refs := refsOf(products)

	result, err := f.svc.BulkApplier().Apply(context.Background(), refs, dec("3.2"), strPtr("reajuste"))
	require.NoError(t, err)

	assert.Equal(t, refs, result.Succeeded)
	assert.Empty(t, result.Failed)
	require.Len(t, result.Changes, len(refs))

	for i, ref := range refs {
		stored := f.entities.get(ref)
		assert.True(t, stored.Markup.Equal(dec("3.2")))
		assert.True(t, stored.MarkupIsCustom)
		assert.True(t, stored.IsConsistent(), "entity %d inconsistent", i)
		assert.Equal(t, ref, result.Changes[i].Ref)
		assert.True(t, result.Changes[i].NewSalePrice.Equal(stored.SalePrice))

		hist := f.history.forEntity(ref)
		require.Len(t, hist, 1)
		assert.Equal(t, SourceExplicit, hist[0].Source)
		assert.Equal(t, "reajuste", *hist[0].Reason)
		assert.True(t, hist[0].OldMarkup.Equal(dec("2.5")))
	}

	assert.Equal(t, 1, f.observer.runs)
	assert.Equal(t, 25, f.observer.succeeded)
	assert.Equal(t, 25, f.observer.items[""])
}

func TestBulkApply_PartialFailureIsContained(t *testing.T) {
	products := seedProducts(6)
	negative := newEntity(EntityProduct, "negativo", "0", "2.5", nil)
	negative.CostPrice = dec("-3")
	products = append(products, negative)

	f := newFixture(testGlobal(), nil, products...)
	broken := products[2].Ref()
	f.entities.failSave[broken] = errStoreDown
	missing := EntityRef{Type: EntitySupply, ID: id.New()}

	refs := refsOf(products)
	refs = append(refs[:4], append([]EntityRef{missing}, refs[4:]...)...)

	result, err := f.svc.BulkApplier().Apply(context.Background(), refs, dec("2"), nil)
	require.NoError(t, err)

	require.Len(t, result.Failed, 3)
	assert.Equal(t, broken, result.Failed[0].Ref)
	assert.Equal(t, apperror.CodePersistence, result.Failed[0].ErrorKind)
	assert.Equal(t, missing, result.Failed[1].Ref)
	assert.Equal(t, apperror.CodePersistence, result.Failed[1].ErrorKind)
	assert.Equal(t, negative.Ref(), result.Failed[2].Ref)
	assert.Equal(t, apperror.CodeInvalidInput, result.Failed[2].ErrorKind)

	assert.Len(t, result.Succeeded, 5)
	assert.Equal(t, len(refs), result.Total())
	for _, ref := range result.Succeeded {
		assert.True(t, f.entities.get(ref).Markup.Equal(dec("2")))
	}

	// the failing entity kept its prior state and got no history row
	assert.True(t, f.entities.get(broken).Markup.Equal(dec("2.5")))
	assert.Empty(t, f.history.forEntity(broken))
}

func TestBulkApply_OutOfBoundsFailsEveryItem(t *testing.T) {
	products := seedProducts(3)
	f := newFixture(testGlobal(), nil, products...)

	result, err := f.svc.BulkApplier().Apply(context.Background(), refsOf(products), dec("12"), nil)
	require.NoError(t, err)

	assert.Empty(t, result.Succeeded)
	require.Len(t, result.Failed, 3)
	for _, fail := range result.Failed {
		assert.Equal(t, apperror.CodeAboveMaximum, fail.ErrorKind)
	}
	assert.Zero(t, f.entities.saves)
	assert.Empty(t, f.history.entries)
}

func TestBulkApply_CancelledBeforeStart(t *testing.T) {
	products := seedProducts(5)
	f := newFixture(testGlobal(), nil, products...)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := f.svc.BulkApplier().Apply(ctx, refsOf(products), dec("2"), nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, result.Succeeded)
	require.Len(t, result.Failed, 5)
	for i, fail := range result.Failed {
		assert.Equal(t, products[i].Ref(), fail.Ref)
		assert.Equal(t, apperror.CodeCancelled, fail.ErrorKind)
	}
	assert.Zero(t, f.entities.saves)
}

func TestBulkApply_Idempotent(t *testing.T) {
	products := seedProducts(4)
	f := newFixture(testGlobal(), nil, products...)
	refs := refsOf(products)
	applier := f.svc.BulkApplier()

	_, err := applier.Apply(context.Background(), refs, dec("2.75"), nil)
	require.NoError(t, err)
	first := make([]string, len(refs))
	for i, ref := range refs {
		first[i] = f.entities.get(ref).SalePrice.String()
	}

	second, err := applier.Apply(context.Background(), refs, dec("2.75"), nil)
	require.NoError(t, err)
	for i, ref := range refs {
		assert.Equal(t, first[i], f.entities.get(ref).SalePrice.String())
		assert.True(t, second.Changes[i].OldSalePrice.Equal(second.Changes[i].NewSalePrice))
	}
}

func TestBulkApply_Empty(t *testing.T) {
	f := newFixture(testGlobal(), nil)
	result, err := f.svc.BulkApplier().Apply(context.Background(), nil, dec("2"), nil)
	require.NoError(t, err)
	assert.Zero(t, result.Total())
}
