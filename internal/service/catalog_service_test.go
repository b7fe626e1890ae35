package service

import (
	"testing"

	"grocery-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogViewsCarryEffectivePrice(t *testing.T) {
	f := newFixture(t, defaultBusiness())
	scarce := f.product("Cherry", models.UnitKg, "10", "3", "5")
	f.product("Banana", models.UnitKg, "1.20", "40", "5")
	f.product("Durian", models.UnitPiece, "30", "0", "0")

	view, err := f.catalog.Get(f.ctx, scarce.ID)
	require.NoError(t, err)
	assert.True(t, view.Scarce)
	assert.True(t, dec("20").Equal(view.EffectivePrice))
	assert.True(t, dec("10").Equal(view.Price), "stored price is untouched")

	all, err := f.catalog.List(f.ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	available, err := f.catalog.ListAvailable(f.ctx)
	require.NoError(t, err)
	assert.Len(t, available, 2)

	found, err := f.catalog.Search(f.ctx, "NAN")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Banana", found[0].Name)
	assert.False(t, found[0].Scarce)
	assert.True(t, dec("1.2").Equal(found[0].EffectivePrice))
}

func TestCatalogOwnerOperations(t *testing.T) {
	f := newFixture(t, defaultBusiness())
	alice := f.customer("alice")

	in := ProductInput{
		Name: "Tomato", Category: "vegetable", Unit: "KG",
		Price: dec("3"), Stock: dec("12.5"), Threshold: dec("2"),
	}
	_, err := f.catalog.Create(f.ctx, alice, in)
	assert.ErrorIs(t, err, ErrForbidden)

	view, err := f.catalog.Create(f.ctx, f.owner, in)
	require.NoError(t, err)
	assert.Equal(t, models.CategoryVegetable, view.Category)
	assert.Equal(t, models.UnitKg, view.Unit)

	for name, bad := range map[string]ProductInput{
		"empty name":     {Name: " ", Category: "FRUIT", Unit: "kg", Price: dec("1")},
		"bad category":   {Name: "X", Category: "MEAT", Unit: "kg", Price: dec("1")},
		"bad unit":       {Name: "X", Category: "FRUIT", Unit: "box", Price: dec("1")},
		"zero price":     {Name: "X", Category: "FRUIT", Unit: "kg", Price: dec("0")},
		"negative stock": {Name: "X", Category: "FRUIT", Unit: "kg", Price: dec("1"), Stock: dec("-1")},
		"fractional pcs": {Name: "X", Category: "FRUIT", Unit: "piece", Price: dec("1"), Stock: dec("1.5")},
	} {
		_, err := f.catalog.Create(f.ctx, f.owner, bad)
		assert.ErrorIs(t, err, ErrValidation, name)
	}

	in.Price = dec("4")
	updated, err := f.catalog.Update(f.ctx, f.owner, view.ID, in)
	require.NoError(t, err)
	assert.True(t, dec("4").Equal(updated.Price))

	_, err = f.catalog.Update(f.ctx, f.owner, 999, in)
	assert.ErrorIs(t, err, ErrNotFound)

	restocked, err := f.catalog.Restock(f.ctx, f.owner, view.ID, dec("-12.5"))
	require.NoError(t, err)
	assert.True(t, restocked.Stock.IsZero())
	_, err = f.catalog.Restock(f.ctx, f.owner, view.ID, dec("-1"))
	assert.ErrorIs(t, err, ErrInsufficientStock)

	require.NoError(t, f.catalog.Delete(f.ctx, f.owner, view.ID))
	_, err = f.catalog.Get(f.ctx, view.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteProductOnOrderFails(t *testing.T) {
	f := newFixture(t, defaultBusiness())
	alice := f.customer("alice")
	p := f.product("Garlic", models.UnitPiece, "1", "10", "1")

	_, err := f.carts.AddToCart(f.ctx, alice.UserID, p.ID, dec("2"))
	require.NoError(t, err)

	assert.ErrorIs(t, f.catalog.Delete(f.ctx, f.owner, p.ID), ErrInUse)
	_, err = f.catalog.Get(f.ctx, p.ID)
	assert.NoError(t, err)

	_, err = f.catalog.Restock(f.ctx, f.owner, p.ID, dec("0.5"))
	assert.ErrorIs(t, err, ErrValidation)
}
