package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestDefaultCatalogShape(t *testing.T) {
	cat := Default()

	venues, ok := cat.Streams["venues"]
	require.True(t, ok)
	assert.Equal(t, FullTable, venues.ReplicationMethod)
	assert.False(t, venues.UseDates)
	assert.Equal(t, "id", venues.KeyProperty())

	for _, name := range []string{"reservations", "clients"} {
		child, ok := venues.Children[name]
		require.True(t, ok, "missing child %q", name)
		assert.Equal(t, Incremental, child.ReplicationMethod)
		assert.True(t, child.UseDates)
		assert.True(t, child.HasReplicationKey())
	}
}

func TestChildNamesDeterministic(t *testing.T) {
	venues := Default().Streams["venues"]
	assert.Equal(t, []string{"clients", "reservations"}, venues.ChildNames())
}

func TestSubstitutePath(t *testing.T) {
	assert.Equal(t, "venue/v42/reservations", SubstitutePath("venue/{venue_id}/reservations", "v42"))
	assert.Equal(t, "venues", SubstitutePath("venues", "v42"))
}

func TestFlatten(t *testing.T) {
	flat := Default().Flatten()

	require.Len(t, flat, 3)
	assert.Empty(t, flat["venues"].Parent)
	assert.Equal(t, "venues", flat["reservations"].Parent)
	assert.Equal(t, "venues", flat["clients"].Parent)
}

func TestValidateIncrementalNeedsReplicationKeys(t *testing.T) {
	cat := &Catalog{Streams: map[string]*StreamDefinition{
		"orders": {
			Name:              "orders",
			Path:              "orders",
			ReplicationMethod: Incremental,
		},
	}}
	assert.Error(t, cat.Validate())
}

func TestValidateParentNeedsKeyProperty(t *testing.T) {
	cat := &Catalog{Streams: map[string]*StreamDefinition{
		"orders": {
			Name:              "orders",
			Path:              "orders",
			ReplicationMethod: FullTable,
			Children: map[string]*StreamDefinition{
				"items": {
					Name:              "items",
					Path:              "order/{order_id}/items",
					ReplicationMethod: FullTable,
				},
			},
		},
	}}
	assert.Error(t, cat.Validate())
}

func TestValidateChildPathPlaceholders(t *testing.T) {
	child := func(path string) *Catalog {
		return &Catalog{Streams: map[string]*StreamDefinition{
			"orders": {
				Name:              "orders",
				Path:              "orders",
				KeyProperties:     []string{"id"},
				ReplicationMethod: FullTable,
				Children: map[string]*StreamDefinition{
					"items": {
						Name:              "items",
						Path:              path,
						ReplicationMethod: FullTable,
					},
				},
			},
		}}
	}

	assert.NoError(t, child("order/{order_id}/items").Validate())
	assert.Error(t, child("order/items").Validate(), "zero placeholders")
	assert.Error(t, child("order/{a}/{b}/items").Validate(), "two placeholders")
}

func TestValidateMismatchedName(t *testing.T) {
	cat := &Catalog{Streams: map[string]*StreamDefinition{
		"orders": {
			Name: "not_orders",
			Path: "orders",
		},
	}}
	assert.Error(t, cat.Validate())
}
