package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilter_Matches(t *testing.T) {
	filter := Filter{Field: "REG", Terms: []string{"иван", "петров"}}

	assert.True(t, filter.Matches("Иван Петров - каса"))
	assert.True(t, filter.Matches("ПЕТРОВ ИВАНОВ"))
	assert.False(t, filter.Matches("Иван Георгиев"))
	assert.False(t, filter.Matches("Петър Петров"))
	assert.True(t, Filter{}.IsZero())
}

func TestMemoryStore_CRUD(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	id, err := m.Create(ctx, "reports", Fields{"Описание": "храна", "Сума (EUR)": 10.0, "empty": nil})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	rec, err := m.Get(ctx, "reports", id)
	require.NoError(t, err)
	assert.Equal(t, "храна", rec.Fields.String("Описание"))
	_, hasEmpty := rec.Fields["empty"]
	assert.False(t, hasEmpty)

	require.NoError(t, m.Update(ctx, "reports", id, Fields{"Описание": "ток", "Сума (EUR)": nil}))
	rec, err = m.Get(ctx, "reports", id)
	require.NoError(t, err)
	assert.Equal(t, "ток", rec.Fields.String("Описание"))
	_, ok := rec.Fields.Float("Сума (EUR)")
	assert.False(t, ok)

	require.NoError(t, m.Delete(ctx, "reports", id))
	_, err = m.Get(ctx, "reports", id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, m.Delete(ctx, "reports", id), ErrNotFound)
	assert.ErrorIs(t, m.Update(ctx, "reports", id, Fields{}), ErrNotFound)
}

func TestMemoryStore_QueryKeepsInsertionOrder(t *testing.T) {
	m := NewMemoryStore()
	m.Seed("accounts",
		Record{ID: "recB", Fields: Fields{"REG": "Иван Петров Б"}},
		Record{ID: "recA", Fields: Fields{"REG": "Иван Петров А"}},
		Record{ID: "recC", Fields: Fields{"REG": "Иван Иванов"}},
	)

	records, err := m.Query(context.Background(), "accounts", Filter{Field: "REG", Terms: []string{"иван", "петров"}})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "recB", records[0].ID)
	assert.Equal(t, "recA", records[1].ID)
}

func TestFields_Accessors(t *testing.T) {
	f := Fields{
		"name":  "x",
		"num":   12.5,
		"links": []any{"rec1", "rec2", 3},
		"ids":   []string{"rec9"},
	}

	assert.Equal(t, "x", f.String("name"))
	assert.Equal(t, "", f.String("missing"))
	v, ok := f.Float("num")
	assert.True(t, ok)
	assert.Equal(t, 12.5, v)
	assert.Equal(t, []string{"rec1", "rec2"}, f.Links("links"))
	assert.Equal(t, []string{"rec9"}, f.Links("ids"))
	assert.Nil(t, f.Links("name"))
}
