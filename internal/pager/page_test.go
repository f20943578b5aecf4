package pager_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lindeneg/yarrd/internal/pager"
)

func Test_NewPage_StartsBlank(t *testing.T) {
	t.Parallel()

	p := pager.NewPage(16)
	assert.True(t, p.IsBlank())
	assert.True(t, p.HasFreeRows())
	assert.Greater(t, p.RowCapacity(), 0)
}

func Test_Page_InsertGetUpdateDeleteRow(t *testing.T) {
	t.Parallel()

	p := pager.NewPage(4)
	row := []byte{1, 2, 3, 4}

	slot, ok := p.InsertRow(row)
	require.True(t, ok)
	assert.Equal(t, 0, slot)
	assert.True(t, p.Modified)

	got, ok := p.GetRow(slot)
	require.True(t, ok)
	assert.Equal(t, row, got)

	p.UpdateRow(slot, []byte{9, 9, 9, 9})
	got, ok = p.GetRow(slot)
	require.True(t, ok)
	assert.Equal(t, []byte{9, 9, 9, 9}, got)

	p.DeleteRow(slot)
	_, ok = p.GetRow(slot)
	assert.False(t, ok)
}

func Test_Page_InsertRow_FillsLowestFreeSlotFirst(t *testing.T) {
	t.Parallel()

	p := pager.NewPage(4)
	slot0, _ := p.InsertRow([]byte{1, 1, 1, 1})
	slot1, _ := p.InsertRow([]byte{2, 2, 2, 2})
	assert.Equal(t, 0, slot0)
	assert.Equal(t, 1, slot1)

	p.DeleteRow(slot0)
	slot2, ok := p.InsertRow([]byte{3, 3, 3, 3})
	require.True(t, ok)
	assert.Equal(t, 0, slot2, "the freed slot 0 should be reused before a new one")
}

func Test_Page_InsertRow_FailsWhenFull(t *testing.T) {
	t.Parallel()

	p := pager.NewPage(4)
	capacity := p.RowCapacity()
	for i := 0; i < capacity; i++ {
		_, ok := p.InsertRow([]byte{byte(i), 0, 0, 0})
		require.True(t, ok)
	}

	_, ok := p.InsertRow([]byte{9, 9, 9, 9})
	assert.False(t, ok)
	assert.False(t, p.HasFreeRows())
}

func Test_Page_DrainFirstRow(t *testing.T) {
	t.Parallel()

	p := pager.NewPage(4)
	p.InsertRow([]byte{7, 7, 7, 7})

	slot, row, ok := p.DrainFirstRow()
	require.True(t, ok)
	assert.Equal(t, 0, slot)
	assert.Equal(t, []byte{7, 7, 7, 7}, row)
	assert.True(t, p.IsBlank())

	_, _, ok = p.DrainFirstRow()
	assert.False(t, ok)
}

func Test_PageFromBytes_RoundTripsThroughBytes(t *testing.T) {
	t.Parallel()

	original := pager.NewPage(4)
	original.InsertRow([]byte{5, 5, 5, 5})

	rebuilt, err := pager.PageFromBytes(4, original.Bytes())
	require.NoError(t, err)

	row, ok := rebuilt.GetRow(0)
	require.True(t, ok)
	assert.Equal(t, []byte{5, 5, 5, 5}, row)
}

func Test_PageFromBytes_RejectsWrongSize(t *testing.T) {
	t.Parallel()

	_, err := pager.PageFromBytes(4, make([]byte, 10))
	assert.Error(t, err)
}
