package pager_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lindeneg/yarrd/internal/pager"
)

func openTestPager(t *testing.T, rowSize int) *pager.Pager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "table.dat")
	p, err := pager.Open(path, rowSize, 0, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func Test_Pager_InsertAndGetRow(t *testing.T) {
	t.Parallel()

	p := openTestPager(t, 8)
	rowID, err := p.InsertRow([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	require.NoError(t, err)

	got, ok, err := p.GetRow(rowID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, got)
}

func Test_Pager_GetRow_ReturnsCopyNotAlias(t *testing.T) {
	t.Parallel()

	p := openTestPager(t, 4)
	rowID, err := p.InsertRow([]byte{1, 1, 1, 1})
	require.NoError(t, err)

	got, _, err := p.GetRow(rowID)
	require.NoError(t, err)
	got[0] = 99

	again, _, err := p.GetRow(rowID)
	require.NoError(t, err)
	assert.Equal(t, byte(1), again[0], "mutating a fetched row must not affect the stored row")
}

func Test_Pager_UpdateRow(t *testing.T) {
	t.Parallel()

	p := openTestPager(t, 4)
	rowID, err := p.InsertRow([]byte{1, 1, 1, 1})
	require.NoError(t, err)

	require.NoError(t, p.UpdateRow(rowID, []byte{2, 2, 2, 2}))

	got, ok, err := p.GetRow(rowID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte{2, 2, 2, 2}, got)
}

func Test_Pager_DeleteRow(t *testing.T) {
	t.Parallel()

	p := openTestPager(t, 4)
	rowID, err := p.InsertRow([]byte{1, 1, 1, 1})
	require.NoError(t, err)

	require.NoError(t, p.DeleteRow(rowID))

	_, ok, err := p.GetRow(rowID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func Test_Pager_InsertRow_RejectsWrongSize(t *testing.T) {
	t.Parallel()

	p := openTestPager(t, 4)
	_, err := p.InsertRow([]byte{1, 2, 3})
	assert.Error(t, err)
}

func Test_Pager_SpansMultiplePages(t *testing.T) {
	t.Parallel()

	p := openTestPager(t, 8)
	capacity := pager.RowCount(8)

	var lastID int64
	for i := 0; i < capacity+5; i++ {
		id, err := p.InsertRow([]byte{byte(i), 0, 0, 0, 0, 0, 0, 0})
		require.NoError(t, err)
		lastID = id
	}

	assert.GreaterOrEqual(t, lastID, int64(capacity))

	got, ok, err := p.GetRow(lastID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, byte(capacity+4), got[0])
}

func Test_Pager_Vacuum_CompactsTrailingSpace(t *testing.T) {
	t.Parallel()

	p := openTestPager(t, 8)
	capacity := pager.RowCount(8)

	ids := make([]int64, 0, capacity+1)
	for i := 0; i < capacity+1; i++ {
		id, err := p.InsertRow([]byte{byte(i), 0, 0, 0, 0, 0, 0, 0})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	// the first page is full and the second holds one row; delete every row
	// of the first page except its last, so vacuum can migrate the second
	// page's row down and drop that page.
	for i := 0; i < capacity-1; i++ {
		require.NoError(t, p.DeleteRow(ids[i]))
	}

	require.NoError(t, p.Vacuum())

	maxRows, err := p.MaxRows()
	require.NoError(t, err)
	assert.Less(t, maxRows, int64(2*capacity), "vacuum should have reclaimed at least one page")

	survivors := 0
	for id := int64(0); id < maxRows; id++ {
		_, ok, err := p.GetRow(id)
		require.NoError(t, err)
		if ok {
			survivors++
		}
	}
	assert.Equal(t, 2, survivors, "the two rows never deleted should both still be retrievable")
}

func Test_Pager_PersistsAcrossReopen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "table.dat")

	p1, err := pager.Open(path, 4, 0, nil)
	require.NoError(t, err)
	rowID, err := p1.InsertRow([]byte{3, 3, 3, 3})
	require.NoError(t, err)
	require.NoError(t, p1.Close())

	p2, err := pager.Open(path, 4, 0, nil)
	require.NoError(t, err)
	defer p2.Close()

	got, ok, err := p2.GetRow(rowID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte{3, 3, 3, 3}, got)
}

func Test_Pager_Open_RejectsRowSizeLargerThanPage(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "table.dat")
	_, err := pager.Open(path, pager.PageSize, 0, nil)
	assert.Error(t, err)
}

func Test_Pager_Open_RespectsExplicitCacheCapacity(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "table.dat")
	p, err := pager.Open(path, 8, 2, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	capacity := pager.RowCount(8)
	for i := 0; i < capacity*3; i++ {
		_, err := p.InsertRow([]byte{byte(i), 0, 0, 0, 0, 0, 0, 0})
		require.NoError(t, err)
	}

	maxRows, err := p.MaxRows()
	require.NoError(t, err)
	assert.Equal(t, int64(capacity*3), maxRows, "a small cache capacity must still preserve every row via eviction write-back")
}
