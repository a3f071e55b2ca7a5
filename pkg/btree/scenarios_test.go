package btree_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"bplustable/pkg/entry"
)

// TestConcreteScenarios walks the six block-size-60 (order 5, minKeys 2)
// scenarios through the public API, checking only externally observable
// behavior: what search, rangeSearch, and a full-tree scan report. The
// scenarios exercise, in order: filling a leaf to capacity, an overflow
// split, a ranged scan spanning the resulting sibling pair, a borrow that
// repairs an underflow, a merge that cascades into a root collapse, and a
// re-insertion of a key whose address was touched by the earlier borrow.
func TestConcreteScenarios(t *testing.T) {
	t.Parallel()
	tr := newTempTree(t, blockSize60)

	// Scenario 1: insert 10, 20, 30, 40 (order-1 = 4 keys) without splitting.
	for _, k := range []int32{10, 20, 30, 40} {
		ok, err := tr.Insert(k, generateAddr(k))
		require.NoError(t, err)
		require.True(t, ok)
	}
	require.Equal(t, []entry.Entry{
		entry.New(10, generateAddr(10)),
		entry.New(20, generateAddr(20)),
		entry.New(30, generateAddr(30)),
		entry.New(40, generateAddr(40)),
	}, cursorAll(t, tr))
	require.NoError(t, tr.CheckInvariants())

	// Scenario 2: inserting 50 overflows the leaf and splits it into
	// [10,20] and [30,40,50], joined by a sibling pointer.
	ok, err := tr.Insert(50, generateAddr(50))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []entry.Entry{
		entry.New(10, generateAddr(10)),
		entry.New(20, generateAddr(20)),
		entry.New(30, generateAddr(30)),
		entry.New(40, generateAddr(40)),
		entry.New(50, generateAddr(50)),
	}, cursorAll(t, tr))
	require.NoError(t, tr.CheckInvariants())

	// Scenario 3: rangeSearch(15, 45) crosses the split and returns the
	// addresses for 20, 30, 40 in ascending order.
	addrs, err := tr.RangeSearch(15, 45)
	require.NoError(t, err)
	require.Equal(t, []int64{generateAddr(20), generateAddr(30), generateAddr(40)}, addrs)

	// Scenario 4: remove(10) underflows the left leaf to [20]; the right
	// leaf donates its smallest key, 30, leaving left [20,30], right
	// [40,50], and the parent separator updated to 40.
	removedAddr, err := tr.Remove(10)
	require.NoError(t, err)
	require.Equal(t, generateAddr(10), removedAddr)
	require.NoError(t, tr.CheckInvariants())

	found, err := tr.Search(10)
	require.NoError(t, err)
	require.Equal(t, entry.NoAddress, found)

	// The borrow must not disturb any surviving key's address, and the
	// updated separator (40) must still route searches correctly on both
	// sides of it.
	for _, k := range []int32{20, 30, 40, 50} {
		found, err := tr.Search(k)
		require.NoError(t, err)
		require.Equal(t, generateAddr(k), found)
	}
	require.Equal(t, []entry.Entry{
		entry.New(20, generateAddr(20)),
		entry.New(30, generateAddr(30)),
		entry.New(40, generateAddr(40)),
		entry.New(50, generateAddr(50)),
	}, cursorAll(t, tr))

	// Scenario 5: remove(20) underflows the left leaf again with no
	// eligible donor (the right leaf holds exactly minKeys); the right
	// leaf is merged into the left, and the now-empty root branch
	// collapses to that single merged leaf.
	removedAddr, err = tr.Remove(20)
	require.NoError(t, err)
	require.Equal(t, generateAddr(20), removedAddr)
	require.NoError(t, tr.CheckInvariants())

	require.Equal(t, []entry.Entry{
		entry.New(30, generateAddr(30)),
		entry.New(40, generateAddr(40)),
		entry.New(50, generateAddr(50)),
	}, cursorAll(t, tr))

	// Scenario 6: re-inserting 30 fails, and the address bound to it is
	// whatever survived the scenario-4 borrow (unchanged, since a borrow
	// relocates keys and addresses together rather than minting new ones).
	ok, err = tr.Insert(30, generateAddr(30)+999)
	require.NoError(t, err)
	require.False(t, ok)

	found, err = tr.Search(30)
	require.NoError(t, err)
	require.Equal(t, generateAddr(30), found)

	require.NoError(t, tr.Close())
}

// TestSplitBoundary checks that a leaf holding exactly order-1 keys does not
// split, and that the next insertion does.
func TestSplitBoundary(t *testing.T) {
	t.Parallel()
	tr := newTempTree(t, blockSize60)

	for k := int32(0); k < order60-1; k++ {
		ok, err := tr.Insert(k, generateAddr(k))
		require.NoError(t, err)
		require.True(t, ok)
	}
	require.NoError(t, tr.CheckInvariants())
	entries := cursorAll(t, tr)
	require.Len(t, entries, order60-1)

	ok, err := tr.Insert(order60-1, generateAddr(order60-1))
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, tr.CheckInvariants())
	entries = cursorAll(t, tr)
	require.Len(t, entries, order60)
	for i, e := range entries {
		require.Equal(t, int32(i), e.Key)
	}

	require.NoError(t, tr.Close())
}
