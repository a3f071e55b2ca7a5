package btree_test

import (
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"bplustable/pkg/btree"
	"bplustable/pkg/entry"
)

// order60 is the order implied by a 60-byte block: 60/12 = 5.
const order60 = 5

// blockSize60 yields minKeys = 2 per spec §8's concrete scenarios.
const blockSize60 = 60

func newTempTree(t *testing.T, blockSize int) *btree.Tree {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.btree")
	tr, err := btree.Create(path, blockSize)
	require.NoError(t, err)
	return tr
}

func reopen(t *testing.T, tr *btree.Tree) *btree.Tree {
	t.Helper()
	path := tr.GetFileName()
	require.NoError(t, tr.Close())
	reopened, err := btree.Open(path)
	require.NoError(t, err)
	return reopened
}

// generateAddr deterministically derives an address from a key so tests
// don't need to track a separate answer key.
func generateAddr(key int32) int64 {
	return int64(key)*7 + 1
}

func insertAscending(t *testing.T, tr *btree.Tree, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		key := int32(i)
		ok, err := tr.Insert(key, generateAddr(key))
		require.NoError(t, err)
		require.True(t, ok, "insert of fresh key %d should succeed", key)
	}
}

func cursorAll(t *testing.T, tr *btree.Tree) []entry.Entry {
	t.Helper()
	c, err := tr.CursorAtStart()
	require.NoError(t, err)
	var out []entry.Entry
	for {
		e, ok := c.Entry()
		if !ok {
			require.NoError(t, c.Err())
			return out
		}
		out = append(out, e)
		if c.Next() {
			require.NoError(t, c.Err())
			return out
		}
	}
}

func TestInsertAscendingRoundTrip(t *testing.T) {
	t.Parallel()
	tests := map[string]struct {
		n           int
		blockSize   int
		writeToDisk bool
	}{
		"TenSmallBlockNoWrite":     {10, blockSize60, false},
		"TenSmallBlockWithWrite":   {10, blockSize60, true},
		"ThousandDefaultNoWrite":   {1000, 4096, false},
		"ThousandDefaultWithWrite": {1000, 4096, true},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			tr := newTempTree(t, tc.blockSize)
			insertAscending(t, tr, tc.n)
			if tc.writeToDisk {
				tr = reopen(t, tr)
			}
			for i := 0; i < tc.n; i++ {
				key := int32(i)
				addr, err := tr.Search(key)
				require.NoError(t, err)
				require.Equal(t, generateAddr(key), addr)
			}
			require.NoError(t, tr.CheckInvariants())
			require.NoError(t, tr.Close())
		})
	}
}

func TestInsertRandomRoundTrip(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(42))
	tr := newTempTree(t, blockSize60)

	keys := rng.Perm(500)
	for _, k := range keys {
		key := int32(k)
		ok, err := tr.Insert(key, generateAddr(key))
		require.NoError(t, err)
		require.True(t, ok)
	}
	require.NoError(t, tr.CheckInvariants())

	tr = reopen(t, tr)
	for _, k := range keys {
		key := int32(k)
		addr, err := tr.Search(key)
		require.NoError(t, err)
		require.Equal(t, generateAddr(key), addr)
	}
	require.NoError(t, tr.Close())
}

func TestInsertDuplicateKeyReturnsFalse(t *testing.T) {
	t.Parallel()
	tr := newTempTree(t, blockSize60)
	insertAscending(t, tr, 100)

	for i := 0; i < 100; i++ {
		key := int32(i)
		ok, err := tr.Insert(key, generateAddr(key)+1)
		require.NoError(t, err)
		require.False(t, ok, "duplicate insert of key %d should be rejected", key)
	}

	tr = reopen(t, tr)
	for i := 0; i < 100; i++ {
		key := int32(i)
		ok, err := tr.Insert(key, generateAddr(key)+1)
		require.NoError(t, err)
		require.False(t, ok, "duplicate insert of key %d should be rejected after reopen", key)

		addr, err := tr.Search(key)
		require.NoError(t, err)
		require.Equal(t, generateAddr(key), addr, "duplicate insert must not overwrite the original address")
	}
	require.NoError(t, tr.Close())
}

func TestFirstInsertFormsSingleLeafRoot(t *testing.T) {
	t.Parallel()
	tr := newTempTree(t, blockSize60)
	ok, err := tr.Insert(10, generateAddr(10))
	require.NoError(t, err)
	require.True(t, ok)

	entries := cursorAll(t, tr)
	require.Equal(t, []entry.Entry{entry.New(10, generateAddr(10))}, entries)
	require.NoError(t, tr.CheckInvariants())
	require.NoError(t, tr.Close())
}

func TestSearchMissingKeyReturnsNoAddress(t *testing.T) {
	t.Parallel()
	tr := newTempTree(t, blockSize60)
	insertAscending(t, tr, 20)

	addr, err := tr.Search(999)
	require.NoError(t, err)
	require.Equal(t, entry.NoAddress, addr)

	addr, err = tr.Search(5)
	require.NoError(t, err)
	require.Equal(t, generateAddr(5), addr)

	require.NoError(t, tr.Close())
}

func TestSearchOnEmptyTree(t *testing.T) {
	t.Parallel()
	tr := newTempTree(t, blockSize60)
	addr, err := tr.Search(1)
	require.NoError(t, err)
	require.Equal(t, entry.NoAddress, addr)
	require.NoError(t, tr.Close())
}

func TestRangeSearchOrderedAcrossLeaves(t *testing.T) {
	t.Parallel()
	tr := newTempTree(t, blockSize60)
	insertAscending(t, tr, 200)

	addrs, err := tr.RangeSearch(50, 149)
	require.NoError(t, err)
	require.Len(t, addrs, 100)
	for i, addr := range addrs {
		require.Equal(t, generateAddr(int32(50+i)), addr)
	}
	require.NoError(t, tr.Close())
}

func TestRangeSearchExcludesRemovedKeys(t *testing.T) {
	t.Parallel()
	tr := newTempTree(t, blockSize60)
	insertAscending(t, tr, 300)

	for k := int32(100); k < 180; k++ {
		_, err := tr.Remove(k)
		require.NoError(t, err)
	}

	addrs, err := tr.RangeSearch(0, 299)
	require.NoError(t, err)
	require.Len(t, addrs, 300-80)
	require.NoError(t, tr.CheckInvariants())
	require.NoError(t, tr.Close())
}

func TestRemoveRoundTrip(t *testing.T) {
	t.Parallel()
	tr := newTempTree(t, blockSize60)
	insertAscending(t, tr, 50)

	for i := 0; i < 50; i++ {
		key := int32(i)
		addr, err := tr.Remove(key)
		require.NoError(t, err)
		require.Equal(t, generateAddr(key), addr)

		found, err := tr.Search(key)
		require.NoError(t, err)
		require.Equal(t, entry.NoAddress, found)

		require.NoError(t, tr.CheckInvariants())
	}
	require.NoError(t, tr.Close())
}

func TestRemoveMissingKeyIsNoop(t *testing.T) {
	t.Parallel()
	tr := newTempTree(t, blockSize60)
	insertAscending(t, tr, 10)

	addr, err := tr.Remove(999)
	require.NoError(t, err)
	require.Equal(t, entry.NoAddress, addr)

	for i := 0; i < 10; i++ {
		key := int32(i)
		found, err := tr.Search(key)
		require.NoError(t, err)
		require.Equal(t, generateAddr(key), found)
	}
	require.NoError(t, tr.Close())
}

func TestRemoveEveryKeyCollapsesToEmptyRoot(t *testing.T) {
	t.Parallel()
	tr := newTempTree(t, blockSize60)
	insertAscending(t, tr, 40)

	for i := 0; i < 40; i++ {
		_, err := tr.Remove(int32(i))
		require.NoError(t, err)
	}

	require.Empty(t, cursorAll(t, tr))
	require.NoError(t, tr.CheckInvariants())

	ok, err := tr.Insert(1, generateAddr(1))
	require.NoError(t, err)
	require.True(t, ok, "tree must accept inserts again after collapsing to an empty root")
	require.NoError(t, tr.Close())
}

func TestRandomInsertRemoveMaintainsInvariants(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(7))
	tr := newTempTree(t, blockSize60)

	live := map[int32]int64{}
	const universe = 300
	for round := 0; round < 3000; round++ {
		key := int32(rng.Intn(universe))
		if _, present := live[key]; present {
			if rng.Intn(2) == 0 {
				addr, err := tr.Remove(key)
				require.NoError(t, err)
				require.Equal(t, live[key], addr)
				delete(live, key)
			}
			continue
		}
		addr := generateAddr(key)
		ok, err := tr.Insert(key, addr)
		require.NoError(t, err)
		require.True(t, ok)
		live[key] = addr
	}

	require.NoError(t, tr.CheckInvariants())
	for key, addr := range live {
		found, err := tr.Search(key)
		require.NoError(t, err)
		require.Equal(t, addr, found)
	}
	require.NoError(t, tr.Close())
}
