package entry_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"bplustable/pkg/entry"
)

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	t.Parallel()
	cases := []entry.Entry{
		entry.New(0, 0),
		entry.New(-1, -1),
		entry.New(1<<31-1, 1<<62),
		entry.New(-(1 << 31), -(1 << 62)),
	}
	for _, e := range cases {
		buf := e.Marshal()
		require.Len(t, buf, entry.Size)
		require.Equal(t, e, entry.Unmarshal(buf))
	}
}

func TestNoAddressIsZero(t *testing.T) {
	t.Parallel()
	require.Equal(t, int64(0), entry.NoAddress)
}
