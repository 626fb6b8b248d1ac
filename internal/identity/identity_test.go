package identity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompute_Deterministic(t *testing.T) {
	t.Parallel()

	a := Compute("some content", "https://x.edu/item1.htm")
	b := Compute("some content", "https://x.edu/item1.htm")
	require.Equal(t, a, b)
	require.Len(t, a, 64)
}

func TestCompute_ChangingEitherInputChangesID(t *testing.T) {
	t.Parallel()

	base := Compute("some content", "https://x.edu/item1.htm")
	require.NotEqual(t, base, Compute("other content", "https://x.edu/item1.htm"))
	require.NotEqual(t, base, Compute("some content", "https://x.edu/item2.htm"))
}

func TestCompute_TrimsContent(t *testing.T) {
	t.Parallel()

	require.Equal(t,
		Compute("some content", "https://x.edu/item1.htm"),
		Compute("  some content \n", "https://x.edu/item1.htm"),
	)
}

func TestCompute_EmptyContentFallsBackToURL(t *testing.T) {
	t.Parallel()

	a := Compute("", "https://x.edu/item1.htm")
	b := Compute("   ", "https://x.edu/item1.htm")
	require.Equal(t, a, b)
	require.NotEqual(t, a, Compute("", "https://x.edu/item2.htm"))
}
