package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRoundTrip(t *testing.T) {
	dt := DotsTable{7, 6, 5, 4, 3, 2, 1, 0} // reversed bit order
	tr := Build(dt)

	for b := 0; b < 256; b++ {
		got := tr.In[tr.Out[byte(b)]]
		assert.Equalf(t, byte(b), got, "round trip failed for %d", b)
	}
}

func TestCanonicalIsIdentity(t *testing.T) {
	tr := Build(Canonical)
	for b := 0; b < 256; b++ {
		assert.Equal(t, byte(b), tr.Out[b])
		assert.Equal(t, byte(b), tr.In[b])
	}
}

func TestBuildCheckedRejectsDuplicateBit(t *testing.T) {
	_, err := BuildChecked(DotsTable{0, 0, 2, 3, 4, 5, 6, 7})
	require.Error(t, err)
}

func TestBuildCheckedRejectsOutOfRange(t *testing.T) {
	_, err := BuildChecked(DotsTable{8, 1, 2, 3, 4, 5, 6, 7})
	require.Error(t, err)
}
