package diff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoSpuriousWrites(t *testing.T) {
	e := NewEngine(4, RefreshPolicy{Mode: CadenceElapsed, Period: time.Hour})
	buf := []byte{0, 0, 0, 0}
	e.Commit(buf)

	r := e.Diff(buf)
	assert.True(t, r.Empty, "identical buffer with refresh not due must produce no write")
}

func TestDiffMinimality(t *testing.T) {
	e := NewEngine(10, RefreshPolicy{Mode: CadenceElapsed, Period: time.Hour})
	a := make([]byte, 10)
	e.Commit(a)

	b := make([]byte, 10)
	copy(b, a)
	b[3] = 0xFF
	b[3+1-1] = 0xFF

	r := e.Diff(b)
	require.False(t, r.Empty)
	assert.Equal(t, 3, r.Start)
	assert.Equal(t, 3, r.End)

	for i := range a {
		if i < r.Start || i > r.End {
			assert.Equal(t, a[i], b[i])
		}
	}
}

func TestDiffMidRangeOnly(t *testing.T) {
	e := NewEngine(40, RefreshPolicy{Mode: CadenceElapsed, Period: time.Hour})
	all := make([]byte, 40)
	e.Commit(all)

	changed := make([]byte, 40)
	changed[20] = 0xFF

	r := e.Diff(changed)
	assert.Equal(t, Range{Start: 20, End: 20}, r)
}

func TestForcedRefreshByElapsedTime(t *testing.T) {
	e := NewEngine(4, RefreshPolicy{Mode: CadenceElapsed, Period: time.Millisecond})
	buf := []byte{1, 2, 3, 4}
	e.Commit(buf)

	time.Sleep(2 * time.Millisecond)
	r := e.Diff(buf)
	require.False(t, r.Empty, "elapsed-time cadence must force a refresh")
	assert.Equal(t, 0, r.Start)
	assert.Equal(t, 3, r.End)
}

func TestForcedRefreshByCallCount(t *testing.T) {
	e := NewEngine(4, RefreshPolicy{Mode: CadenceCallCount, Calls: 3})
	buf := []byte{1, 2, 3, 4}
	e.Commit(buf)

	assert.True(t, e.Diff(buf).Empty)
	assert.True(t, e.Diff(buf).Empty)
	r := e.Diff(buf)
	assert.False(t, r.Empty, "third identical call must force a refresh at K=3")
}

func TestPairsOnlyChangedCells(t *testing.T) {
	e := NewEngine(5, RefreshPolicy{Mode: CadenceElapsed, Period: time.Hour})
	a := []byte{1, 2, 3, 4, 5}
	e.Commit(a)

	b := []byte{1, 2, 9, 4, 8}
	r := e.Diff(b)
	pairs := e.Pairs(b, r)
	require.Len(t, pairs, 2)
	assert.Equal(t, Pair{Offset: 2, Value: 9}, pairs[0])
	assert.Equal(t, Pair{Offset: 4, Value: 8}, pairs[1])
}

func TestResizeZeroesNewCells(t *testing.T) {
	e := NewEngine(4, RefreshPolicy{Mode: CadenceElapsed, Period: time.Hour})
	e.Commit([]byte{9, 9, 9, 9})
	e.Resize(8)
	require.Equal(t, 8, e.Len())

	next := make([]byte, 8)
	copy(next, []byte{9, 9, 9, 9})
	r := e.Diff(next)
	assert.True(t, r.Empty)
}
