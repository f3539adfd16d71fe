package entropy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenlabs/atomica/pkg/types"
)

func turns(n int) []types.Turn {
	out := make([]types.Turn, n)
	for i := range out {
		out[i] = types.Turn{Speaker: "user", Content: "turn"}
	}
	return out
}

func TestCreateWindows_OverlapMatchesWindowSizeMinusStride(t *testing.T) {
	windows := CreateWindows("session.json", turns(10), 4, 2)
	require.Len(t, windows, 5)

	assert.Equal(t, 0, windows[0].StartIndex)
	assert.Equal(t, 4, windows[0].EndIndex)
	assert.Equal(t, 2, windows[1].StartIndex)
	assert.Equal(t, 6, windows[1].EndIndex)
}

func TestCreateWindows_FinalWindowTruncatedNotDropped(t *testing.T) {
	windows := CreateWindows("session.json", turns(7), 4, 3)
	last := windows[len(windows)-1]
	assert.Equal(t, 7, last.EndIndex)
	assert.LessOrEqual(t, last.EndIndex-last.StartIndex, 4)
}

func TestCreateWindows_EmptyInputReturnsNil(t *testing.T) {
	assert.Nil(t, CreateWindows("session.json", nil, 4, 2))
}

func TestCreateWindows_IDsAreDeterministic(t *testing.T) {
	a := CreateWindows("session.json", turns(5), 4, 2)
	b := CreateWindows("session.json", turns(5), 4, 2)
	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].ID, b[i].ID)
	}
}
