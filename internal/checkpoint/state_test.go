package checkpoint

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURLSet_MarshalsSorted(t *testing.T) {
	data, err := json.Marshal(NewURLSet("c", "a", "b", "a"))
	require.NoError(t, err)
	assert.JSONEq(t, `["a","b","c"]`, string(data))

	var back URLSet
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, back.Has("b"))
	assert.Len(t, back, 3)
}

func TestState_CachedURLs(t *testing.T) {
	st := NewState("mascara")
	_, ok := st.CachedURLs(5)
	assert.False(t, ok)

	st.RecordSearch([]string{"u1", "u2", "u3", "u4"}, 20, time.Now())

	urls, ok := st.CachedURLs(2)
	require.True(t, ok)
	assert.Equal(t, []string{"u1", "u2"}, urls)

	urls, ok = st.CachedURLs(20)
	require.True(t, ok)
	assert.Len(t, urls, 4)

	_, ok = st.CachedURLs(21)
	assert.False(t, ok, "a larger request needs a fresh search")
}

func TestState_RefreshProgress(t *testing.T) {
	st := NewState("mascara")
	st.RefreshProgress()
	assert.Equal(t, 0.0, st.Metadata.ProgressPercent)

	st.Metadata.TotalURLs = 8
	st.ProcessedURLs.Add("a")
	st.ProcessedURLs.Add("b")
	st.RefreshProgress()
	assert.Equal(t, 2, st.Metadata.ProcessedCount)
	assert.Equal(t, 25.0, st.Metadata.ProgressPercent)
	assert.Equal(t, 6, st.Metadata.Remaining)
}
