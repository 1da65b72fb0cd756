package checkpoint

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/maltedev/nykaa-review-scraper/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, interval time.Duration) (*Store, *time.Time) {
	t.Helper()
	s, err := NewStore(Options{Dir: t.TempDir(), MinSaveInterval: interval}, nil)
	require.NoError(t, err)

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	return s, &now
}

func sampleState(keyword string) *State {
	st := NewState(keyword)
	for i, id := range []string{"300", "100", "200"} {
		p := models.NewProduct(id, "https://www.nykaa.com/x/p/"+id)
		p.Name = "Product " + id
		p.Rating = 4.5
		p.ScrapedAt = time.Date(2024, 6, 1, 11, i, 0, 0, time.UTC)
		p.Reviews = append(p.Reviews, models.ReviewRecord{
			Author: models.Author{Name: "asha", Verified: true},
			Rating: 5,
			Body:   "lovely",
			Date:   "2024-05-01",
			Images: []string{},
			Pros:   []string{},
			Cons:   []string{},
		})
		st.AccumulatedRecords = append(st.AccumulatedRecords, *p)
		st.ProcessedURLs.Add(p.URL)
	}
	st.RecordSearch([]string{"a", "b", "c", "d"}, 10, time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC))
	return st
}

func TestStore_RoundTrip(t *testing.T) {
	s, _ := newTestStore(t, 0)
	st := sampleState("lip gloss")

	require.NoError(t, s.ForceSave("lip gloss", st))

	loaded, err := s.Load("lip gloss")
	require.NoError(t, err)

	if diff := cmp.Diff(st.AccumulatedRecords, loaded.AccumulatedRecords); diff != "" {
		t.Errorf("accumulated records mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(st.ProcessedURLs, loaded.ProcessedURLs); diff != "" {
		t.Errorf("processed urls mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "300", loaded.AccumulatedRecords[0].ID)
	assert.Equal(t, StatusInProgress, loaded.Metadata.Status)
	assert.Equal(t, 3, loaded.Metadata.ProcessedCount)
	assert.InDelta(t, 75.0, loaded.Metadata.ProgressPercent, 0.001)
	assert.Equal(t, 1, loaded.Metadata.Remaining)
}

func TestStore_FilesUseKeywordKey(t *testing.T) {
	s, _ := newTestStore(t, 0)
	require.NoError(t, s.ForceSave("lip  gloss/matte", sampleState("lip  gloss/matte")))

	for _, name := range []string{"checkpoint_lip_gloss_matte.ckpt", "checkpoint_lip_gloss_matte.json"} {
		_, err := os.Stat(filepath.Join(s.dir, name))
		assert.NoError(t, err, name)
	}
}

func TestStore_LoadMissing(t *testing.T) {
	s, _ := newTestStore(t, 0)

	_, err := s.Load("mascara")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_KeywordMismatchIsRejected(t *testing.T) {
	s, _ := newTestStore(t, 0)
	require.NoError(t, s.ForceSave("mascara", sampleState("mascara")))

	// A file for one keyword copied under another keyword's name.
	for _, ext := range []string{primaryExt, mirrorExt} {
		data, err := os.ReadFile(filepath.Join(s.dir, "checkpoint_mascara"+ext))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(s.dir, "checkpoint_kajal"+ext), data, 0o600))
	}

	_, err := s.Load("kajal")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_FallsBackToMirror(t *testing.T) {
	s, _ := newTestStore(t, 0)
	require.NoError(t, s.ForceSave("mascara", sampleState("mascara")))
	require.NoError(t, os.WriteFile(s.primaryPath("mascara"), []byte(`{"format_version":2,"keyw`), 0o600))

	loaded, err := s.Load("mascara")
	require.NoError(t, err)
	assert.Len(t, loaded.AccumulatedRecords, 3)
}

func TestStore_SuccessfulSaveLeavesNoTempFiles(t *testing.T) {
	s, _ := newTestStore(t, 0)
	require.NoError(t, s.ForceSave("mascara", sampleState("mascara")))
	require.NoError(t, s.ForceSave("mascara", sampleState("mascara")))

	entries, err := os.ReadDir(s.dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"checkpoint_mascara.ckpt", "checkpoint_mascara.json"}, names)
}

func TestStore_RejectsInvalidDocuments(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "garbage", doc: `not json`},
		{name: "missing fields", doc: `{"format_version":2,"keyword":"mascara"}`},
		{name: "wrong version", doc: `{"format_version":1,"keyword":"mascara","accumulated_records":[],"processed_urls":[]}`},
		{name: "null records", doc: `{"format_version":2,"keyword":"mascara","accumulated_records":null,"processed_urls":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestStore(t, 0)
			require.NoError(t, os.WriteFile(s.primaryPath("mascara"), []byte(tt.doc), 0o600))

			_, err := s.Load("mascara")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_CrashBeforeRenameKeepsPreviousCheckpoint(t *testing.T) {
	s, _ := newTestStore(t, 0)
	first := sampleState("mascara")
	require.NoError(t, s.ForceSave("mascara", first))

	crash := errors.New("killed before rename")
	s.rename = func(string, string) error { return crash }

	second := sampleState("mascara")
	second.AccumulatedRecords = second.AccumulatedRecords[:1]
	err := s.ForceSave("mascara", second)
	require.ErrorIs(t, err, crash)

	loaded, err := s.Load("mascara")
	require.NoError(t, err)
	assert.Len(t, loaded.AccumulatedRecords, 3)

	tmps, err := filepath.Glob(filepath.Join(s.dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, tmps, "failed writes must not leave temp files behind")
}

func TestStore_SaveIsRateLimited(t *testing.T) {
	s, now := newTestStore(t, 30*time.Second)
	st := sampleState("mascara")

	saved, err := s.Save("mascara", st)
	require.NoError(t, err)
	assert.True(t, saved)

	*now = now.Add(10 * time.Second)
	saved, err = s.Save("mascara", st)
	require.NoError(t, err)
	assert.False(t, saved)

	saved, err = s.Save("kajal", sampleState("kajal"))
	require.NoError(t, err)
	assert.True(t, saved, "interval is tracked per keyword")

	require.NoError(t, s.ForceSave("mascara", st))

	*now = now.Add(31 * time.Second)
	saved, err = s.Save("mascara", st)
	require.NoError(t, err)
	assert.True(t, saved)
}

func TestStore_Clear(t *testing.T) {
	s, _ := newTestStore(t, time.Hour)
	st := sampleState("mascara")
	_, err := s.Save("mascara", st)
	require.NoError(t, err)

	require.NoError(t, s.Clear("mascara"))
	_, err = s.Load("mascara")
	assert.ErrorIs(t, err, ErrNotFound)

	saved, err := s.Save("mascara", st)
	require.NoError(t, err)
	assert.True(t, saved, "clear resets the save interval")

	require.NoError(t, s.Clear("never-saved"))
}

func TestStore_List(t *testing.T) {
	s, _ := newTestStore(t, 0)
	require.NoError(t, s.ForceSave("mascara", sampleState("mascara")))
	plain := NewState("kajal")
	plain.Metadata.Status = StatusInterrupted
	require.NoError(t, s.ForceSave("kajal", plain))
	require.NoError(t, os.WriteFile(filepath.Join(s.dir, "checkpoint_broken.ckpt"), []byte("{"), 0o600))

	list, err := s.List()
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, "kajal", list[0].Keyword)
	assert.Equal(t, StatusInterrupted, list[0].Status)
	assert.False(t, list[0].SmartResume)

	assert.Equal(t, "mascara", list[1].Keyword)
	assert.Equal(t, 3, list[1].Products)
	assert.True(t, list[1].SmartResume)
	assert.Equal(t, 4, list[1].CachedURLs)
	assert.Equal(t, "checkpoint_mascara.ckpt", list[1].File)
}
