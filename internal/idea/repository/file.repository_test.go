package repository

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"streamlify/internal/idea/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFileStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "data")
	return NewFileStore(filepath.Join(dir, "ideas.json"), filepath.Join(dir, "votes.json")), dir
}

func fixedClock(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

func TestFileStoreListInitializesMissingFile(t *testing.T) {
	store, dir := newTestFileStore(t)

	ideas, err := store.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, ideas)
	assert.Empty(t, ideas)

	b, err := os.ReadFile(filepath.Join(dir, "ideas.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(b))
}

func TestFileStoreScenario(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestFileStore(t)

	ideas, err := store.Create(ctx, "Do a 24h stream")
	require.NoError(t, err)
	require.Len(t, ideas, 1)
	assert.Equal(t, "Do a 24h stream", ideas[0].Text)
	assert.Equal(t, 0, ideas[0].Votes)
	first := ideas[0].ID

	ideas, err = store.Vote(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, 1, ideas[0].Votes)

	ideas, err = store.Create(ctx, "Raid train")
	require.NoError(t, err)
	require.Len(t, ideas, 2)
	second := ideas[1].ID
	assert.NotEqual(t, first, second)

	ideas, err = store.Vote(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, 1, ideas[0].Votes)
	assert.Equal(t, 1, ideas[1].Votes)

	ideas, err = store.Flush(ctx)
	require.NoError(t, err)
	assert.Empty(t, ideas)

	ideas, err = store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ideas)
}

func TestFileStoreCreateAppendsWithFreshID(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestFileStore(t)
	store.now = fixedClock(1_700_000_000_000)

	seen := map[int64]bool{}
	for _, text := range []string{"a", "b", "c", "  padded  "} {
		ideas, err := store.Create(ctx, text)
		require.NoError(t, err)
		last := ideas[len(ideas)-1]
		assert.Equal(t, text, last.Text, "text is stored as submitted")
		assert.Equal(t, 0, last.Votes)
		assert.False(t, seen[last.ID], "id %d reused", last.ID)
		seen[last.ID] = true
	}

	ideas, err := store.List(ctx)
	require.NoError(t, err)
	for i := 1; i < len(ideas); i++ {
		assert.Greater(t, ideas[i].ID, ideas[i-1].ID)
	}
	assert.Equal(t, int64(1_700_000_000_000), ideas[0].ID)
}

func TestFileStoreVoteLeavesOthersUnchanged(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestFileStore(t)

	_, err := store.Create(ctx, "one")
	require.NoError(t, err)
	_, err = store.Create(ctx, "two")
	require.NoError(t, err)
	before, err := store.Create(ctx, "three")
	require.NoError(t, err)

	after, err := store.Vote(ctx, before[1].ID)
	require.NoError(t, err)

	assert.Equal(t, before[0], after[0])
	assert.Equal(t, before[1].Votes+1, after[1].Votes)
	assert.Equal(t, before[2], after[2])
}

func TestFileStoreVoteUnknownIDLeavesFileUntouched(t *testing.T) {
	ctx := context.Background()
	store, dir := newTestFileStore(t)

	_, err := store.Create(ctx, "Do a 24h stream")
	require.NoError(t, err)
	path := filepath.Join(dir, "ideas.json")
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	ideas, err := store.Vote(ctx, 999999)
	require.NoError(t, err)
	require.Len(t, ideas, 1)
	assert.Equal(t, 0, ideas[0].Votes)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestFileStoreListIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestFileStore(t)
	_, err := store.Create(ctx, "x")
	require.NoError(t, err)

	first, err := store.List(ctx)
	require.NoError(t, err)
	second, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestFileStoreReadsExistingFile(t *testing.T) {
	store, dir := newTestFileStore(t)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	raw := `[{"id": 5, "text": "kept", "votes": 3}]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ideas.json"), []byte(raw), 0o644))

	ideas, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.Idea{{ID: 5, Text: "kept", Votes: 3}}, ideas)
}

func TestFileStoreCorruptFileIsAnError(t *testing.T) {
	store, dir := newTestFileStore(t)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ideas.json"), []byte("{not json"), 0o644))

	_, err := store.List(context.Background())
	assert.Error(t, err)

	_, err = store.Create(context.Background(), "x")
	assert.Error(t, err)
}

func TestFileStoreWritesIndentedArray(t *testing.T) {
	store, dir := newTestFileStore(t)
	store.now = fixedClock(42)

	_, err := store.Create(context.Background(), "hi")
	require.NoError(t, err)

	b, err := os.ReadFile(filepath.Join(dir, "ideas.json"))
	require.NoError(t, err)
	assert.Equal(t, "[\n  {\n    \"id\": 42,\n    \"text\": \"hi\",\n    \"votes\": 0\n  }\n]", string(b))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp", "temp files must not be left behind")
	}
}

func TestFileStoreLedger(t *testing.T) {
	ctx := context.Background()
	store, dir := newTestFileStore(t)

	ids, err := store.VotedBy(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, ids)

	added, err := store.RecordVote(ctx, "alice", 20)
	require.NoError(t, err)
	assert.True(t, added)
	added, err = store.RecordVote(ctx, "alice", 10)
	require.NoError(t, err)
	assert.True(t, added)
	added, err = store.RecordVote(ctx, "alice", 20)
	require.NoError(t, err)
	assert.False(t, added)
	added, err = store.RecordVote(ctx, "bob", 20)
	require.NoError(t, err)
	assert.True(t, added)

	ids, err = store.VotedBy(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 20}, ids)

	var onDisk map[string][]int64
	b, err := os.ReadFile(filepath.Join(dir, "votes.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, &onDisk))
	assert.Equal(t, []int64{20}, onDisk["bob"])

	_, err = store.Flush(ctx)
	require.NoError(t, err)
	ids, err = store.VotedBy(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestFileStoreConcurrentVotesAreNotLost(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestFileStore(t)
	ideas, err := store.Create(ctx, "popular")
	require.NoError(t, err)
	id := ideas[0].ID

	const voters = 25
	var wg sync.WaitGroup
	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Vote(ctx, id)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	ideas, err = store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, voters, ideas[0].Votes)
}

func TestNextIdeaID(t *testing.T) {
	now := time.UnixMilli(1000)

	assert.Equal(t, int64(1000), nextIdeaID(now, nil))
	assert.Equal(t, int64(1000), nextIdeaID(now, []model.Idea{{ID: 5}}))
	assert.Equal(t, int64(1001), nextIdeaID(now, []model.Idea{{ID: 1000}}))
	assert.Equal(t, int64(2001), nextIdeaID(now, []model.Idea{{ID: 2000}, {ID: 7}}))
}
