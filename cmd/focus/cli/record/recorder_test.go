package record

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonhq/focus/cmd/focus/cli/store"
	"github.com/simonhq/focus/cmd/focus/cli/testutil"
)

type fakeStore struct {
	sessions map[string]*store.Session
	hashes   map[uuid.UUID]map[string]struct{}
	turns    []*store.Turn
	contents []*store.TurnContent
	jobs     []store.EnqueueParams
	dedupe   map[string]bool

	updated *store.Session
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions: map[string]*store.Session{},
		hashes:   map[uuid.UUID]map[string]struct{}{},
		dedupe:   map[string]bool{},
	}
}

func (f *fakeStore) GetSessionByClaudeID(_ context.Context, id string) (*store.Session, error) {
	if sess, ok := f.sessions[id]; ok {
		return sess, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) CreateSession(_ context.Context, sess *store.Session) error {
	sess.ID = uuid.New()
	f.sessions[sess.SessionID] = sess
	return nil
}

func (f *fakeStore) UpdateSession(_ context.Context, sess *store.Session) error {
	f.updated = sess
	return nil
}

func (f *fakeStore) TurnHashes(_ context.Context, sessionID uuid.UUID) (map[string]struct{}, error) {
	if h, ok := f.hashes[sessionID]; ok {
		return h, nil
	}
	return map[string]struct{}{}, nil
}

func (f *fakeStore) InsertTurn(_ context.Context, turn *store.Turn) error {
	turn.ID = uuid.New()
	f.turns = append(f.turns, turn)
	return nil
}

func (f *fakeStore) InsertTurnContent(_ context.Context, content *store.TurnContent) error {
	content.ID = uuid.New()
	f.contents = append(f.contents, content)
	return nil
}

func (f *fakeStore) EnqueueJob(_ context.Context, p store.EnqueueParams) (*store.Job, error) {
	f.jobs = append(f.jobs, p)
	if p.DedupeKey != "" && f.dedupe[p.DedupeKey] {
		return nil, nil
	}
	f.dedupe[p.DedupeKey] = true
	return &store.Job{ID: uuid.New(), Kind: p.Kind}, nil
}

func TestRecordSessionNewSession(t *testing.T) {
	st := newFakeStore()
	path := testutil.ConversationTranscript(t, 3)

	result, err := RecordSession(context.Background(), st, "sess-abc", path, "/home/user/app")
	require.NoError(t, err)

	assert.Equal(t, 3, result.TurnsRecorded)
	assert.Equal(t, 0, result.TurnsSkipped)
	assert.False(t, result.TranscriptMissing)

	require.Len(t, st.turns, 3)
	assert.Equal(t, 1, st.turns[0].TurnNumber)
	require.NotNil(t, st.turns[0].UserMessage)
	assert.Equal(t, "user message 0", *st.turns[0].UserMessage)
	require.NotNil(t, st.turns[0].ModelName)
	assert.Equal(t, "claude-sonnet-4-5", *st.turns[0].ModelName)

	require.Len(t, st.contents, 3)
	require.NotNil(t, st.contents[0].AssistantText)
	assert.Equal(t, "assistant reply 0", *st.contents[0].AssistantText)
	require.NotNil(t, st.contents[0].ContentSize)
	assert.Equal(t, len(st.contents[0].RawJSONL), *st.contents[0].ContentSize)

	require.NotNil(t, st.updated)
	assert.Equal(t, 3, st.updated.TurnCount)
	require.NotNil(t, st.updated.StartedAt)
	require.NotNil(t, st.updated.LastActivityAt)
	assert.True(t, st.updated.LastActivityAt.After(*st.updated.StartedAt))
}

func TestRecordSessionIdempotent(t *testing.T) {
	st := newFakeStore()
	path := testutil.ConversationTranscript(t, 2)

	first, err := RecordSession(context.Background(), st, "sess-abc", path, "/home/user/app")
	require.NoError(t, err)
	assert.Equal(t, 2, first.TurnsRecorded)

	// Simulate the stored hashes from the first pass
	sess := st.sessions["sess-abc"]
	st.hashes[sess.ID] = map[string]struct{}{}
	for _, turn := range st.turns {
		st.hashes[sess.ID][turn.ContentHash] = struct{}{}
	}

	second, err := RecordSession(context.Background(), st, "sess-abc", path, "/home/user/app")
	require.NoError(t, err)
	assert.Equal(t, 0, second.TurnsRecorded)
	assert.Equal(t, 2, second.TurnsSkipped)
	assert.Len(t, st.turns, 2)

	// Turn count stays stable across re-records
	assert.Equal(t, 2, st.updated.TurnCount)
}

func TestRecordSessionPartialReRecord(t *testing.T) {
	st := newFakeStore()

	shortPath := testutil.ConversationTranscript(t, 2)
	_, err := RecordSession(context.Background(), st, "sess-abc", shortPath, "/w")
	require.NoError(t, err)

	sess := st.sessions["sess-abc"]
	st.hashes[sess.ID] = map[string]struct{}{}
	for _, turn := range st.turns {
		st.hashes[sess.ID][turn.ContentHash] = struct{}{}
	}

	// The session grew by one turn since the last recording
	longPath := testutil.ConversationTranscript(t, 3)
	result, err := RecordSession(context.Background(), st, "sess-abc", longPath, "/w")
	require.NoError(t, err)
	assert.Equal(t, 1, result.TurnsRecorded)
	assert.Equal(t, 2, result.TurnsSkipped)
	assert.Equal(t, 3, st.updated.TurnCount)
}

func TestRecordSessionMissingTranscript(t *testing.T) {
	st := newFakeStore()

	result, err := RecordSession(context.Background(), st, "sess-abc", "/nonexistent/t.jsonl", "/w")
	require.NoError(t, err)
	assert.True(t, result.TranscriptMissing)
	assert.Zero(t, result.TurnsRecorded)
	assert.Empty(t, st.sessions)
}

func TestRecordSessionEmptyTranscript(t *testing.T) {
	st := newFakeStore()
	path := filepath.Join(t.TempDir(), "empty.jsonl")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	result, err := RecordSession(context.Background(), st, "sess-abc", path, "/w")
	require.NoError(t, err)
	assert.Zero(t, result.TurnsRecorded)
	assert.Empty(t, st.sessions)
}

func TestEnqueueSessionRecording(t *testing.T) {
	st := newFakeStore()
	path := testutil.ConversationTranscript(t, 1)
	info, err := os.Stat(path)
	require.NoError(t, err)

	enqueued, err := EnqueueSessionRecording(context.Background(), st, "sess-abc", path, "/w")
	require.NoError(t, err)
	assert.True(t, enqueued)

	require.Len(t, st.jobs, 1)
	job := st.jobs[0]
	assert.Equal(t, store.KindSessionProcess, job.Kind)
	assert.Equal(t, store.PrioritySessionProcess, job.Priority)
	assert.Equal(t, fmt.Sprintf("session_process:sess-abc:%d", info.Size()), job.DedupeKey)

	payload, ok := job.Payload.(SessionPayload)
	require.True(t, ok)
	assert.Equal(t, "sess-abc", payload.SessionID)
	assert.Equal(t, path, payload.TranscriptPath)
	assert.Equal(t, "/w", payload.WorkspacePath)

	// Same session at the same file size dedupes
	enqueued, err = EnqueueSessionRecording(context.Background(), st, "sess-abc", path, "/w")
	require.NoError(t, err)
	assert.False(t, enqueued)
}

func TestEnqueueSessionRecordingMissingFile(t *testing.T) {
	st := newFakeStore()

	enqueued, err := EnqueueSessionRecording(context.Background(), st, "sess-abc", "/nope.jsonl", "/w")
	require.NoError(t, err)
	assert.True(t, enqueued)
	assert.Equal(t, "session_process:sess-abc:0", st.jobs[0].DedupeKey)
}
