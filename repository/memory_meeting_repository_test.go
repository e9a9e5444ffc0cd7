package repository

import (
	"testing"
	"time"

	"MeetScope/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMeeting(title string) *model.Meeting {
	return &model.Meeting{
		Title:        title,
		Participants: "Alice, Bob",
		AudioObject:  "audio/test.wav",
	}
}

func TestCreateAssignsStrictlyIncreasingIDs(t *testing.T) {
	repo := NewMemoryMeetingRepository()

	var last int64
	for i := 0; i < 5; i++ {
		id, err := repo.Create(newTestMeeting("m"))
		require.NoError(t, err)
		assert.Greater(t, id, last)
		last = id
	}
}

func TestCreateGetRoundTrip(t *testing.T) {
	repo := NewMemoryMeetingRepository()

	meeting := newTestMeeting("Discovery Call")
	id, err := repo.Create(meeting)
	require.NoError(t, err)

	got, err := repo.GetByID(id)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, id, got.ID)
	assert.Equal(t, "Discovery Call", got.Title)
	assert.Equal(t, "Alice, Bob", got.Participants)
	assert.Equal(t, "audio/test.wav", got.AudioObject)
	assert.Equal(t, model.StatusProcessing, got.Status)
	assert.Empty(t, got.Transcript)
	assert.Empty(t, got.Summary)
	assert.Equal(t, []string{}, got.KeyOutcomes)
	assert.Equal(t, []string{}, got.PainPoints)
	assert.Equal(t, []string{}, got.Objections)
	assert.False(t, got.CreatedAt.IsZero())
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestGetByIDNotFound(t *testing.T) {
	repo := NewMemoryMeetingRepository()

	got, err := repo.GetByID(42)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListAllNewestFirstWithIDTieBreak(t *testing.T) {
	repo := NewMemoryMeetingRepository().(*memoryMeetingRepository)

	for i := 0; i < 3; i++ {
		_, err := repo.Create(newTestMeeting("m"))
		require.NoError(t, err)
	}

	// Synthetic timestamps: 1 and 2 collide, 3 is older.
	now := time.Now()
	repo.meetings[1].CreatedAt = now
	repo.meetings[2].CreatedAt = now
	repo.meetings[3].CreatedAt = now.Add(-time.Hour)

	meetings, err := repo.ListAll()
	require.NoError(t, err)
	require.Len(t, meetings, 3)

	assert.Equal(t, int64(2), meetings[0].ID) // tie broken by id descending
	assert.Equal(t, int64(1), meetings[1].ID)
	assert.Equal(t, int64(3), meetings[2].ID)
}

func TestUpdateNotFoundLeavesStoreUnchanged(t *testing.T) {
	repo := NewMemoryMeetingRepository()
	_, err := repo.Create(newTestMeeting("m"))
	require.NoError(t, err)

	title := "changed"
	got, err := repo.Update(999, &model.MeetingUpdate{Title: &title})
	require.NoError(t, err)
	assert.Nil(t, got)

	meetings, err := repo.ListAll()
	require.NoError(t, err)
	require.Len(t, meetings, 1)
	assert.Equal(t, "m", meetings[0].Title)
}

func TestUpdateMergesPartialFields(t *testing.T) {
	repo := NewMemoryMeetingRepository()
	id, err := repo.Create(newTestMeeting("m"))
	require.NoError(t, err)

	transcript := "Hello world"
	duration := float32(0)
	got, err := repo.Update(id, &model.MeetingUpdate{Transcript: &transcript, Duration: &duration})
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "Hello world", got.Transcript)
	assert.Equal(t, "m", got.Title) // untouched field preserved
	assert.Equal(t, model.StatusProcessing, got.Status)
	assert.False(t, got.UpdatedAt.Before(got.CreatedAt))
}

func TestDeleteIsIdempotentInEffect(t *testing.T) {
	repo := NewMemoryMeetingRepository()
	id, err := repo.Create(newTestMeeting("m"))
	require.NoError(t, err)

	existed, err := repo.Delete(id)
	require.NoError(t, err)
	assert.True(t, existed)

	got, err := repo.GetByID(id)
	require.NoError(t, err)
	assert.Nil(t, got)

	existed, err = repo.Delete(id)
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestCompletePersistsAllFieldsTogether(t *testing.T) {
	repo := NewMemoryMeetingRepository()
	id, err := repo.Create(newTestMeeting("m"))
	require.NoError(t, err)

	analysis := &model.MeetingAnalysis{
		Summary:     "Brief call",
		KeyOutcomes: []string{"Next meeting scheduled"},
		PainPoints:  []string{},
		Objections:  []string{},
	}
	got, err := repo.Complete(id, "Hello world", 0, analysis)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.Equal(t, "Hello world", got.Transcript)
	assert.Equal(t, "Brief call", got.Summary)
	assert.Equal(t, []string{"Next meeting scheduled"}, got.KeyOutcomes)
	assert.Equal(t, []string{}, got.PainPoints)
	assert.Equal(t, []string{}, got.Objections)
}

func TestTerminalStateIsOneWay(t *testing.T) {
	repo := NewMemoryMeetingRepository()
	id, err := repo.Create(newTestMeeting("m"))
	require.NoError(t, err)

	_, err = repo.Fail(id, "transcription failed: boom")
	require.NoError(t, err)

	_, err = repo.Complete(id, "t", 0, &model.MeetingAnalysis{Summary: "s"})
	assert.ErrorIs(t, err, ErrAlreadyTerminal)

	_, err = repo.Fail(id, "again")
	assert.ErrorIs(t, err, ErrAlreadyTerminal)

	got, err := repo.GetByID(id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.Status)
	assert.Equal(t, "transcription failed: boom", got.ErrorNote)
}

func TestTerminalTransitionOnMissingMeeting(t *testing.T) {
	repo := NewMemoryMeetingRepository()

	got, err := repo.Complete(7, "t", 0, &model.MeetingAnalysis{Summary: "s"})
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = repo.Fail(7, "boom")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestReturnedMeetingsAreCopies(t *testing.T) {
	repo := NewMemoryMeetingRepository()
	id, err := repo.Create(newTestMeeting("m"))
	require.NoError(t, err)

	_, err = repo.Complete(id, "t", 0, &model.MeetingAnalysis{
		Summary:     "s",
		KeyOutcomes: []string{"a"},
	})
	require.NoError(t, err)

	got, err := repo.GetByID(id)
	require.NoError(t, err)
	got.Title = "mutated"
	got.KeyOutcomes[0] = "mutated"

	again, err := repo.GetByID(id)
	require.NoError(t, err)
	assert.Equal(t, "m", again.Title)
	assert.Equal(t, []string{"a"}, again.KeyOutcomes)
}
