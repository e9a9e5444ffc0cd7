package repository

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"MeetScope/model"
)

// memoryMeetingRepository implements MeetingRepository with an in-process map.
// It is the default store: records live for the lifetime of the server.
// All access goes through the mutex so read-modify-write cycles on the same
// id cannot race; ids come from an atomic counter so allocation stays unique
// under concurrent uploads.
type memoryMeetingRepository struct {
	mu       sync.RWMutex
	meetings map[int64]*model.Meeting
	nextID   int64
}

// NewMemoryMeetingRepository creates an empty in-memory meeting repository.
func NewMemoryMeetingRepository() MeetingRepository {
	return &memoryMeetingRepository{
		meetings: make(map[int64]*model.Meeting),
	}
}

// clone returns a copy so callers never share the stored representation.
func clone(m *model.Meeting) *model.Meeting {
	c := *m
	c.KeyOutcomes = append([]string(nil), m.KeyOutcomes...)
	c.PainPoints = append([]string(nil), m.PainPoints...)
	c.Objections = append([]string(nil), m.Objections...)
	return &c
}

func normalizeLists(m *model.Meeting) {
	if m.KeyOutcomes == nil {
		m.KeyOutcomes = []string{}
	}
	if m.PainPoints == nil {
		m.PainPoints = []string{}
	}
	if m.Objections == nil {
		m.Objections = []string{}
	}
}

func (r *memoryMeetingRepository) Create(meeting *model.Meeting) (int64, error) {
	id := atomic.AddInt64(&r.nextID, 1)

	stored := clone(meeting)
	stored.ID = id
	if stored.Status == "" {
		stored.Status = model.StatusProcessing
	}
	now := time.Now()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	normalizeLists(stored)

	r.mu.Lock()
	r.meetings[id] = stored
	r.mu.Unlock()

	meeting.ID = id
	meeting.Status = stored.Status
	meeting.CreatedAt = now
	meeting.UpdatedAt = now
	normalizeLists(meeting)
	return id, nil
}

func (r *memoryMeetingRepository) GetByID(id int64) (*model.Meeting, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.meetings[id]
	if !ok {
		return nil, nil // Meeting not found
	}
	return clone(m), nil
}

func (r *memoryMeetingRepository) ListAll() ([]*model.Meeting, error) {
	r.mu.RLock()
	meetings := make([]*model.Meeting, 0, len(r.meetings))
	for _, m := range r.meetings {
		meetings = append(meetings, clone(m))
	}
	r.mu.RUnlock()

	// Newest first; equal timestamps fall back to id descending so the
	// order is a stable total order.
	sort.Slice(meetings, func(i, j int) bool {
		if meetings[i].CreatedAt.Equal(meetings[j].CreatedAt) {
			return meetings[i].ID > meetings[j].ID
		}
		return meetings[i].CreatedAt.After(meetings[j].CreatedAt)
	})

	return meetings, nil
}

func (r *memoryMeetingRepository) Update(id int64, update *model.MeetingUpdate) (*model.Meeting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.meetings[id]
	if !ok {
		return nil, nil
	}

	if update.Title != nil {
		m.Title = *update.Title
	}
	if update.Participants != nil {
		m.Participants = *update.Participants
	}
	if update.Duration != nil {
		m.Duration = *update.Duration
	}
	if update.Transcript != nil {
		m.Transcript = *update.Transcript
	}
	if update.Summary != nil {
		m.Summary = *update.Summary
	}
	if update.KeyOutcomes != nil {
		m.KeyOutcomes = append([]string(nil), (*update.KeyOutcomes)...)
	}
	if update.PainPoints != nil {
		m.PainPoints = append([]string(nil), (*update.PainPoints)...)
	}
	if update.Objections != nil {
		m.Objections = append([]string(nil), (*update.Objections)...)
	}
	m.UpdatedAt = time.Now()
	normalizeLists(m)

	return clone(m), nil
}

func (r *memoryMeetingRepository) Delete(id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.meetings[id]; !ok {
		return false, nil
	}
	delete(r.meetings, id)
	return true, nil
}

func (r *memoryMeetingRepository) Complete(id int64, transcript string, duration float32, analysis *model.MeetingAnalysis) (*model.Meeting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.meetings[id]
	if !ok {
		return nil, nil
	}
	if m.Status != model.StatusProcessing {
		return nil, ErrAlreadyTerminal
	}

	m.Status = model.StatusCompleted
	m.Transcript = transcript
	m.Duration = duration
	m.Summary = analysis.Summary
	m.KeyOutcomes = append([]string(nil), analysis.KeyOutcomes...)
	m.PainPoints = append([]string(nil), analysis.PainPoints...)
	m.Objections = append([]string(nil), analysis.Objections...)
	m.UpdatedAt = time.Now()
	normalizeLists(m)

	return clone(m), nil
}

func (r *memoryMeetingRepository) Fail(id int64, note string) (*model.Meeting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.meetings[id]
	if !ok {
		return nil, nil
	}
	if m.Status != model.StatusProcessing {
		return nil, ErrAlreadyTerminal
	}

	m.Status = model.StatusFailed
	m.ErrorNote = note
	m.UpdatedAt = time.Now()

	return clone(m), nil
}
