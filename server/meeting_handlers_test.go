package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"MeetScope/config"
	"MeetScope/core/pipeline"
	"MeetScope/core/transcribe"
	"MeetScope/model"
	"MeetScope/repository"
	"MeetScope/storage"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedTranscriber blocks until release is closed, so tests can observe the
// meeting in processing state before the pipeline finishes.
type gatedTranscriber struct {
	release chan struct{}
	text    string
}

func (g *gatedTranscriber) Transcribe(ctx context.Context, _ string) (*transcribe.Result, error) {
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &transcribe.Result{Text: g.text, Duration: 0}, nil
}

type stubAnalyzer struct {
	analysis *model.MeetingAnalysis
}

func (s *stubAnalyzer) Analyze(_ context.Context, _ string) (*model.MeetingAnalysis, error) {
	return s.analysis, nil
}

type handlerFixture struct {
	handler *APIHandler
	router  *mux.Router
	repo    repository.MeetingRepository
	pipe    *pipeline.Pipeline
	release chan struct{}
}

func newHandlerFixture(t *testing.T, workers int) *handlerFixture {
	t.Helper()

	cfg := &config.Config{
		MaxUploadSize:        100 << 20,
		PipelineWorkers:      workers,
		TranscribeTimeoutSec: 120,
		AnalyzeTimeoutSec:    60,
	}

	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	repo := repository.NewMemoryMeetingRepository()
	release := make(chan struct{})
	pipe := pipeline.New(repo, repository.NewNoopPipelineRunRepository(),
		&gatedTranscriber{release: release, text: "Hello world"},
		&stubAnalyzer{analysis: &model.MeetingAnalysis{
			Summary:     "Brief call",
			KeyOutcomes: []string{},
			PainPoints:  []string{},
			Objections:  []string{},
		}},
		workers,
		time.Duration(cfg.TranscribeTimeoutSec)*time.Second,
		time.Duration(cfg.AnalyzeTimeoutSec)*time.Second)

	h := NewAPIHandler(repo, pipe, store, nil, cfg)

	r := mux.NewRouter()
	r.HandleFunc("/api/meetings/upload", h.UploadMeetingHandler).Methods(http.MethodPost)
	r.HandleFunc("/api/meetings", h.GetMeetingsHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/meetings/{id}", h.GetMeetingHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/meetings/{id}", h.DeleteMeetingHandler).Methods(http.MethodDelete)

	return &handlerFixture{handler: h, router: r, repo: repo, pipe: pipe, release: release}
}

type uploadForm struct {
	title        string
	participants string
	filename     string
	contentType  string
}

func newUploadRequest(t *testing.T, form uploadForm) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)

	if form.title != "" {
		require.NoError(t, mw.WriteField("title", form.title))
	}
	if form.participants != "" {
		require.NoError(t, mw.WriteField("participants", form.participants))
	}
	if form.filename != "" {
		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name="audio"; filename="%s"`, form.filename))
		if form.contentType != "" {
			hdr.Set("Content-Type", form.contentType)
		}
		part, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, err = part.Write([]byte("RIFF fake audio bytes"))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/meetings/upload", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadReturnsProcessingMeeting(t *testing.T) {
	fx := newHandlerFixture(t, 1)

	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, newUploadRequest(t, uploadForm{
		title:        "Discovery Call",
		participants: "Alice, Bob",
		filename:     "meeting.wav",
		contentType:  "audio/wav",
	}))

	require.Equal(t, http.StatusAccepted, rec.Code)

	var got model.Meeting
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, model.StatusProcessing, got.Status)
	assert.Equal(t, "Discovery Call", got.Title)
	assert.Equal(t, "Alice, Bob", got.Participants)
	assert.Empty(t, got.Transcript)
	assert.Empty(t, got.Summary)

	// Pipeline still gated: the stored record must also be processing.
	stored, err := fx.repo.GetByID(got.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, model.StatusProcessing, stored.Status)

	// Let the pipeline finish and drain before the temp dir is removed.
	close(fx.release)
	fx.pipe.Wait()

	final, err := fx.repo.GetByID(got.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, final.Status)
	assert.Equal(t, "Hello world", final.Transcript)
}

func TestUploadRejectsUnsupportedExtension(t *testing.T) {
	fx := newHandlerFixture(t, 1)

	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, newUploadRequest(t, uploadForm{
		title:       "Notes",
		filename:    "notes.txt",
		contentType: "text/plain",
	}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	meetings, err := fx.repo.ListAll()
	require.NoError(t, err)
	assert.Empty(t, meetings) // nothing persisted on validation failure
}

func TestUploadRejectsUnsupportedMIMEType(t *testing.T) {
	fx := newHandlerFixture(t, 1)

	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, newUploadRequest(t, uploadForm{
		title:       "Sneaky",
		filename:    "meeting.wav",
		contentType: "text/plain",
	}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadAcceptsOctetStreamWithValidExtension(t *testing.T) {
	fx := newHandlerFixture(t, 1)

	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, newUploadRequest(t, uploadForm{
		title:       "Browser Upload",
		filename:    "meeting.mp3",
		contentType: "application/octet-stream",
	}))

	assert.Equal(t, http.StatusAccepted, rec.Code)

	close(fx.release)
	fx.pipe.Wait()
}

func TestUploadRequiresTitle(t *testing.T) {
	fx := newHandlerFixture(t, 1)

	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, newUploadRequest(t, uploadForm{
		title:       "   ",
		filename:    "meeting.wav",
		contentType: "audio/wav",
	}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Title is required", resp["error"])
}

func TestUploadRequiresAudioFile(t *testing.T) {
	fx := newHandlerFixture(t, 1)

	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, newUploadRequest(t, uploadForm{title: "No Audio"}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadRejectedWhenAllWorkersBusy(t *testing.T) {
	fx := newHandlerFixture(t, 0)

	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, newUploadRequest(t, uploadForm{
		title:       "Busy",
		filename:    "meeting.wav",
		contentType: "audio/wav",
	}))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	meetings, err := fx.repo.ListAll()
	require.NoError(t, err)
	assert.Empty(t, meetings)
}

func TestGetMeetingNotFound(t *testing.T) {
	fx := newHandlerFixture(t, 1)

	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/meetings/42", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetMeetingInvalidID(t *testing.T) {
	fx := newHandlerFixture(t, 1)

	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/meetings/abc", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListMeetingsNewestFirst(t *testing.T) {
	fx := newHandlerFixture(t, 1)

	_, err := fx.repo.Create(&model.Meeting{Title: "first"})
	require.NoError(t, err)
	_, err = fx.repo.Create(&model.Meeting{Title: "second"})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/meetings", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var got []*model.Meeting
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].ID)
	assert.Equal(t, int64(1), got[1].ID)
}

func TestDeleteMeeting(t *testing.T) {
	fx := newHandlerFixture(t, 1)

	id, err := fx.repo.Create(&model.Meeting{Title: "doomed"})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/api/meetings/%d", id), nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]bool
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp["deleted"])

	// Second delete of the same id is a 404, not an error.
	rec = httptest.NewRecorder()
	fx.router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/api/meetings/%d", id), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
