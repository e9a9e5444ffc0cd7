package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"time"

	"MeetScope/config"
	"MeetScope/logger"
	"MeetScope/model"
	"MeetScope/storage"

	"github.com/cenkalti/backoff/v4"
)

// Result holds the output of one transcription call. Duration is always 0:
// the hosted provider returns no duration metadata, and callers must not
// assume it is populated.
type Result struct {
	Text     string
	Duration float32
}

// Transcriber converts stored meeting audio into plain text.
type Transcriber interface {
	Transcribe(ctx context.Context, objectName string) (*Result, error)
}

// WhisperTranscriber calls an OpenAI-compatible /audio/transcriptions
// endpoint. The audio is streamed from the store through a multipart body,
// so large files are never fully buffered.
type WhisperTranscriber struct {
	baseURL    string
	apiKey     string
	model      string
	store      storage.AudioStore
	httpClient *http.Client
}

// maxRetryElapsed bounds the retry window for transient provider failures.
const maxRetryElapsed = 20 * time.Second

// NewWhisperTranscriber creates a transcriber reading audio from store.
func NewWhisperTranscriber(cfg *config.Config, store storage.AudioStore) *WhisperTranscriber {
	return &WhisperTranscriber{
		baseURL: cfg.OpenAIAPIBaseURL,
		apiKey:  cfg.OpenAIAPIKey,
		model:   cfg.WhisperModel,
		store:   store,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// Transcribe sends the audio object to the provider and returns the text.
// Network errors and 5xx responses are retried with exponential backoff;
// provider rejections (4xx) and undecodable responses fail immediately.
func (t *WhisperTranscriber) Transcribe(ctx context.Context, objectName string) (*Result, error) {
	var out model.OpenAITranscriptionResponse

	operation := func() error {
		// Reopen per attempt: a consumed stream cannot be replayed.
		audio, err := t.store.Open(ctx, objectName)
		if err != nil {
			return backoff.Permanent(err)
		}
		defer audio.Close()
		return t.request(ctx, audio, path.Base(objectName), &out)
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = maxRetryElapsed
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, fmt.Errorf("transcription failed: %w", err)
	}

	logger.Debug("转写完成", logger.String("object", objectName), logger.Int("chars", len(out.Text)))
	return &Result{Text: out.Text, Duration: 0}, nil
}

func (t *WhisperTranscriber) request(ctx context.Context, audio io.Reader, filename string, out *model.OpenAITranscriptionResponse) error {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreateFormFile("file", filename)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, audio); err != nil {
			pw.CloseWithError(err)
			return
		}
		if err := mw.WriteField("model", t.model); err != nil {
			pw.CloseWithError(err)
			return
		}
		if err := mw.WriteField("response_format", "json"); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/audio/transcriptions", pr)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 500 {
		return fmt.Errorf("provider server error %d: %s", resp.StatusCode, string(body))
	}
	if resp.StatusCode != http.StatusOK {
		return backoff.Permanent(fmt.Errorf("provider returned status %d: %s", resp.StatusCode, string(body)))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return backoff.Permanent(fmt.Errorf("failed to decode transcription response: %w", err))
	}
	return nil
}
