package pipeline

import (
	"context"
	"sync"
	"time"

	"MeetScope/cache"
	"MeetScope/core/insight"
	"MeetScope/core/transcribe"
	"MeetScope/logger"
	"MeetScope/model"
	"MeetScope/repository"
)

// Pipeline drives one meeting from processing to a terminal state:
// transcribe, analyze, persist. Concurrency is bounded by a fixed pool of
// worker slots; when every slot is busy new uploads are rejected at intake
// rather than queued.
type Pipeline struct {
	repo        repository.MeetingRepository
	runs        repository.PipelineRunRepository
	transcriber transcribe.Transcriber
	analyzer    insight.Analyzer

	slots chan struct{}
	wg    sync.WaitGroup

	transcribeTimeout time.Duration
	analyzeTimeout    time.Duration
}

// New creates a pipeline with the given worker bound.
func New(
	repo repository.MeetingRepository,
	runs repository.PipelineRunRepository,
	transcriber transcribe.Transcriber,
	analyzer insight.Analyzer,
	workers int,
	transcribeTimeout, analyzeTimeout time.Duration,
) *Pipeline {
	return &Pipeline{
		repo:              repo,
		runs:              runs,
		transcriber:       transcriber,
		analyzer:          analyzer,
		slots:             make(chan struct{}, workers),
		transcribeTimeout: transcribeTimeout,
		analyzeTimeout:    analyzeTimeout,
	}
}

// TryAcquire claims a worker slot without blocking. Callers that get a slot
// must hand it to Process or give it back with Release.
func (p *Pipeline) TryAcquire() bool {
	select {
	case p.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release returns a slot claimed by TryAcquire that was never dispatched.
func (p *Pipeline) Release() {
	<-p.slots
}

// Process runs the pipeline for one meeting in the background, releasing the
// previously acquired slot when done. Each meeting's processing is
// independent; ordering across meetings is not guaranteed.
func (p *Pipeline) Process(meetingID int64, objectName string) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() { <-p.slots }()
		p.run(meetingID, objectName)
	}()
}

// Wait blocks until all in-flight pipeline runs finish. Used during shutdown.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

func (p *Pipeline) run(meetingID int64, objectName string) {
	start := time.Now()
	logger.Info("开始处理会议音频",
		logger.Int64("meetingId", meetingID),
		logger.String("object", objectName))

	tctx, cancel := context.WithTimeout(context.Background(), p.transcribeTimeout)
	res, err := p.transcriber.Transcribe(tctx, objectName)
	cancel()
	if err != nil {
		p.fail(meetingID, "transcribe", err, start)
		return
	}

	// Persist the transcript as soon as it exists; if analysis fails the
	// failed record still carries the transcript.
	updated, err := p.repo.Update(meetingID, &model.MeetingUpdate{
		Transcript: &res.Text,
		Duration:   &res.Duration,
	})
	if err != nil {
		p.fail(meetingID, "persist", err, start)
		return
	}
	if updated == nil {
		// Meeting was deleted while transcription was in flight.
		logger.Warn("会议记录已不存在，终止流水线", logger.Int64("meetingId", meetingID))
		return
	}

	actx, cancel := context.WithTimeout(context.Background(), p.analyzeTimeout)
	analysis, err := p.analyzer.Analyze(actx, res.Text)
	cancel()
	if err != nil {
		p.fail(meetingID, "analyze", err, start)
		return
	}

	if _, err := p.repo.Complete(meetingID, res.Text, res.Duration, analysis); err != nil {
		p.fail(meetingID, "persist", err, start)
		return
	}

	elapsed := time.Since(start)
	p.record(&model.PipelineRun{
		MeetingID: meetingID,
		Stage:     "persist",
		Status:    model.StatusCompleted,
		ElapsedMs: elapsed.Milliseconds(),
	})
	cache.InvalidateMeetingList(context.Background())

	logger.Info("会议处理完成",
		logger.Int64("meetingId", meetingID),
		logger.Duration("elapsed", elapsed))
}

func (p *Pipeline) fail(meetingID int64, stage string, cause error, start time.Time) {
	logger.Error("会议处理失败",
		logger.Int64("meetingId", meetingID),
		logger.String("stage", stage),
		logger.ErrorField(cause))

	if _, err := p.repo.Fail(meetingID, cause.Error()); err != nil {
		logger.Error("无法将会议标记为失败",
			logger.Int64("meetingId", meetingID),
			logger.ErrorField(err))
	}

	p.record(&model.PipelineRun{
		MeetingID: meetingID,
		Stage:     stage,
		Status:    model.StatusFailed,
		Error:     cause.Error(),
		ElapsedMs: time.Since(start).Milliseconds(),
	})
	cache.InvalidateMeetingList(context.Background())
}

func (p *Pipeline) record(run *model.PipelineRun) {
	if err := p.runs.Record(run); err != nil {
		logger.Warn("记录流水线审计信息失败", logger.ErrorField(err))
	}
}
