package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"MeetScope/cache"
	"MeetScope/config"
	"MeetScope/core/calendar"
	"MeetScope/core/pipeline"
	"MeetScope/logger"
	"MeetScope/model"
	"MeetScope/repository"
	"MeetScope/storage"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// APIHandler 处理所有API请求
type APIHandler struct {
	meetingRepo repository.MeetingRepository
	pipeline    *pipeline.Pipeline
	audioStore  storage.AudioStore
	calendar    *calendar.Client
	cfg         *config.Config
}

// NewAPIHandler 创建新的API处理器
func NewAPIHandler(
	meetingRepo repository.MeetingRepository,
	p *pipeline.Pipeline,
	audioStore storage.AudioStore,
	calendarClient *calendar.Client,
	cfg *config.Config,
) *APIHandler {
	return &APIHandler{
		meetingRepo: meetingRepo,
		pipeline:    p,
		audioStore:  audioStore,
		calendar:    calendarClient,
		cfg:         cfg,
	}
}

// allowedAudioExtensions 允许上传的音频扩展名
var allowedAudioExtensions = map[string]bool{
	".mp3": true,
	".wav": true,
	".m4a": true,
	".mp4": true,
}

// allowedAudioMIMETypes 允许的MIME类型；浏览器可能不带类型或给出
// application/octet-stream，此时只按扩展名判断
var allowedAudioMIMETypes = map[string]bool{
	"audio/mpeg": true,
	"audio/wav":  true,
	"audio/mp4":  true,
	"audio/m4a":  true,
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			logger.Error("写入响应失败", logger.ErrorField(err))
		}
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// UploadMeetingHandler handles meeting audio uploads plus metadata. On
// success the meeting is created in processing state and the response
// returns immediately; transcription and analysis run asynchronously.
func (h *APIHandler) UploadMeetingHandler(w http.ResponseWriter, r *http.Request) {
	logger.Info("开始处理上传请求",
		logger.String("path", r.URL.Path),
		logger.String("remoteAddr", r.RemoteAddr),
		logger.Int64("contentLength", r.ContentLength))

	// 检查请求大小
	if r.ContentLength > h.cfg.MaxUploadSize {
		logger.Warn("请求体过大，拒绝处理",
			logger.Int64("contentLength", r.ContentLength),
			logger.Int64("maxSize", h.cfg.MaxUploadSize))
		respondError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("Request too large. Maximum size is %d MB", h.cfg.MaxUploadSize>>20))
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		logger.Warn("解析表单失败", logger.ErrorField(err))
		respondError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	// 校验必填字段，任何校验失败都发生在创建记录之前
	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		respondError(w, http.StatusBadRequest, "Title is required")
		return
	}
	participants := strings.TrimSpace(r.FormValue("participants"))

	file, header, err := r.FormFile("audio")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Audio file is required")
		return
	}
	defer file.Close()

	if header.Size > h.cfg.MaxUploadSize {
		respondError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("File too large. Maximum size is %d MB", h.cfg.MaxUploadSize>>20))
		return
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedAudioExtensions[ext] {
		logger.Warn("不支持的文件类型", logger.String("filename", header.Filename))
		respondError(w, http.StatusBadRequest,
			"Unsupported file type. Accepted extensions: .mp3, .wav, .m4a, .mp4")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType != "" && contentType != "application/octet-stream" && !allowedAudioMIMETypes[contentType] {
		logger.Warn("不支持的MIME类型", logger.String("contentType", contentType))
		respondError(w, http.StatusBadRequest,
			"Unsupported content type. Accepted: audio/mpeg, audio/wav, audio/mp4, audio/m4a")
		return
	}

	// 获取流水线工作槽，控制并发；满载时直接拒绝
	if !h.pipeline.TryAcquire() {
		logger.Warn("服务器繁忙，拒绝新的上传请求")
		respondError(w, http.StatusServiceUnavailable, "Server is busy, please try again later")
		return
	}

	objectName := "audio/" + uuid.New().String() + ext
	if err := h.audioStore.Save(r.Context(), objectName, file, header.Size, contentType); err != nil {
		h.pipeline.Release()
		logger.Error("保存音频失败", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Failed to store audio file")
		return
	}

	meeting := &model.Meeting{
		Title:        title,
		Participants: participants,
		AudioObject:  objectName,
		Status:       model.StatusProcessing,
	}
	if _, err := h.meetingRepo.Create(meeting); err != nil {
		h.pipeline.Release()
		logger.Error("创建会议记录失败", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Failed to create meeting record")
		return
	}

	cache.InvalidateMeetingList(r.Context())
	h.pipeline.Process(meeting.ID, objectName)

	logger.Info("会议记录已创建，流水线已调度",
		logger.Int64("meetingId", meeting.ID),
		logger.String("title", title),
		logger.String("object", objectName))

	respondJSON(w, http.StatusAccepted, meeting)
}

// GetMeetingsHandler lists all meetings, newest first.
func (h *APIHandler) GetMeetingsHandler(w http.ResponseWriter, r *http.Request) {
	if cached, err := cache.GetCachedMeetingList(r.Context()); err == nil && cached != nil {
		respondJSON(w, http.StatusOK, cached)
		return
	} else if err != nil {
		logger.Warn("读取会议列表缓存失败", logger.ErrorField(err))
	}

	meetings, err := h.meetingRepo.ListAll()
	if err != nil {
		logger.Error("查询会议列表失败", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Failed to list meetings")
		return
	}

	if err := cache.CacheMeetingList(r.Context(), meetings); err != nil {
		logger.Warn("写入会议列表缓存失败", logger.ErrorField(err))
	}
	respondJSON(w, http.StatusOK, meetings)
}

// GetMeetingHandler returns one meeting by id.
func (h *APIHandler) GetMeetingHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := meetingIDFromRequest(w, r)
	if !ok {
		return
	}

	meeting, err := h.meetingRepo.GetByID(id)
	if err != nil {
		logger.Error("查询会议失败", logger.Int64("meetingId", id), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Failed to get meeting")
		return
	}
	if meeting == nil {
		respondError(w, http.StatusNotFound, "Meeting not found")
		return
	}
	respondJSON(w, http.StatusOK, meeting)
}

// DeleteMeetingHandler removes a meeting and its stored audio.
func (h *APIHandler) DeleteMeetingHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := meetingIDFromRequest(w, r)
	if !ok {
		return
	}

	meeting, err := h.meetingRepo.GetByID(id)
	if err != nil {
		logger.Error("查询会议失败", logger.Int64("meetingId", id), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Failed to delete meeting")
		return
	}
	if meeting == nil {
		respondError(w, http.StatusNotFound, "Meeting not found")
		return
	}

	existed, err := h.meetingRepo.Delete(id)
	if err != nil {
		logger.Error("删除会议失败", logger.Int64("meetingId", id), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Failed to delete meeting")
		return
	}
	if !existed {
		respondError(w, http.StatusNotFound, "Meeting not found")
		return
	}

	// 音频对象删除失败不影响删除结果，只记录日志
	if meeting.AudioObject != "" {
		if err := h.audioStore.Delete(r.Context(), meeting.AudioObject); err != nil {
			logger.Warn("删除音频对象失败",
				logger.String("object", meeting.AudioObject),
				logger.ErrorField(err))
		}
	}

	cache.InvalidateMeetingList(r.Context())
	respondJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func meetingIDFromRequest(w http.ResponseWriter, r *http.Request) (int64, bool) {
	vars := mux.Vars(r)
	id, err := strconv.ParseInt(vars["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid meeting id")
		return 0, false
	}
	return id, true
}
