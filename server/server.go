package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"MeetScope/config"
	"MeetScope/core/calendar"
	"MeetScope/core/insight"
	"MeetScope/core/pipeline"
	"MeetScope/core/transcribe"
	"MeetScope/db"
	"MeetScope/logger"
	"MeetScope/model"
	"MeetScope/repository"
	"MeetScope/storage"

	"github.com/gorilla/mux"
)

// Start initializes and starts the HTTP server.
func Start() {
	cfg := config.Load()

	logger.Init(logger.Config{
		Level:      cfg.LogLevel,
		OutputPath: cfg.LogPath,
		MaxSize:    100,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	})
	defer logger.Sync()

	// 设置服务器超时
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		ReadTimeout:  5 * time.Minute, // 上传大音频文件需要较长时间
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 选择会议存储：默认内存，配置 mysql 时使用数据库
	var meetingRepo repository.MeetingRepository
	runRepo := repository.NewNoopPipelineRunRepository()
	if cfg.StorageDriver == "mysql" {
		if err := db.ConnectDB(cfg); err != nil {
			logger.Fatal("Failed to connect to database", logger.ErrorField(err))
		}
		defer db.DB.Close()

		if err := db.InitDB(); err != nil {
			logger.Fatal("Failed to initialize database", logger.ErrorField(err))
		}
		meetingRepo = repository.NewMySQLMeetingRepository()

		// GORM 连接用于流水线审计表
		if err := db.ConnectGormDB(cfg); err != nil {
			logger.Fatal("Failed to connect to database with GORM", logger.ErrorField(err))
		}
		defer db.CloseGormDB()
		if err := db.AutoMigrateModels(&model.PipelineRun{}); err != nil {
			logger.Fatal("Failed to migrate models", logger.ErrorField(err))
		}
		runRepo = repository.NewGormPipelineRunRepository(db.GormDB)
	} else {
		logger.Info("Using in-memory meeting store; records live for this session only")
		meetingRepo = repository.NewMemoryMeetingRepository()
	}

	// Redis 不可用时缓存层自动退化为直查
	if err := db.ConnectRedis(cfg); err != nil {
		logger.Warn("Redis unavailable, caching disabled", logger.ErrorField(err))
	} else {
		defer db.CloseRedis()
		logger.Info("Successfully connected to Redis")
	}

	// 音频存储：配置了 MinIO 时用对象存储，否则落本地磁盘
	var audioStore storage.AudioStore
	if cfg.MinioEndpoint != "" {
		minioStore, err := storage.NewMinioStore(cfg)
		if err != nil {
			logger.Fatal("Failed to initialize MinIO", logger.ErrorField(err))
		}
		audioStore = minioStore
	} else {
		localStore, err := storage.NewLocalStore(cfg.AudioUploadDir)
		if err != nil {
			logger.Fatal("Failed to initialize local audio store", logger.ErrorField(err))
		}
		logger.Info("MinIO not configured, storing audio on local disk",
			logger.String("dir", cfg.AudioUploadDir))
		audioStore = localStore
	}

	transcriber := transcribe.NewWhisperTranscriber(cfg, audioStore)
	analyzer := insight.NewOpenAIAnalyzer(cfg)
	pipe := pipeline.New(meetingRepo, runRepo, transcriber, analyzer,
		cfg.PipelineWorkers,
		time.Duration(cfg.TranscribeTimeoutSec)*time.Second,
		time.Duration(cfg.AnalyzeTimeoutSec)*time.Second)

	calendarClient := calendar.NewClient(cfg)

	// 初始化处理器
	apiHandler := NewAPIHandler(meetingRepo, pipe, audioStore, calendarClient, cfg)

	// 使用 gorilla/mux 创建路由器
	router := mux.NewRouter()

	// 添加 CORS 中间件
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	// 会议相关的API端点
	router.HandleFunc("/api/meetings/upload", apiHandler.UploadMeetingHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/meetings", apiHandler.GetMeetingsHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/meetings/{id}", apiHandler.GetMeetingHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/meetings/{id}", apiHandler.DeleteMeetingHandler).Methods(http.MethodDelete)
	router.HandleFunc("/api/meetings/{id}/status/ws", apiHandler.MeetingStatusWSHandler).Methods(http.MethodGet)

	// 日历相关的API端点（独立的外部读取路径）
	router.HandleFunc("/api/calendar/upcoming", apiHandler.UpcomingMeetingsHandler).Methods(http.MethodGet)

	// 健康检查
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	}).Methods(http.MethodGet)

	server.Handler = router

	// 创建一个通道来接收操作系统信号
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// 在goroutine中启动服务器
	go func() {
		logger.Info("Server starting", logger.String("addr", server.Addr))
		logger.Info("Upload meetings via POST to /api/meetings/upload")
		logger.Info("List meetings via GET from /api/meetings")
		logger.Info("Subscribe to status via /api/meetings/{id}/status/ws")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", logger.ErrorField(err))
		}
	}()

	// 等待中断信号
	<-stop
	logger.Info("Shutting down server...")

	// 创建一个5秒超时的上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 优雅关闭服务器
	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", logger.ErrorField(err))
	}

	// 等待仍在执行的流水线结束，避免会议停留在 processing
	logger.Info("Waiting for in-flight pipelines to finish...")
	pipe.Wait()

	logger.Info("Server stopped")
}
