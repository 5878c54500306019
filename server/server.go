package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ClipDeck/config"
	"ClipDeck/db"
	"ClipDeck/logger"
	"ClipDeck/media"
	"ClipDeck/model"
	"ClipDeck/repository"
	"ClipDeck/storage"

	"github.com/gorilla/mux"
)

// Start 启动引擎进程：装配媒体库和编辑会话，
// 在本地回环地址上监听，表现层通过 HTTP + WebSocket 接入。
func Start(cfg *config.Config) error {
	// Connect to the database
	if err := db.ConnectGormDB(cfg); err != nil {
		return err
	}
	defer db.CloseGormDB()

	if err := db.AutoMigrateModels(&model.MediaAsset{}); err != nil {
		return err
	}

	// Redis 只做探测缓存，连不上降级为直接探测
	if err := db.ConnectRedis(cfg); err != nil {
		logger.Warn("redis unavailable, probe cache disabled", logger.ErrorField(err))
	} else {
		defer db.CloseRedis()
	}

	// MinIO 可选：配了端点就把素材传对象存储，否则播本地文件
	useObjectStore := cfg.MinioEndpoint != ""
	if useObjectStore {
		if err := storage.InitMinio(cfg); err != nil {
			logger.Warn("minio unavailable, serving media from local paths", logger.ErrorField(err))
			useObjectStore = false
		}
	}

	if err := os.MkdirAll(cfg.MediaDir, 0o755); err != nil {
		return err
	}

	assetRepo := repository.NewGormAssetRepository(db.GormDB)
	prober := media.NewFFprobeProber(cfg.FFprobePath)
	library := media.NewLibrary(assetRepo, prober, cfg.MinioBucket, useObjectStore)

	hub := NewHub()
	go hub.Run()

	session := NewSession(cfg, library, hub)
	session.Start()
	defer session.Stop()

	apiHandler := NewAPIHandler(session, library, cfg)

	watchCtx, cancelWatch := context.WithCancel(context.Background())
	defer cancelWatch()
	if cfg.WatchImports {
		watcher, err := media.NewWatcher(library, cfg.MediaDir)
		if err != nil {
			logger.Warn("media watcher failed to start", logger.ErrorField(err))
		} else {
			go watcher.Run(watchCtx)
			defer watcher.Close()
		}
	}

	router := mux.NewRouter()

	// webview 跑在自定义 scheme 上，CORS 全放开
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Set("Access-Control-Max-Age", "86400")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	// 会话快照
	router.HandleFunc("/api/session", apiHandler.GetSessionHandler).Methods(http.MethodGet)

	// 片段操作
	router.HandleFunc("/api/clips", apiHandler.AddClipHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/clips/{id}", apiHandler.RemoveClipHandler).Methods(http.MethodDelete)
	router.HandleFunc("/api/clips/{id}/move", apiHandler.MoveClipHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/clips/{id}/trim", apiHandler.TrimClipHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/clips/{id}/select", apiHandler.SelectClipHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/selection", apiHandler.ClearSelectionHandler).Methods(http.MethodDelete)

	// 轨道操作
	router.HandleFunc("/api/tracks", apiHandler.CreateTrackHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/tracks/{id}", apiHandler.UpdateTrackHandler).Methods(http.MethodPut)
	router.HandleFunc("/api/tracks/{id}", apiHandler.DeleteTrackHandler).Methods(http.MethodDelete)

	// 走带与吸附
	router.HandleFunc("/api/playhead", apiHandler.SetPlayheadHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/transport", apiHandler.TransportHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/snap", apiHandler.UpdateSnapHandler).Methods(http.MethodPut)

	// 播放错误恢复
	router.HandleFunc("/api/playback/retry", apiHandler.RetryPlaybackHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/playback/error", apiHandler.ClearPlaybackErrorHandler).Methods(http.MethodDelete)

	// 媒体库
	router.HandleFunc("/api/media", apiHandler.ListMediaHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/media/import", apiHandler.ImportMediaHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/media/{ref}", apiHandler.RemoveMediaHandler).Methods(http.MethodDelete)
	router.HandleFunc("/api/media/{ref}/source", apiHandler.ResolveMediaHandler).Methods(http.MethodGet)

	// WebSocket
	router.HandleFunc("/ws/editor", apiHandler.WebSocketEditorHandler)

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("engine listening", logger.String("addr", cfg.ListenAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down", logger.String("signal", sig.String()))
	}

	cancelWatch()
	hub.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown failed", logger.ErrorField(err))
		return err
	}
	return nil
}
