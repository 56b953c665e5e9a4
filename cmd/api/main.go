package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/facecheck/internal/api"
	"github.com/your-org/facecheck/internal/api/ws"
	"github.com/your-org/facecheck/internal/cache"
	"github.com/your-org/facecheck/internal/config"
	"github.com/your-org/facecheck/internal/embedding"
	"github.com/your-org/facecheck/internal/gallery"
	"github.com/your-org/facecheck/internal/ledger"
	"github.com/your-org/facecheck/internal/match"
	"github.com/your-org/facecheck/internal/models"
	"github.com/your-org/facecheck/internal/observability"
	"github.com/your-org/facecheck/internal/queue"
	"github.com/your-org/facecheck/internal/service"
	"github.com/your-org/facecheck/internal/storage"
	"github.com/your-org/facecheck/internal/vision"
	"github.com/your-org/facecheck/pkg/dto"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting facecheck API service", "port", cfg.Server.Port)

	// Connect to Postgres
	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Connect to MinIO
	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := minioStore.EnsureBucket(context.Background()); err != nil {
		slog.Warn("ensure minio bucket", "error", err)
	}

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	// Optional Redis gallery cache
	var galleryCache *cache.GalleryCache
	if cfg.Redis.Addr != "" {
		galleryCache, err = cache.NewGalleryCache(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, running without gallery cache", "error", err)
		} else {
			defer galleryCache.Close()
			slog.Info("gallery cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.TTL.String())
		}
	}

	// Optional vision extractor for image-based endpoints
	var extractor embedding.Extractor
	ort.SetSharedLibraryPath(getONNXLibPath())
	if err := ort.InitializeEnvironment(); err != nil {
		slog.Warn("onnx runtime init failed — image endpoints will be unavailable", "error", err)
	} else {
		visionExtractor, err := vision.NewExtractor(cfg.Recognition)
		if err != nil {
			slog.Warn("vision models init failed — image endpoints will be unavailable", "error", err)
		} else {
			extractor = visionExtractor
			defer visionExtractor.Close()
			defer ort.DestroyEnvironment()
			slog.Info("vision models ready")
		}
	}

	// Assemble the verification service
	var galCache gallery.Cache
	if galleryCache != nil {
		galCache = galleryCache
	}
	svc := service.NewVerification(
		embedding.NewCodec(extractor),
		gallery.New(db, galCache),
		match.NewMatcher(cfg.Recognition.AcceptThreshold),
		ledger.New(db),
		db,
		minioStore,
		producer,
	)

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Event consumer feeds the WebSocket check-in stream
	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create event consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = consumer.ConsumeEvents(ctx, "api-events", func(ctx context.Context, msg jetstream.Msg) error {
		var event models.CheckinEvent
		if err := json.Unmarshal(msg.Data(), &event); err != nil {
			return err
		}

		hub.BroadcastEvent(&dto.WSEvent{
			Type:       "check_in",
			IdentityID: event.IdentityID,
			Data: dto.CheckinResponse{
				RecordID:   event.RecordID,
				IdentityID: event.IdentityID,
				Date:       event.Date,
				Status:     string(event.Status),
				Confidence: event.Confidence,
			},
		})
		return nil
	})
	if err != nil {
		slog.Warn("start event consumer", "error", err)
	}

	// Setup router
	router := api.NewRouter(api.RouterConfig{
		APIKey:   cfg.Server.APIKey,
		DB:       db,
		MinIO:    minioStore,
		Producer: producer,
		Cache:    galleryCache,
		Hub:      hub,
		Service:  svc,
	})

	// Start HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down API server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("API server stopped")
}

// getONNXLibPath returns the ONNX Runtime shared library path.
func getONNXLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "linux":
		return "libonnxruntime.so"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "onnxruntime.dll"
	}
}
