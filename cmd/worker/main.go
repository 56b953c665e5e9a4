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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	ort "github.com/yalue/onnxruntime_go"

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

	slog.Info("starting facecheck enrollment worker",
		"workers", cfg.Recognition.WorkerCount,
		"cpu_cores", runtime.NumCPU(),
	)

	// Initialize ONNX Runtime. The worker's whole job is extraction, so
	// unlike the API this is not optional.
	ort.SetSharedLibraryPath(getONNXLibPath())
	if err := ort.InitializeEnvironment(); err != nil {
		slog.Error("init onnx runtime", "error", err)
		os.Exit(1)
	}
	defer ort.DestroyEnvironment()

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

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	// Optional Redis gallery cache (so worker-side enrollments invalidate it)
	var galCache gallery.Cache
	if cfg.Redis.Addr != "" {
		galleryCache, err := cache.NewGalleryCache(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, enrollments will not invalidate the cache", "error", err)
		} else {
			galCache = galleryCache
			defer galleryCache.Close()
		}
	}

	// Vision models
	extractor, err := vision.NewExtractor(cfg.Recognition)
	if err != nil {
		slog.Error("init vision models", "error", err)
		os.Exit(1)
	}
	defer extractor.Close()

	slog.Info("vision models initialized")

	svc := service.NewVerification(
		embedding.NewCodec(extractor),
		gallery.New(db, galCache),
		match.NewMatcher(cfg.Recognition.AcceptThreshold),
		ledger.New(db),
		db,
		minioStore,
		producer,
	)

	// Create NATS consumer
	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start consuming enrollment tasks
	err = consumer.ConsumeEnrollTasks(ctx, "enroll-workers", func(ctx context.Context, msg jetstream.Msg) error {
		var task models.EnrollTask
		if err := json.Unmarshal(msg.Data(), &task); err != nil {
			slog.Error("unmarshal enroll task", "error", err)
			return nil // Don't retry on unmarshal errors
		}

		imageData, err := minioStore.GetObject(ctx, task.ImageKey)
		if err != nil {
			return fmt.Errorf("load image %s: %w", task.ImageKey, err)
		}

		rec, err := svc.Enroll(ctx, task.IdentityID, embedding.FromImage(imageData), task.ImageKey)
		if err != nil {
			return fmt.Errorf("enroll task %s: %w", task.TaskID, err)
		}

		slog.Info("enrollment task done", "task", task.TaskID, "enrollment", rec.ID)
		return nil
	}, cfg.Recognition.WorkerCount)
	if err != nil {
		slog.Error("start enroll consumer", "error", err)
		os.Exit(1)
	}

	// Metrics endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		slog.Info("worker metrics listening", "addr", ":8082")
		if err := http.ListenAndServe(":8082", mux); err != nil {
			slog.Error("metrics server error", "error", err)
		}
	}()

	// Periodically report queue depth
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				depth, err := producer.QueueDepth(ctx)
				if err == nil {
					observability.EnrollQueueDepth.Set(float64(depth))
				}
			}
		}
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down worker...")
	cancel()
	time.Sleep(2 * time.Second)
	slog.Info("worker stopped")
}

// getONNXLibPath returns the ONNX Runtime shared library path
// based on the operating system.
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
