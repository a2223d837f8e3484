package server

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"audiohub/config"
	"audiohub/db"
	"audiohub/logger"
	"audiohub/model"
	"audiohub/repository"
	"audiohub/storage"

	"github.com/gorilla/mux"
)

// Start initializes and starts the HTTP server.
func Start() {
	cfg := config.Load()

	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogPath,
		MaxSize:    cfg.LogMaxSize,
		MaxBackups: cfg.LogMaxBackups,
		MaxAge:     cfg.LogMaxAge,
		Compress:   cfg.LogCompress,
	})

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	if err := storage.InitMinio(cfg); err != nil {
		log.Fatalf("Failed to initialize MinIO: %v", err)
	}

	if err := db.ConnectDB(cfg); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.DB.Close()

	if err := db.ConnectGormDB(cfg); err != nil {
		log.Fatalf("Failed to connect to database with GORM: %v", err)
	}
	defer db.CloseGormDB()

	if err := db.AutoMigrateModels(&model.User{}, &model.AudioFile{}); err != nil {
		log.Fatalf("Failed to migrate database schema: %v", err)
	}

	// Redis is a read cache only; run degraded without it.
	if err := db.ConnectRedis(cfg); err != nil {
		logger.Warn("Redis unavailable, listing cache disabled", logger.ErrorField(err))
	} else {
		defer db.CloseRedis()
		log.Println("Successfully connected to Redis")
	}

	audioRepo := repository.NewMySQLAudioFileRepository()
	userRepo := repository.NewMySQLUserRepository()
	store := storage.NewMinioObjectStore(storage.GetMinioClient(), cfg.MinioBucket)

	apiHandler := NewAPIHandler(audioRepo, userRepo, store, cfg)

	router := mux.NewRouter()
	router.Use(corsMiddleware)

	// User endpoints
	router.HandleFunc("/api/users", apiHandler.ListUsersHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/users", apiHandler.CreateUserHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/users/{id}", apiHandler.GetUserHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/users/{id}", apiHandler.UpdateUserHandler).Methods(http.MethodPut)
	router.HandleFunc("/api/users/{id}", apiHandler.DeleteUserHandler).Methods(http.MethodDelete)
	router.HandleFunc("/api/users/{id}/audio_files", apiHandler.UserAudioFilesHandler).Methods(http.MethodGet)

	// Audio endpoints
	router.HandleFunc("/api/audio", apiHandler.ListAudioFilesHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/audio", apiHandler.UploadAudioFileHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/audio/{id}", apiHandler.GetAudioFileHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/audio/{id}", apiHandler.UpdateAudioFileHandler).Methods(http.MethodPut, http.MethodPatch)
	router.HandleFunc("/api/audio/{id}", apiHandler.SoftDeleteAudioFileHandler).Methods(http.MethodDelete)
	router.HandleFunc("/api/audio/{id}/hard_delete", apiHandler.HardDeleteAudioFileHandler).Methods(http.MethodDelete)

	// Binary serving from MinIO
	router.PathPrefix("/media/").HandlerFunc(apiHandler.MediaHandler).Methods(http.MethodGet, http.MethodHead)

	server.Handler = router

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting on %s...", cfg.HTTPAddr)
		log.Println("Manage users via /api/users endpoints")
		log.Println("Upload audio via POST to /api/audio")
		log.Println("List audio via GET from /api/audio")
		log.Println("Stored binaries are served under /media/")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// corsMiddleware applies permissive CORS headers for browser clients.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS, HEAD")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Range")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Range")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// MediaHandler serves stored audio binaries. A record whose binary is gone
// answers 404 here; record reads elsewhere stay unaffected.
func (h *APIHandler) MediaHandler(w http.ResponseWriter, r *http.Request) {
	objectPath := strings.TrimPrefix(r.URL.Path, "/media/")
	if objectPath == "" {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	object, err := h.store.Get(ctx, objectPath)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			http.Error(w, "File not found", http.StatusNotFound)
			return
		}
		logger.Error("Failed to open media object", logger.ErrorField(err), logger.String("objectPath", objectPath))
		http.Error(w, "Failed to read file", http.StatusInternalServerError)
		return
	}
	defer object.Close()

	w.Header().Set("Content-Type", storage.ContentTypeByExtension(objectPath))
	w.Header().Set("Cache-Control", "public, max-age=31536000")

	if _, err := io.Copy(w, object); err != nil {
		logger.Error("Error serving media object", logger.ErrorField(err), logger.String("objectPath", objectPath))
	}
}
