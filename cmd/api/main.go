package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fsawadogo/sqordia-sub000/internal/app"
	"github.com/fsawadogo/sqordia-sub000/internal/archive"
	"github.com/fsawadogo/sqordia-sub000/internal/config"
	"github.com/fsawadogo/sqordia-sub000/internal/export"
	"github.com/fsawadogo/sqordia-sub000/internal/exportcache"
	"github.com/fsawadogo/sqordia-sub000/internal/search"
	"github.com/fsawadogo/sqordia-sub000/internal/snapshot"
	"github.com/fsawadogo/sqordia-sub000/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	if err := os.MkdirAll(cfg.SnapshotsDir, 0o755); err != nil {
		log.Fatalf("failed to create snapshots dir: %v", err)
	}

	dataStore := store.NewPostgresStore(db)
	snapshots := snapshot.New(cfg.SnapshotsDir)

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
	}
	searchService := search.NewService(meiliClient, pgfts)
	if meiliClient != nil {
		defer meiliClient.Close()
		searchService.ReindexAllFromPG(ctx)
	}

	var cache app.ResultCache
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisCache, err := exportcache.New(cfg.RedisURL)
		if err != nil {
			log.Printf("WARNING: export cache disabled, redis connection failed: %v", err)
		} else {
			defer redisCache.Close()
			cache = redisCache
		}
	}

	var archiver app.Archiver
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		archiveSvc, err := archive.New(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Printf("WARNING: export archive disabled, minio connection failed: %v", err)
		} else {
			archiver = archiveSvc
		}
	}

	raster := export.NewChromeRasterizer()
	raster.Timeout = cfg.RasterTimeout
	exporter := export.NewService(
		app.ExportStoreAdapter{Store: dataStore},
		raster,
		app.ActivityAdapter{Store: dataStore},
	)

	service := app.New(dataStore, exporter, searchService, cache, archiver, snapshots)

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Sqordia export API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
