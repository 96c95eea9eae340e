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

	"winzone/api/internal/app"
	"winzone/api/internal/collcache"
	"winzone/api/internal/config"
)

func main() {
	cfg := config.Load()

	var colls *collcache.Cache
	if strings.TrimSpace(cfg.RedisURL) != "" {
		log.Printf("Using Redis for the collection-descriptor cache")
		cache, err := collcache.New(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		colls = cache
		defer colls.Close()
	} else {
		colls, _ = collcache.New("")
	}

	service := app.New(cfg, colls)
	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("WinZone proxy listening on %s (data service %s)", cfg.Addr, cfg.DataServiceURL)
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
