// Command tgfs-server runs the Telegram file-streaming gateway: it
// authenticates the primary bot client plus any configured
// MULTI_TOKEN{N} auxiliaries, then serves ranged HTTP downloads of
// messages in the configured bin channel until signaled to stop.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"tgfs/internal/httpapi"
	"tgfs/internal/logging"
	"tgfs/internal/tgstream/dispatcher"
	"tgfs/internal/tgstream/fileinfo"
	"tgfs/internal/tgstream/lifecycle"
	"tgfs/internal/tgstream/transfer"
	"tgfs/internal/tgstreamconfig"
	"tgfs/internal/version"
)

func main() {
	showVersion := flag.Bool("version", false, "show version")
	flag.Parse()

	if *showVersion {
		fmt.Printf("tgfs-server %s\n", version.Version)
		return
	}

	cfg, err := tgstreamconfig.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zapLogger, err := logging.New(logging.Options{
		Debug:    cfg.Debug,
		ExtDebug: cfg.ExtDebug,
		LogFile:  cfg.LogFile,
	})
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	defer zapLogger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tokens := append([]string{cfg.BotToken}, cfg.MultiTokens...)

	clientSets := make([]*lifecycle.ClientSet, 0, len(tokens))
	for i, token := range tokens {
		cs, err := lifecycle.Bootstrap(ctx, zapLogger, cfg.APIID, cfg.APIHash, token, cfg.ConnectionLimit, i+1)
		if err != nil {
			log.Fatalf("client %d startup: %v", i+1, err)
		}
		clientSets = append(clientSets, cs)
	}

	workers := make([]*dispatcher.Worker, len(clientSets))
	resolvers := make(map[int]httpapi.Resolver, len(clientSets))
	downloaders := make(map[int]httpapi.Streamer, len(clientSets))

	for i, cs := range clientSets {
		workers[i] = cs.Worker

		binChannel, err := lifecycle.ResolveBinChannel(ctx, cs.API, cfg.BinChannel)
		if err != nil {
			log.Fatalf("client %d bin channel resolution: %v", cs.Worker.ID, err)
		}

		resolver := fileinfo.NewResolver(cs.API, binChannel)
		cache, err := fileinfo.NewCache(cfg.CacheSize, resolver.Resolve)
		if err != nil {
			log.Fatalf("client %d cache: %v", cs.Worker.ID, err)
		}
		resolvers[cs.Worker.ID] = cache

		dcDownloaders := make(map[int]*transfer.Downloader, len(cs.Pools))
		for dcID, pool := range cs.Pools {
			dcDownloaders[dcID] = transfer.NewDownloader(zapLogger, pool, transfer.RealFloodWaiter{})
		}
		downloaders[cs.Worker.ID] = httpapi.RoutingStreamer{ByDC: dcDownloaders}
	}

	d := dispatcher.New(workers)
	server := httpapi.New(zapLogger, d, resolvers, downloaders, httpapi.Config{
		Host:             cfg.Host,
		Port:             cfg.Port,
		DownloadPartSize: cfg.DownloadPartSize,
		Debug:            cfg.Debug,
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		zapLogger.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			zapLogger.Error("http shutdown", zap.Error(err))
		}
		lifecycle.Shutdown(clientSets)
		cancel()
	}()

	zapLogger.Info("starting tgfs-server", zap.String("host", cfg.Host), zap.Int("port", cfg.Port))
	if err := server.ListenAndServe(); err != nil {
		zapLogger.Fatal("server error", zap.Error(err))
	}
}
