package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/zjx20/gemini-relay/chat"
	"github.com/zjx20/gemini-relay/config"
	"github.com/zjx20/gemini-relay/conversation"
	"github.com/zjx20/gemini-relay/metrics"
	"github.com/zjx20/gemini-relay/relay"
)

func init() {
	log.SetLevel(config.GetLogLevel())
	log.SetOutput(os.Stdout)
	log.SetFormatter(&log.TextFormatter{
		DisableColors:   runtime.GOOS == "windows",
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	config.AddConfigChangeCallback(func() {
		log.SetLevel(config.GetLogLevel())
	})
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx); err != nil {
		log.Fatalln(err)
	}
}

func run(ctx context.Context) error {
	if err := config.Init(); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	defer config.Close()
	cfg := config.ReadConfig()

	collector := metrics.NewCollector(nil)
	rl, err := relay.FromConfig(ctx, cfg, collector)
	if err != nil {
		return err
	}
	defer rl.Close()

	if store := rl.Store(); store != nil {
		janitor := conversation.NewJanitor(store, cfg.SessionTTL, cfg.SessionSweepSchedule)
		janitor.OnSweep = func(_, remaining int) {
			collector.SetConversations(remaining)
		}
		if err := janitor.Start(); err != nil {
			return err
		}
		defer janitor.Stop()
	}

	r := chat.NewRouter(chat.NewHandler(rl, collector), collector, cfg.CORSOrigins)

	l, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		<-ctx.Done()
		log.Infof("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("shutdown: %s", err)
		}
	}()

	log.Infof("Server listening at %s", l.Addr())
	if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
