// Package api is the serverless entrypoint: platforms that invoke a plain
// http.HandlerFunc per request call Handler instead of running main.
package api

import (
	"context"
	"net/http"
	"sync"

	"github.com/go-chi/render"
	log "github.com/sirupsen/logrus"

	"github.com/zjx20/gemini-relay/chat"
	"github.com/zjx20/gemini-relay/config"
	"github.com/zjx20/gemini-relay/conversation"
	"github.com/zjx20/gemini-relay/metrics"
	"github.com/zjx20/gemini-relay/relay"
)

var (
	once    sync.Once
	handler http.Handler
	sweeper *conversation.Janitor
	initErr error
)

// newHandler builds the router and, for a stateful relay, a running
// janitor that lives as long as the warm instance.
func newHandler() (http.Handler, *conversation.Janitor, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	collector := metrics.NewCollector(nil)
	rl, err := relay.FromConfig(context.Background(), cfg, collector)
	if err != nil {
		return nil, nil, err
	}
	var janitor *conversation.Janitor
	if store := rl.Store(); store != nil {
		janitor = conversation.NewJanitor(store, cfg.SessionTTL, cfg.SessionSweepSchedule)
		janitor.OnSweep = func(_, remaining int) {
			collector.SetConversations(remaining)
		}
		if err := janitor.Start(); err != nil {
			rl.Close()
			return nil, nil, err
		}
	}
	return chat.NewRouter(chat.NewHandler(rl, collector), collector, cfg.CORSOrigins), janitor, nil
}

func Handler(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		handler, sweeper, initErr = newHandler()
		if initErr != nil {
			log.Errorf("relay setup failed: %s", initErr)
		}
	})
	if initErr != nil {
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, &chat.ErrResp{Error: "relay is not configured"})
		return
	}
	handler.ServeHTTP(w, r)
}
