package relay

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/zjx20/gemini-relay/config"
	"github.com/zjx20/gemini-relay/gemini"
	"github.com/zjx20/gemini-relay/metrics"
	"github.com/zjx20/gemini-relay/util/httpclient"
)

// NewClient builds the upstream client selected by cfg.Backend.
func NewClient(ctx context.Context, cfg *config.Config) (gemini.Client, error) {
	clientCfg := gemini.ClientConfig{
		APIKey:    cfg.APIKey,
		ModelName: cfg.Model,
		BaseURL:   cfg.BaseURL,
	}
	if cfg.Backend != config.BackendSDK && cfg.Backend != config.BackendREST && cfg.Backend != "" {
		return nil, fmt.Errorf("unknown upstream backend %q", cfg.Backend)
	}
	hc, err := httpclient.CustomPingInterval(cfg.HTTP2PingInterval)
	if err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case config.BackendSDK:
		return gemini.NewSDKClient(ctx, clientCfg, hc)
	default:
		return gemini.NewRESTClient(clientCfg, hc), nil
	}
}

// FromConfig builds a Relay and its upstream client from cfg.
func FromConfig(ctx context.Context, cfg *config.Config, collector *metrics.Collector) (*Relay, error) {
	client, err := NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	log.Infof("relaying to %s backend, model %s, history %d turns", cfg.Backend, cfg.Model, cfg.HistorySize)
	return New(client, Options{
		HistorySize:   cfg.HistorySize,
		MaxConcurrent: cfg.MaxConcurrent,
		Timeout:       cfg.UpstreamTimeout,
		Metrics:       collector,
	}), nil
}
