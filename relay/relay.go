package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/zjx20/gemini-relay/conversation"
	"github.com/zjx20/gemini-relay/gemini"
	"github.com/zjx20/gemini-relay/metrics"
)

// FallbackReply is returned when the upstream answers without reply text.
const FallbackReply = "No response from Gemini"

var ErrEmptyMessage = errors.New("message is required")

type Options struct {
	// HistorySize is the per-conversation window, 0 for stateless chat.
	HistorySize int
	// MaxConcurrent bounds in-flight upstream calls. Defaults to 100.
	MaxConcurrent int
	// Timeout bounds each upstream call. Zero means no timeout.
	Timeout time.Duration
	Metrics *metrics.Collector
}

type Result struct {
	Reply          string
	ConversationID string
	// Fallback is set when Reply is FallbackReply because the upstream
	// response had no text.
	Fallback bool
}

// Relay forwards chat messages to the upstream model, keeping a bounded
// window of each conversation as context.
type Relay struct {
	client  gemini.Client
	store   *conversation.Store
	sem     chan string
	timeout time.Duration
	metrics *metrics.Collector
}

func New(client gemini.Client, opts Options) *Relay {
	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 100
	}
	r := &Relay{
		client:  client,
		sem:     make(chan string, maxConcurrent),
		timeout: opts.Timeout,
		metrics: opts.Metrics,
	}
	for i := 0; i < cap(r.sem); i++ {
		r.sem <- fmt.Sprintf("upstream_%d", i)
	}
	if opts.HistorySize > 0 {
		r.store = conversation.NewStore(opts.HistorySize)
	}
	return r
}

// Store returns the conversation store, nil for a stateless relay.
func (r *Relay) Store() *conversation.Store {
	return r.store
}

// Chat sends message as the next user turn of conversation id and returns
// the model's reply. An empty id starts a new conversation. On failure the
// conversation is left as it was before the call.
func (r *Relay) Chat(ctx context.Context, id, message string) (*Result, error) {
	if strings.TrimSpace(message) == "" {
		r.metrics.RecordChat(metrics.StatusBadRequest)
		return nil, ErrEmptyMessage
	}
	turn := gemini.Message{Role: gemini.RoleUser, Text: message}

	if r.store == nil {
		reply, fallback, err := r.generate(ctx, []gemini.Message{turn})
		if err != nil {
			return nil, err
		}
		return &Result{Reply: reply, ConversationID: id, Fallback: fallback}, nil
	}

	if id == "" {
		id = uuid.NewString()
	}
	sess, err := r.store.Acquire(ctx, id)
	if err != nil {
		r.metrics.RecordChat(metrics.StatusError)
		return nil, fmt.Errorf("waiting for conversation %s: %w", id, err)
	}
	defer sess.Release()
	r.metrics.SetConversations(r.store.Len())

	before := sess.History.Snapshot()
	evicted := sess.History.Append(turn)
	reply, fallback, err := r.generate(ctx, sess.History.Snapshot())
	if err != nil {
		sess.History.Restore(before)
		return nil, err
	}
	evicted += sess.History.Append(gemini.Message{Role: gemini.RoleModel, Text: reply})
	r.metrics.AddEvictions(evicted)
	log.Debugf("conversation %s: %d turns in window", id, sess.History.Len())

	return &Result{Reply: reply, ConversationID: id, Fallback: fallback}, nil
}

func (r *Relay) generate(ctx context.Context, payload []gemini.Message) (reply string, fallback bool, err error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	slot, err := r.acquire(ctx)
	if err != nil {
		r.metrics.RecordChat(metrics.StatusError)
		return "", false, err
	}
	defer r.release(slot)

	start := time.Now()
	resp, err := r.client.GenerateContent(ctx, payload)
	r.metrics.ObserveUpstream("generate", time.Since(start), err)
	if err != nil {
		log.Errorf("%s: gemini err: %s", slot, err)
		r.metrics.RecordChat(metrics.StatusError)
		return "", false, fmt.Errorf("failed to generate reply: %w", err)
	}

	text, ok := resp.FirstText()
	if !ok {
		log.Warnf("%s: gemini response has no reply text, using fallback", slot)
		r.metrics.RecordChat(metrics.StatusFallback)
		return FallbackReply, true, nil
	}
	r.metrics.RecordChat(metrics.StatusSuccess)
	return text, false, nil
}

// Models returns the upstream model listing as raw JSON.
func (r *Relay) Models(ctx context.Context) (json.RawMessage, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	slot, err := r.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer r.release(slot)

	start := time.Now()
	raw, err := r.client.ListModels(ctx)
	r.metrics.ObserveUpstream("models", time.Since(start), err)
	if err != nil {
		log.Errorf("%s: gemini list models err: %s", slot, err)
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	return raw, nil
}

func (r *Relay) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

func (r *Relay) acquire(ctx context.Context) (string, error) {
	select {
	case slot := <-r.sem:
		return slot, nil
	case <-ctx.Done():
		return "", fmt.Errorf("waiting for an upstream slot: %w", ctx.Err())
	}
}

func (r *Relay) release(slot string) {
	r.sem <- slot
}

func (r *Relay) Close() error {
	return r.client.Close()
}
