package inference

import (
	"context"
	"fmt"
	"sync"
	"time"

	"RoomDetection/pkg/pipeline"

	"github.com/sirupsen/logrus"
)

const (
	DefaultMinRetryBackoff = time.Second
	DefaultMaxRetryBackoff = time.Minute
	defaultRefreshTimeout  = 30 * time.Second
)

// Handle owns a Backend for the lifetime of the process. It is created by
// the caller, initialized once and shut down explicitly.
//
// A handle that is not ready after Initialize reconnects in the background
// when it is asked for readiness, at most once per backoff interval. The
// interval doubles after every failed attempt up to the configured maximum.
type Handle struct {
	backend Backend
	log     *logrus.Logger

	minBackoff     time.Duration
	maxBackoff     time.Duration
	refreshTimeout time.Duration

	mu          sync.Mutex
	status      Status
	closed      bool
	started     bool
	refreshing  bool
	backoff     time.Duration
	nextAttempt time.Time
	refreshes   sync.WaitGroup
}

type HandleOption func(*Handle)

// WithRetryBackoff bounds the delay between background reconnect attempts.
func WithRetryBackoff(first, limit time.Duration) HandleOption {
	return func(h *Handle) {
		if first > 0 {
			h.minBackoff = first
		}
		if limit > 0 {
			h.maxBackoff = limit
		}
	}
}

// WithRefreshTimeout bounds a single background reconnect attempt.
func WithRefreshTimeout(timeout time.Duration) HandleOption {
	return func(h *Handle) {
		if timeout > 0 {
			h.refreshTimeout = timeout
		}
	}
}

func NewHandle(backend Backend, log *logrus.Logger, opts ...HandleOption) *Handle {
	h := &Handle{
		backend:        backend,
		log:            log,
		minBackoff:     DefaultMinRetryBackoff,
		maxBackoff:     DefaultMaxRetryBackoff,
		refreshTimeout: defaultRefreshTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.maxBackoff < h.minBackoff {
		h.maxBackoff = h.minBackoff
	}
	h.backoff = h.minBackoff
	return h
}

// Initialize connects the backend and records the model status it reports.
// A handle whose backend reports an unloaded model stays not ready until a
// later background attempt finds it loaded.
func (h *Handle) Initialize(ctx context.Context) error {
	h.mu.Lock()
	h.started = true
	h.closed = false
	h.mu.Unlock()

	status, err := h.connect(ctx)
	h.record(status, err)
	if err != nil {
		return err
	}

	h.log.WithFields(logrus.Fields{
		"model_loaded": status.ModelLoaded,
		"device":       status.Device,
	}).Info("Inference backend initialized")

	if !status.ModelLoaded {
		return ErrModelNotLoaded
	}
	return nil
}

func (h *Handle) connect(ctx context.Context) (Status, error) {
	if err := h.backend.Connect(ctx); err != nil {
		return Status{}, fmt.Errorf("connect inference backend: %w", err)
	}

	status, err := h.backend.Status(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("query model status: %w", err)
	}
	return status, nil
}

// record stores the outcome of a connection attempt and schedules the next
// one when the model is still unavailable.
func (h *Handle) record(status Status, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	if err == nil {
		h.status = status
	}
	if err == nil && status.ModelLoaded {
		h.backoff = h.minBackoff
		h.nextAttempt = time.Time{}
		return
	}

	h.nextAttempt = time.Now().Add(h.backoff)
	h.backoff = min(2*h.backoff, h.maxBackoff)
}

func (h *Handle) Ready() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	ready := !h.closed && h.status.ModelLoaded
	if !ready {
		h.maybeRefreshLocked()
	}
	return ready
}

func (h *Handle) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return Status{Device: h.status.Device}
	}
	if !h.status.ModelLoaded {
		h.maybeRefreshLocked()
	}
	return h.status
}

func (h *Handle) maybeRefreshLocked() {
	if h.closed || !h.started || h.refreshing || time.Now().Before(h.nextAttempt) {
		return
	}

	h.refreshing = true
	h.refreshes.Add(1)
	go h.refresh()
}

func (h *Handle) refresh() {
	defer h.refreshes.Done()

	ctx, cancel := context.WithTimeout(context.Background(), h.refreshTimeout)
	defer cancel()

	status, err := h.connect(ctx)
	h.record(status, err)

	h.mu.Lock()
	h.refreshing = false
	retryIn := time.Until(h.nextAttempt)
	h.mu.Unlock()

	if err != nil {
		h.log.WithFields(logrus.Fields{
			"error":    err.Error(),
			"retry_in": retryIn.Round(time.Millisecond).String(),
		}).Warn("Inference backend still unavailable")
		return
	}

	h.log.WithFields(logrus.Fields{
		"model_loaded": status.ModelLoaded,
		"device":       status.Device,
	}).Info("Inference backend reconnected")
}

func (h *Handle) Detect(ctx context.Context, img Image) ([]pipeline.RawDetection, error) {
	if !h.Ready() {
		return nil, ErrModelNotLoaded
	}
	return h.backend.Detect(ctx, img)
}

// Shutdown waits for a pending reconnect attempt and releases the backend.
// Detect fails with ErrModelNotLoaded afterwards.
func (h *Handle) Shutdown() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	h.refreshes.Wait()

	h.log.Info("Shutting down inference backend")
	return h.backend.Close()
}
