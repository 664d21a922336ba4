package market

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"tradeboard/internal/domain"
	"tradeboard/internal/infra"
)

// DefaultPollInterval is deliberately coarse: the provider's free tier is
// rate limited, so the loop trades latency for quota headroom.
const DefaultPollInterval = 10 * time.Second

// BarFunc receives bar updates for a subscription. Callbacks are invoked
// serially with registry mutations and must not call Subscribe or
// Unsubscribe; a panicking callback is recovered per-subscriber so it cannot
// block delivery to the others.
type BarFunc func(domain.Bar)

// channel is the unique polling unit for one (provider id, quote currency)
// pair. It owns the working bar and the subscriber set; its poll goroutine
// is the only writer of the bar.
type channel struct {
	pair       domain.Pair
	resolution domain.Resolution

	subs       map[string]BarFunc
	working    domain.Bar
	hasWorking bool
	lastEmit   domain.Bar
	hasEmit    bool

	cancel context.CancelFunc
}

// Registry maps channels to interested listeners and guarantees exactly one
// upstream poll loop per channel regardless of listener count. All state is
// serialized through one mutex; poll goroutines re-check channel liveness
// under it before fanning out, so a result already in flight when the last
// listener leaves is simply discarded.
type Registry struct {
	mu       sync.Mutex
	channels map[domain.Pair]*channel
	bySub    map[string]domain.Pair

	provider domain.QuoteProvider
	quotes   *QuoteCache
	interval time.Duration
	metrics  *infra.Metrics
	logger   *slog.Logger

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

// NewRegistry creates a registry polling the given provider. quotes and
// metrics may be nil.
func NewRegistry(provider domain.QuoteProvider, quotes *QuoteCache, interval time.Duration, metrics *infra.Metrics, logger *slog.Logger) *Registry {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		channels: make(map[domain.Pair]*channel),
		bySub:    make(map[string]domain.Pair),
		provider: provider,
		quotes:   quotes,
		interval: interval,
		metrics:  metrics,
		logger:   logger.With("module", "registry"),
		baseCtx:  ctx,
		stop:     cancel,
	}
}

// Subscribe attaches fn to the channel for pair, creating the channel and
// its poll loop on first use. When the channel already exists its resolution
// wins: the first subscriber's resolution governs until the channel is torn
// down, which keeps a single poll loop against the upstream quota.
func (r *Registry) Subscribe(pair domain.Pair, res domain.Resolution, fn BarFunc) string {
	id := uuid.NewString()

	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.channels[pair]
	if ok {
		ch.subs[id] = fn
		r.bySub[id] = pair
		r.logger.Debug("listener added to existing channel",
			slog.String("channel", pair.String()), slog.Int("listeners", len(ch.subs)))
		return id
	}

	ctx, cancel := context.WithCancel(r.baseCtx)
	ch = &channel{
		pair:       pair,
		resolution: res,
		subs:       map[string]BarFunc{id: fn},
		cancel:     cancel,
	}
	r.channels[pair] = ch
	r.bySub[id] = pair
	r.updateChannelGauge()

	r.wg.Add(1)
	go r.pollLoop(ctx, ch)

	r.logger.Info("channel created",
		slog.String("channel", pair.String()), slog.String("resolution", string(res)))
	return id
}

// Unsubscribe removes the listener with the given id. Removing the last
// listener cancels the channel's timer and deletes the channel; no further
// ticks occur. Unknown ids are a no-op so UI teardown races stay harmless.
func (r *Registry) Unsubscribe(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pair, ok := r.bySub[id]
	if !ok {
		return
	}
	delete(r.bySub, id)

	ch, ok := r.channels[pair]
	if !ok {
		return
	}
	delete(ch.subs, id)
	if len(ch.subs) > 0 {
		return
	}

	ch.cancel()
	delete(r.channels, pair)
	r.updateChannelGauge()
	r.logger.Info("channel torn down", slog.String("channel", pair.String()))
}

// Stop tears down every channel and waits for their poll goroutines.
func (r *Registry) Stop() {
	r.mu.Lock()
	for pair, ch := range r.channels {
		ch.cancel()
		delete(r.channels, pair)
	}
	for id := range r.bySub {
		delete(r.bySub, id)
	}
	r.updateChannelGauge()
	r.mu.Unlock()

	r.stop()
	r.wg.Wait()
}

// pollLoop drives one channel: an immediate poll, then fixed-interval ticks
// until the channel is cancelled. Each tick runs to completion before the
// next fires, so bar emissions within a channel are strictly time-ordered.
func (r *Registry) pollLoop(ctx context.Context, ch *channel) {
	defer r.wg.Done()

	r.poll(ctx, ch)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.poll(ctx, ch)
		}
	}
}

// poll fetches the latest quote and applies it to the channel's working bar.
// A transport failure is logged and skipped; the next scheduled tick simply
// tries again. A transient failure never tears down the channel.
func (r *Registry) poll(ctx context.Context, ch *channel) {
	if r.metrics != nil {
		r.metrics.RecordPoll()
	}

	fetchCtx, cancel := context.WithTimeout(ctx, r.interval)
	quote, err := r.provider.LatestQuote(fetchCtx, ch.pair)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		if r.metrics != nil {
			r.metrics.RecordPollError()
		}
		r.logger.Warn("poll tick failed, skipping",
			slog.String("channel", ch.pair.String()), slog.Any("error", err))
		return
	}

	if r.quotes != nil {
		r.quotes.Update(quote)
	}

	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	// The channel may have been torn down while the request was in flight;
	// its result is discarded, never delivered.
	if r.channels[ch.pair] != ch {
		return
	}

	next := advance(ch.working, ch.hasWorking, quote.Price, now, ch.resolution)
	rolled := ch.hasWorking && !next.Time.Equal(ch.working.Time)
	ch.working = next
	ch.hasWorking = true

	// Emit only when the bar actually moved since the last emission.
	if ch.hasEmit && next.Equal(ch.lastEmit) {
		return
	}
	ch.lastEmit = next
	ch.hasEmit = true

	if r.metrics != nil {
		r.metrics.RecordBarEmitted()
		if rolled {
			r.metrics.RecordRollover()
		}
	}

	for id, fn := range ch.subs {
		r.deliver(id, fn, next)
	}
}

// deliver invokes one subscriber callback, containing panics so one faulty
// listener cannot block delivery to the others.
func (r *Registry) deliver(id string, fn BarFunc, bar domain.Bar) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("subscriber callback panicked",
				slog.String("subscriber", id), slog.Any("panic", rec))
		}
	}()
	fn(bar)
}

// updateChannelGauge must be called with the lock held.
func (r *Registry) updateChannelGauge() {
	if r.metrics != nil {
		r.metrics.SetActiveChannels(int32(len(r.channels)))
	}
}

// Status describes the registry for the stream-status endpoint.
type Status struct {
	Channels    []string `json:"channels"`
	Subscribers int      `json:"subscriptions"`
	Method      string   `json:"method"`
}

// GetStatus returns a snapshot of active channels and listener counts.
func (r *Registry) GetStatus() Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]string, 0, len(r.channels))
	for pair := range r.channels {
		keys = append(keys, pair.String())
	}
	sort.Strings(keys)
	return Status{
		Channels:    keys,
		Subscribers: len(r.bySub),
		Method:      "provider API polling",
	}
}

// ChannelCount returns the number of live poll loops.
func (r *Registry) ChannelCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.channels)
}
