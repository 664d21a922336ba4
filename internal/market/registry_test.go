package market

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tradeboard/internal/domain"
)

// fakeProvider serves a scripted price and counts upstream calls.
type fakeProvider struct {
	mu    sync.Mutex
	price decimal.Decimal
	calls int64
	fail  bool
}

func newFakeProvider(price float64) *fakeProvider {
	return &fakeProvider{price: decimal.NewFromFloat(price)}
}

func (f *fakeProvider) LatestQuote(_ context.Context, pair domain.Pair) (domain.Quote, error) {
	atomic.AddInt64(&f.calls, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return domain.Quote{}, errors.New("upstream unavailable")
	}
	return domain.Quote{Pair: pair, Price: f.price, ReceivedAt: time.Now()}, nil
}

func (f *fakeProvider) setPrice(p float64) {
	f.mu.Lock()
	f.price = decimal.NewFromFloat(p)
	f.mu.Unlock()
}

func (f *fakeProvider) setFail(v bool) {
	f.mu.Lock()
	f.fail = v
	f.mu.Unlock()
}

func (f *fakeProvider) callCount() int64 { return atomic.LoadInt64(&f.calls) }

var testPair = domain.Pair{ProviderID: 1, Base: "BTC", Quote: "USD"}

func TestRegistry_SharedChannel(t *testing.T) {
	provider := newFakeProvider(50000)
	reg := NewRegistry(provider, nil, 30*time.Millisecond, nil, nil)
	defer reg.Stop()

	var got1, got2 int64
	id1 := reg.Subscribe(testPair, domain.Res1Min, func(domain.Bar) { atomic.AddInt64(&got1, 1) })
	id2 := reg.Subscribe(testPair, domain.Res1Min, func(domain.Bar) { atomic.AddInt64(&got2, 1) })

	if id1 == id2 {
		t.Fatal("Subscription ids must be unique")
	}
	if reg.ChannelCount() != 1 {
		t.Fatalf("Two listeners on one pair should share one channel, got %d", reg.ChannelCount())
	}

	time.Sleep(50 * time.Millisecond)

	if atomic.LoadInt64(&got1) == 0 || atomic.LoadInt64(&got2) == 0 {
		t.Error("Both listeners should receive the first bar")
	}
	// The immediate poll plus at most one tick; never one fetch per listener.
	if calls := provider.callCount(); calls > 3 {
		t.Errorf("Expected a single poll loop, saw %d upstream calls", calls)
	}
}

func TestRegistry_LastUnsubscribeStopsPolling(t *testing.T) {
	provider := newFakeProvider(50000)
	reg := NewRegistry(provider, nil, 20*time.Millisecond, nil, nil)
	defer reg.Stop()

	id1 := reg.Subscribe(testPair, domain.Res1Min, func(domain.Bar) {})
	id2 := reg.Subscribe(testPair, domain.Res1Min, func(domain.Bar) {})

	reg.Unsubscribe(id1)
	if reg.ChannelCount() != 1 {
		t.Error("Channel should survive while a listener remains")
	}

	reg.Unsubscribe(id2)
	if reg.ChannelCount() != 0 {
		t.Error("Last unsubscribe should tear the channel down")
	}

	time.Sleep(30 * time.Millisecond)
	settled := provider.callCount()
	time.Sleep(60 * time.Millisecond)
	if provider.callCount() != settled {
		t.Error("Polling must stop after the last listener leaves")
	}
}

func TestRegistry_UnknownUnsubscribeIsNoop(t *testing.T) {
	provider := newFakeProvider(50000)
	reg := NewRegistry(provider, nil, time.Hour, nil, nil)
	defer reg.Stop()

	reg.Subscribe(testPair, domain.Res1Min, func(domain.Bar) {})

	reg.Unsubscribe("not-a-subscription")
	reg.Unsubscribe("not-a-subscription") // double teardown from UI races

	if reg.ChannelCount() != 1 {
		t.Error("Unknown ids must not disturb live channels")
	}
}

func TestRegistry_PollErrorSkipsTick(t *testing.T) {
	provider := newFakeProvider(50000)
	provider.setFail(true)
	reg := NewRegistry(provider, nil, 20*time.Millisecond, nil, nil)
	defer reg.Stop()

	var bars int64
	reg.Subscribe(testPair, domain.Res1Min, func(domain.Bar) { atomic.AddInt64(&bars, 1) })

	time.Sleep(50 * time.Millisecond)
	if atomic.LoadInt64(&bars) != 0 {
		t.Error("Failed ticks must not emit bars")
	}
	if reg.ChannelCount() != 1 {
		t.Error("Transient failures must not tear the channel down")
	}

	// Recovery on a later tick without resubscribing.
	provider.setFail(false)
	time.Sleep(60 * time.Millisecond)
	if atomic.LoadInt64(&bars) == 0 {
		t.Error("Channel should emit again once the provider recovers")
	}
}

func TestRegistry_DedupesUnchangedBars(t *testing.T) {
	provider := newFakeProvider(50000)
	reg := NewRegistry(provider, nil, 15*time.Millisecond, nil, nil)
	defer reg.Stop()

	var bars int64
	reg.Subscribe(testPair, domain.Res1Day, func(domain.Bar) { atomic.AddInt64(&bars, 1) })

	time.Sleep(80 * time.Millisecond)
	if got := atomic.LoadInt64(&bars); got != 1 {
		t.Errorf("Constant price within one window should emit once, got %d", got)
	}

	provider.setPrice(51000)
	time.Sleep(40 * time.Millisecond)
	if got := atomic.LoadInt64(&bars); got < 2 {
		t.Errorf("A price move should emit an updated bar, got %d emissions", got)
	}
}

func TestRegistry_PanickingSubscriberIsContained(t *testing.T) {
	provider := newFakeProvider(50000)
	reg := NewRegistry(provider, nil, 20*time.Millisecond, nil, nil)
	defer reg.Stop()

	var healthy int64
	reg.Subscribe(testPair, domain.Res1Min, func(domain.Bar) { panic("listener bug") })
	reg.Subscribe(testPair, domain.Res1Min, func(domain.Bar) { atomic.AddInt64(&healthy, 1) })

	time.Sleep(50 * time.Millisecond)
	if atomic.LoadInt64(&healthy) == 0 {
		t.Error("A panicking listener must not block delivery to the others")
	}
}

func TestRegistry_QuoteCacheUpdated(t *testing.T) {
	provider := newFakeProvider(50000)
	cache := NewQuoteCache()
	reg := NewRegistry(provider, cache, 20*time.Millisecond, nil, nil)
	defer reg.Stop()

	reg.Subscribe(testPair, domain.Res1Min, func(domain.Bar) {})
	time.Sleep(40 * time.Millisecond)

	q, ok := cache.Latest(testPair)
	if !ok {
		t.Fatal("Polled quotes should land in the cache")
	}
	if !q.Price.Equal(decimal.NewFromInt(50000)) {
		t.Errorf("Expected cached price 50000, got %v", q.Price)
	}
}

func TestRegistry_Status(t *testing.T) {
	provider := newFakeProvider(50000)
	reg := NewRegistry(provider, nil, time.Hour, nil, nil)
	defer reg.Stop()

	reg.Subscribe(testPair, domain.Res1Min, func(domain.Bar) {})
	reg.Subscribe(domain.Pair{ProviderID: 1027, Base: "ETH", Quote: "USD"}, domain.Res1Min, func(domain.Bar) {})

	st := reg.GetStatus()
	if len(st.Channels) != 2 || st.Subscribers != 2 {
		t.Errorf("Unexpected status: %+v", st)
	}
}
