package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"tradeboard/internal/catalog"
	"tradeboard/internal/domain"
	"tradeboard/internal/infra"
	"tradeboard/internal/infra/cmc"
	"tradeboard/internal/infra/storage"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config   *infra.Config
	Storage  *storage.Storage
	Metrics  *infra.Metrics
	Provider *cmc.Client
	Catalog  *catalog.Catalog
	Icons    *infra.IconFetcher

	cron *cron.Cron
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization. A configuration error is
// fatal and returned to main; optional subsystems (persistence, icons)
// degrade with a warning instead.
func (b *Bootstrap) Initialize(configPath string) error {
	slog.Info("bootstrapping tradeboard...")

	// 1. Load Config (refuses to start without a market-data API key)
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	// 3. Metrics (injected everywhere, no globals)
	b.Metrics = infra.NewMetrics()

	// 4. Storage (optional: chat history and favorites survive restarts)
	store, err := storage.NewStorage(cfg.Storage.Path)
	if err != nil {
		slog.Warn("persistence disabled", slog.Any("error", err))
	} else {
		b.Storage = store
		slog.Info("database initialized")
	}

	// 5. Market-data provider and symbol catalog
	b.Provider = cmc.NewClient(cfg)
	b.Catalog = catalog.New(b.Provider, cfg.API.CMC.ListingLimit, logger)

	// 6. Icon fetcher (optional)
	icons, err := infra.NewIconFetcher()
	if err != nil {
		slog.Warn("icon cache disabled", slog.Any("error", err))
	} else {
		b.Icons = icons
	}

	return nil
}

// StartScheduler runs the initial catalog refresh in the background and
// registers the recurring cron refresh. Icon sync piggybacks on every
// refresh.
func (b *Bootstrap) StartScheduler(ctx context.Context) error {
	refresh := func() {
		refreshCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		symbols := b.Catalog.Refresh(refreshCtx)
		b.syncSymbolMeta(ctx, symbols)
	}

	go refresh()

	b.cron = cron.New()
	if _, err := b.cron.AddFunc(b.Config.Catalog.RefreshCron, refresh); err != nil {
		return &domain.ConfigError{Field: "catalog.refresh_cron", Err: err}
	}
	b.cron.Start()
	slog.Info("catalog refresh scheduled", slog.String("cron", b.Config.Catalog.RefreshCron))
	return nil
}

// StopScheduler stops the cron runner and waits for an in-flight job.
func (b *Bootstrap) StopScheduler() {
	if b.cron != nil {
		<-b.cron.Stop().Done()
	}
}

// syncSymbolMeta upserts per-symbol metadata and downloads missing icons in
// the background, bounded by a small worker pool.
func (b *Bootstrap) syncSymbolMeta(ctx context.Context, symbols []domain.Symbol) {
	if b.Storage == nil && b.Icons == nil {
		return
	}

	uniqueBases := make(map[string]string) // base -> display name
	for _, s := range symbols {
		if _, ok := uniqueBases[s.Base()]; !ok {
			uniqueBases[s.Base()] = s.Name
		}
	}

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, 5) // Limit concurrent downloads

	for base, name := range uniqueBases {
		wg.Add(1)
		go func(base, name string) {
			defer wg.Done()
			select {
			case <-ctx.Done():
				return
			case semaphore <- struct{}{}: // Acquire
			}
			defer func() { <-semaphore }() // Release

			meta := &domain.SymbolMeta{
				Base: base,
				Name: name,
			}
			if b.Storage != nil {
				// Preserve user state on resync
				if existing, _ := b.Storage.GetSymbolMeta(base); existing != nil {
					meta.IsFavorite = existing.IsFavorite
					meta.IconPath = existing.IconPath
					meta.LastSyncedAt = existing.LastSyncedAt
				}
				if err := b.Storage.UpsertSymbolMeta(meta); err != nil {
					slog.Error("failed to upsert symbol meta",
						slog.String("base", base), slog.Any("error", err))
				}
			}

			if b.Icons == nil || meta.IconPath != "" {
				return
			}
			path, err := b.Icons.Fetch(base)
			if err != nil {
				slog.Debug("icon download failed",
					slog.String("base", base), slog.Any("error", err))
				return
			}
			if b.Storage != nil && path != "" {
				meta.IconPath = path
				meta.LastSyncedAt = time.Now()
				_ = b.Storage.UpsertSymbolMeta(meta)
			}
		}(base, name)
	}

	wg.Wait()
	slog.Info("symbol metadata sync completed", slog.Int("symbols", len(uniqueBases)))
}
