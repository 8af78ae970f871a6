package scanner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"confluence-engine/internal/cache"
	"confluence-engine/internal/database"
	"confluence-engine/internal/engine"
	"confluence-engine/internal/events"
	"confluence-engine/internal/logging"
	"confluence-engine/internal/marketdata"
	"confluence-engine/internal/plans"
	"confluence-engine/internal/series"
)

// Config holds the scan loop settings
type Config struct {
	Enabled      bool
	Symbols      []string
	Timeframe    string
	CandleLimit  int
	ScanInterval time.Duration
	WorkerCount  int
	ScanTimeout  time.Duration
}

// Scanner orchestrates engine analysis across multiple symbols
type Scanner struct {
	fetcher marketdata.Fetcher
	eng     *engine.Engine
	account engine.Account
	cache   *cache.Service
	repo    *database.Repository
	tracker *plans.Tracker
	bus     *events.EventBus
	config  Config
	logger  *logging.Logger

	stopChan chan struct{}
	wg       sync.WaitGroup

	mu        sync.RWMutex
	snapshots map[string]*engine.Snapshot
	lastScan  time.Time
}

// NewScanner creates a new scanner instance. Cache, repository and
// tracker may be nil; the scan loop degrades to in-memory results.
func NewScanner(
	fetcher marketdata.Fetcher,
	eng *engine.Engine,
	account engine.Account,
	cacheService *cache.Service,
	repo *database.Repository,
	tracker *plans.Tracker,
	bus *events.EventBus,
	config Config,
) *Scanner {
	if config.WorkerCount <= 0 {
		config.WorkerCount = 4
	}
	if config.ScanInterval <= 0 {
		config.ScanInterval = time.Minute
	}
	if config.ScanTimeout <= 0 {
		config.ScanTimeout = 2 * time.Minute
	}
	if config.CandleLimit <= 0 {
		config.CandleLimit = 200
	}
	return &Scanner{
		fetcher:   fetcher,
		eng:       eng,
		account:   account,
		cache:     cacheService,
		repo:      repo,
		tracker:   tracker,
		bus:       bus,
		config:    config,
		logger:    logging.WithComponent("Scanner"),
		stopChan:  make(chan struct{}),
		snapshots: make(map[string]*engine.Snapshot),
	}
}

// Start begins the background scan loop
func (sc *Scanner) Start() {
	if !sc.config.Enabled {
		sc.logger.Info("scanner is disabled")
		return
	}

	sc.wg.Add(1)
	go sc.runScanLoop()
	sc.logger.Info("scanner started",
		"symbols", len(sc.config.Symbols),
		"interval", sc.config.ScanInterval.String(),
		"workers", sc.config.WorkerCount)
}

// Stop terminates the scan loop and waits for in-flight work
func (sc *Scanner) Stop() {
	close(sc.stopChan)
	sc.wg.Wait()
}

// runScanLoop executes scans at configured intervals
func (sc *Scanner) runScanLoop() {
	defer sc.wg.Done()

	ticker := time.NewTicker(sc.config.ScanInterval)
	defer ticker.Stop()

	// Run immediately
	sc.scan()

	for {
		select {
		case <-ticker.C:
			sc.scan()
		case <-sc.stopChan:
			sc.logger.Info("scanner stopped")
			return
		}
	}
}

// Scan executes a single scan cycle (public method for manual triggering)
func (sc *Scanner) Scan() {
	sc.scan()
}

// Snapshot returns the latest snapshot for a symbol, if any
func (sc *Scanner) Snapshot(symbol string) (*engine.Snapshot, bool) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	snap, ok := sc.snapshots[symbol]
	return snap, ok
}

// Snapshots returns the latest snapshot per symbol
func (sc *Scanner) Snapshots() map[string]*engine.Snapshot {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	out := make(map[string]*engine.Snapshot, len(sc.snapshots))
	for sym, snap := range sc.snapshots {
		out[sym] = snap
	}
	return out
}

// LastScan returns when the last scan cycle completed
func (sc *Scanner) LastScan() time.Time {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.lastScan
}

// scan executes a single scan cycle
func (sc *Scanner) scan() {
	ctx, cancel := context.WithTimeout(context.Background(), sc.config.ScanTimeout)
	defer cancel()

	startTime := time.Now()
	scanID := fmt.Sprintf("scan-%d", startTime.Unix())

	sc.logger.Info("starting scan", "scan_id", scanID)
	sc.publish(events.EventScanStarted, map[string]interface{}{
		"scanId":  scanID,
		"symbols": len(sc.config.Symbols),
	})

	symbolChan := make(chan string, len(sc.config.Symbols))
	var wg sync.WaitGroup

	for i := 0; i < sc.config.WorkerCount; i++ {
		wg.Add(1)
		go sc.worker(ctx, symbolChan, &wg)
	}

	for _, symbol := range sc.config.Symbols {
		symbolChan <- symbol
	}
	close(symbolChan)
	wg.Wait()

	sc.mu.Lock()
	sc.lastScan = time.Now()
	sc.mu.Unlock()

	sc.logger.Info("scan completed",
		"scan_id", scanID,
		"duration_ms", time.Since(startTime).Milliseconds())
	sc.publish(events.EventScanCompleted, map[string]interface{}{
		"scanId":     scanID,
		"durationMs": time.Since(startTime).Milliseconds(),
	})
}

// worker processes symbols from the channel until it closes
func (sc *Scanner) worker(ctx context.Context, symbols <-chan string, wg *sync.WaitGroup) {
	defer wg.Done()

	for symbol := range symbols {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if err := sc.scanSymbol(ctx, symbol); err != nil {
			sc.logger.Error("symbol scan failed", "symbol", symbol, "error", err.Error())
			sc.publish(events.EventError, map[string]interface{}{
				"symbol": symbol,
				"error":  err.Error(),
			})
		}
	}
}

// scanSymbol fetches candles, runs the engine and distributes results
func (sc *Scanner) scanSymbol(ctx context.Context, symbol string) error {
	s, err := sc.fetchSeries(ctx, symbol)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", symbol, err)
	}

	snap := sc.eng.Analyze(s, sc.account)

	sc.mu.Lock()
	sc.snapshots[symbol] = snap
	sc.mu.Unlock()

	if sc.cache != nil {
		if err := sc.cache.SetSnapshot(ctx, snap, 0); err != nil {
			sc.logger.Warn("snapshot cache write failed", "symbol", symbol, "error", err.Error())
		}
	}
	if sc.repo != nil {
		if err := sc.repo.SaveSnapshot(ctx, snap); err != nil {
			sc.logger.Warn("snapshot persist failed", "symbol", symbol, "error", err.Error())
		}
	}

	sc.publish(events.EventZonesUpdated, map[string]interface{}{
		"symbol":          symbol,
		"confluenceZones": len(snap.ConfluenceZones),
		"activeZones":     len(snap.ActiveZones),
		"trend":           string(snap.Trend),
	})

	sc.handlePlans(ctx, symbol, snap)
	return nil
}

// fetchSeries prefers the cache and falls back to the fetcher
func (sc *Scanner) fetchSeries(ctx context.Context, symbol string) (*series.CandleSeries, error) {
	if sc.cache != nil {
		if cached, err := sc.cache.GetSeries(ctx, symbol, sc.config.Timeframe); err == nil && cached != nil {
			return cached, nil
		}
	}

	s, err := sc.fetcher.Fetch(ctx, symbol, sc.config.Timeframe, sc.config.CandleLimit)
	if err != nil {
		return nil, err
	}

	if sc.cache != nil {
		if err := sc.cache.SetSeries(ctx, s, 0); err != nil {
			sc.logger.Warn("series cache write failed", "symbol", symbol, "error", err.Error())
		}
	}
	return s, nil
}

// handlePlans pushes new plans into the tracker and advances existing
// ones against the latest price
func (sc *Scanner) handlePlans(ctx context.Context, symbol string, snap *engine.Snapshot) {
	if sc.tracker == nil {
		return
	}

	for _, plan := range snap.Plans {
		if err := sc.tracker.Track(ctx, plan); err != nil {
			sc.logger.Warn("plan persist failed", "plan_id", plan.ID, "error", err.Error())
		}
		sc.publish(events.EventPlanCreated, map[string]interface{}{
			"planId":    plan.ID,
			"symbol":    symbol,
			"direction": string(plan.Direction),
			"entry":     plan.Entry,
		})
	}

	for _, update := range sc.tracker.UpdatePrice(ctx, symbol, snap.LastPrice) {
		if update.Status == plans.StatusActive {
			continue
		}
		sc.publish(events.EventPlanClosed, map[string]interface{}{
			"planId": update.PlanID,
			"symbol": update.Symbol,
			"status": update.Status,
		})
	}
}

func (sc *Scanner) publish(eventType events.EventType, data map[string]interface{}) {
	if sc.bus == nil {
		return
	}
	sc.bus.Publish(eventType, data)
}
