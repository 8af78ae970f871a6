package engine

import (
	"time"

	"confluence-engine/internal/confluence"
	"confluence-engine/internal/profile"
	"confluence-engine/internal/risk"
	"confluence-engine/internal/series"
	"confluence-engine/internal/structure"
	"confluence-engine/internal/zones"
)

// Signal weights applied when levels are handed to the aggregator
const (
	weightPOC     = 2.0
	weightHVN     = 1.5
	weightDefault = 1.0
)

// Config holds the full engine parameter set. The engine is pure: it
// never mutates its configuration, so the calibration collaborator can
// feed tuned values per invocation.
type Config struct {
	OrderBlock    zones.OrderBlockConfig
	FVG           zones.FVGConfig
	Structure     structure.Config
	Profile       profile.Config
	TolerancePct  float64 // confluence clustering tolerance, percent
	MinSignals    int     // distinct signal sources required per confluence zone
	ProfileWindow int     // trailing candles fed to the profile calculators
	ATRPeriod     int
	MaxPlans      int // trade plans derived per snapshot
	Risk          risk.Config
}

// DefaultConfig returns the standard engine parameters
func DefaultConfig() Config {
	return Config{
		OrderBlock:    zones.DefaultOrderBlockConfig(),
		FVG:           zones.DefaultFVGConfig(),
		Structure:     structure.DefaultConfig(),
		Profile:       profile.DefaultConfig(),
		TolerancePct:  0.5,
		MinSignals:    2,
		ProfileWindow: 50,
		ATRPeriod:     14,
		MaxPlans:      3,
		Risk:          risk.DefaultConfig(),
	}
}

// Account is the externally supplied account state used for sizing
type Account struct {
	Balance float64 `json:"balance"`
	RiskPct float64 `json:"riskPct"`
}

// Snapshot is the read-only result of one analysis pass, serializable
// as a plain record for the presentation collaborators
type Snapshot struct {
	Symbol          string                      `json:"symbol"`
	Timeframe       string                      `json:"timeframe"`
	GeneratedAt     time.Time                   `json:"generatedAt"`
	CandleCount     int                         `json:"candleCount"`
	LastPrice       float64                     `json:"lastPrice"`
	Trend           structure.Trend             `json:"trend"`
	ActiveZones     []zones.Zone                `json:"activeZones,omitempty"`
	ConfluenceZones []confluence.ConfluenceZone `json:"confluenceZones,omitempty"`
	VolumeProfile   *profile.Profile            `json:"volumeProfile,omitempty"`
	MarketProfile   *profile.Profile            `json:"marketProfile,omitempty"`
	Plans           []*risk.TradePlan           `json:"plans,omitempty"`
}

// Engine runs the full per-symbol pipeline: detectors, structure,
// profiles, confluence aggregation and trade planning. Stateless
// across invocations; one engine may serve many goroutines as long as
// each call owns its series.
type Engine struct {
	cfg        Config
	orderBlock *zones.OrderBlockDetector
	fvg        *zones.FVGDetector
	structure  *structure.Analyzer
	volumeProf *profile.VolumeProfileCalculator
	marketProf *profile.MarketProfileCalculator
	aggregator *confluence.Aggregator
	risk       *risk.Manager
}

// New creates an engine from the given configuration
func New(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.TolerancePct <= 0 {
		cfg.TolerancePct = def.TolerancePct
	}
	if cfg.MinSignals <= 0 {
		cfg.MinSignals = def.MinSignals
	}
	if cfg.ProfileWindow <= 0 {
		cfg.ProfileWindow = def.ProfileWindow
	}
	if cfg.ATRPeriod <= 0 {
		cfg.ATRPeriod = def.ATRPeriod
	}
	if cfg.MaxPlans <= 0 {
		cfg.MaxPlans = def.MaxPlans
	}

	return &Engine{
		cfg:        cfg,
		orderBlock: zones.NewOrderBlockDetector(cfg.OrderBlock),
		fvg:        zones.NewFVGDetector(cfg.FVG),
		structure:  structure.NewAnalyzer(cfg.Structure),
		volumeProf: profile.NewVolumeProfileCalculator(cfg.Profile),
		marketProf: profile.NewMarketProfileCalculator(cfg.Profile),
		aggregator: confluence.NewAggregator(cfg.TolerancePct),
		risk:       risk.NewManager(cfg.Risk),
	}
}

// Analyze runs one full pass over the series and returns the snapshot.
// Short or empty series produce a snapshot with empty sections, never
// an error.
func (e *Engine) Analyze(s *series.CandleSeries, account Account) *Snapshot {
	snap := &Snapshot{
		Symbol:      s.Symbol,
		Timeframe:   s.Timeframe,
		GeneratedAt: time.Now().UTC(),
		CandleCount: s.Len(),
		Trend:       structure.TrendRange,
	}

	last, ok := s.Last()
	if !ok {
		return snap
	}
	snap.LastPrice = last.Close
	lastIndex := s.Len() - 1

	allZones := append(e.orderBlock.Detect(s), e.fvg.Detect(s)...)
	active := zones.Active(allZones, lastIndex)
	snap.ActiveZones = active

	states := e.structure.Analyze(s)
	state := states[lastIndex]
	snap.Trend = state.Trend

	window := s.Window(e.cfg.ProfileWindow)
	snap.VolumeProfile = e.volumeProf.Compute(window)
	snap.MarketProfile = e.marketProf.Compute(window)

	levels := e.buildLevels(active, state, snap.VolumeProfile, snap.MarketProfile)
	snap.ConfluenceZones = e.aggregator.FindZones(levels, e.cfg.MinSignals)

	snap.Plans = e.planTrades(s, snap, active, account)
	return snap
}

// buildLevels flattens every signal source into weighted levels for
// clustering. POC carries double weight, high-volume nodes 1.5x,
// everything else 1.0x, scaled by detector-reported strength where the
// detector provides one.
func (e *Engine) buildLevels(active []zones.Zone, state structure.State, vp, mp *profile.Profile) []confluence.WeightedLevel {
	var levels []confluence.WeightedLevel

	for _, z := range active {
		tag := confluence.TagOrderBlock
		if z.Kind == zones.KindFairValueGap {
			tag = confluence.TagFairValueGap
		}
		levels = append(levels, confluence.WeightedLevel{
			Price:    z.Band.Mid(),
			Band:     z.Band,
			Tag:      tag,
			Strength: weightDefault * z.Strength,
		})
	}

	// Profile calculators signal "no value" with nil; those signals
	// are skipped, never coerced to zero.
	if vp != nil {
		levels = append(levels,
			confluence.WeightedLevel{Price: vp.POC, Tag: confluence.TagVolumePOC, Strength: weightPOC},
			confluence.WeightedLevel{Price: vp.VAH, Tag: confluence.TagValueAreaHi, Strength: weightDefault},
			confluence.WeightedLevel{Price: vp.VAL, Tag: confluence.TagValueAreaLo, Strength: weightDefault},
		)
		for _, hvn := range vp.HighVolumeNodes {
			levels = append(levels, confluence.WeightedLevel{Price: hvn, Tag: confluence.TagHighVolNode, Strength: weightHVN})
		}
	}
	if mp != nil {
		levels = append(levels, confluence.WeightedLevel{Price: mp.POC, Tag: confluence.TagMarketPOC, Strength: weightPOC})
	}

	if state.LiquidityHigh != nil {
		levels = append(levels, confluence.WeightedLevel{Price: *state.LiquidityHigh, Tag: confluence.TagLiquidity, Strength: weightDefault})
	}
	if state.LiquidityLow != nil {
		levels = append(levels, confluence.WeightedLevel{Price: *state.LiquidityLow, Tag: confluence.TagLiquidity, Strength: weightDefault})
	}

	return levels
}

// planTrades converts the strongest confluence zones into trade plans.
// Direction follows the zone's position against the current price,
// filtered by structure trend; rejected plans are dropped silently.
func (e *Engine) planTrades(s *series.CandleSeries, snap *Snapshot, active []zones.Zone, account Account) []*risk.TradePlan {
	if account.Balance <= 0 || account.RiskPct <= 0 {
		return nil
	}

	atr := series.ATR(s.Candles, e.cfg.ATRPeriod)

	var plans []*risk.TradePlan
	for _, cz := range snap.ConfluenceZones {
		if len(plans) >= e.cfg.MaxPlans {
			break
		}

		var direction risk.Direction
		switch {
		case cz.Level < snap.LastPrice:
			direction = risk.Long
		case cz.Level > snap.LastPrice:
			direction = risk.Short
		default:
			continue
		}
		if snap.Trend == structure.TrendBullish && direction == risk.Short {
			continue
		}
		if snap.Trend == structure.TrendBearish && direction == risk.Long {
			continue
		}

		in := risk.PlanInput{
			Symbol:     s.Symbol,
			Direction:  direction,
			Entry:      cz.Level,
			Protective: protectiveBand(cz.Band, cz.Level, direction),
			Opposite:   oppositeBand(active, cz.Level, direction),
			NodeLevels: favorableNodes(snap.VolumeProfile, cz.Level, direction),
			GapLevels:  favorableGaps(active, cz.Level, direction),
			ATR:        atr,
			Balance:    account.Balance,
			RiskPct:    account.RiskPct,
		}

		plan, err := e.risk.PlanTrade(in)
		if err != nil {
			continue
		}
		plans = append(plans, plan)
	}

	return plans
}

// protectiveBand treats the confluence zone's own band as the
// protective region when it extends past the entry on the adverse side
func protectiveBand(band zones.Band, entry float64, direction risk.Direction) *zones.Band {
	if direction == risk.Long && band.Low < entry {
		return &band
	}
	if direction == risk.Short && band.High > entry {
		return &band
	}
	return nil
}

// oppositeBand finds the nearest active zone fully on the favorable
// side of the entry, used as the stretch target
func oppositeBand(active []zones.Zone, entry float64, direction risk.Direction) *zones.Band {
	var best *zones.Band
	for i := range active {
		b := active[i].Band
		if direction == risk.Long && b.Low > entry {
			if best == nil || b.Low < best.Low {
				best = &active[i].Band
			}
		}
		if direction == risk.Short && b.High < entry {
			if best == nil || b.High > best.High {
				best = &active[i].Band
			}
		}
	}
	return best
}

func favorableNodes(vp *profile.Profile, entry float64, direction risk.Direction) []float64 {
	if vp == nil {
		return nil
	}
	var out []float64
	for _, hvn := range vp.HighVolumeNodes {
		if direction == risk.Long && hvn > entry {
			out = append(out, hvn)
		}
		if direction == risk.Short && hvn < entry {
			out = append(out, hvn)
		}
	}
	return out
}

func favorableGaps(active []zones.Zone, entry float64, direction risk.Direction) []float64 {
	var out []float64
	for _, z := range active {
		if z.Kind != zones.KindFairValueGap {
			continue
		}
		mid := z.Band.Mid()
		if direction == risk.Long && mid > entry {
			out = append(out, mid)
		}
		if direction == risk.Short && mid < entry {
			out = append(out, mid)
		}
	}
	return out
}
