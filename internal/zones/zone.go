package zones

import (
	"confluence-engine/internal/series"
)

// Kind represents the type of supply/demand zone
type Kind string

const (
	KindOrderBlock   Kind = "order_block"
	KindFairValueGap Kind = "fair_value_gap"
)

// Direction represents the directional bias of a zone
type Direction string

const (
	Bullish Direction = "bullish"
	Bearish Direction = "bearish"
)

// Band is a [Low, High] price band. Low == High is a single-price band.
type Band struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Mid returns the band midpoint
func (b Band) Mid() float64 {
	return (b.Low + b.High) / 2
}

// Contains reports whether price lies inside the band (inclusive)
func (b Band) Contains(price float64) bool {
	return price >= b.Low && price <= b.High
}

// Zone is a detected supply/demand region with an explicit validity
// interval. A zone is created at OriginIndex, becomes tradeable at
// ValidFrom and stays valid until price invalidates it or it ages out.
// Once ValidUntil is set it never reopens.
type Zone struct {
	Kind        Kind      `json:"kind"`
	Direction   Direction `json:"direction"`
	Band        Band      `json:"band"`
	OriginIndex int       `json:"originIndex"`
	ValidFrom   int       `json:"validFrom"`
	ValidUntil  *int      `json:"validUntil,omitempty"`
	Strength    float64   `json:"strength"`
}

// ActiveAt reports whether the zone is valid at the given candle index
func (z Zone) ActiveAt(index int) bool {
	if index < z.ValidFrom {
		return false
	}
	if z.ValidUntil != nil && index >= *z.ValidUntil {
		return false
	}
	return true
}

// Active filters zones down to the ones valid at the given index
func Active(zs []Zone, index int) []Zone {
	var out []Zone
	for _, z := range zs {
		if z.ActiveAt(index) {
			out = append(out, z)
		}
	}
	return out
}

// propagateValidity walks forward from the zone's ValidFrom index and
// fixes ValidUntil at the first candle that invalidates it or at the
// max-age cutoff, whichever comes first. invalidated decides whether a
// close kills the zone; the scan is a single forward pass.
func propagateValidity(z *Zone, candles []series.Candle, maxAge int, invalidated func(z *Zone, close float64) bool) {
	for i := z.ValidFrom; i < len(candles); i++ {
		if maxAge > 0 && i-z.OriginIndex > maxAge {
			until := i
			z.ValidUntil = &until
			return
		}
		if invalidated(z, candles[i].Close) {
			until := i
			z.ValidUntil = &until
			return
		}
	}
}
