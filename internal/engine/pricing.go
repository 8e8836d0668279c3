package engine

import "errors"

// DefaultRatePerKWh applies when no rate is configured.
const DefaultRatePerKWh = 0.2

// Pricing maps delivered energy to cost using a flat per-kWh rate. The rate
// is fixed at construction; there is no runtime tariff lookup.
type Pricing struct {
	ratePerKWh float64
}

// NewPricing builds the pricing policy. A zero rate falls back to the
// default; negative rates are rejected.
func NewPricing(ratePerKWh float64) (*Pricing, error) {
	if ratePerKWh < 0 {
		return nil, errors.New("pricing: rate per kWh must not be negative")
	}
	if ratePerKWh == 0 {
		ratePerKWh = DefaultRatePerKWh
	}
	return &Pricing{ratePerKWh: ratePerKWh}, nil
}

// RatePerKWh returns the configured rate.
func (p *Pricing) RatePerKWh() float64 {
	return p.ratePerKWh
}

// Cost returns the amount due for the given energy.
func (p *Pricing) Cost(energyKWh float64) float64 {
	return energyKWh * p.ratePerKWh
}
