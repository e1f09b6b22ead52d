package currency

import (
	"github.com/rs/zerolog"
)

// Valuer resolves the chaos value of a named currency by exploring the
// exchange graph: direct edges, one-hop paths, and a fallback inverse edge.
//
// Edge weight is the total time-decayed sample weight of a bucket and is
// treated as a liquidity proxy. A path's score is the weight of its
// bottleneck edge (min across the path); depth is capped at two hops to
// bound cost and noise.
type Valuer struct {
	summaries *SummaryRepository
	log       zerolog.Logger
}

// NewValuer creates a valuation engine over the summary repository.
func NewValuer(summaries *SummaryRepository, log zerolog.Logger) *Valuer {
	return &Valuer{
		summaries: summaries,
		log:       log.With().Str("component", "valuer").Logger(),
	}
}

// FindValueOf returns the chaos-denominated value of price units of the
// named currency in a league, or nil when the graph has no usable path.
func (v *Valuer) FindValueOf(name, league string, price float64) (*float64, error) {
	// A chaos orb is always worth one chaos orb.
	if name == ChaosOrb {
		return &price, nil
	}

	edges, err := v.summaries.ListByFromLeague(name, league)
	if err != nil {
		return nil, err
	}

	var highScore, conversion *float64
	for i := range edges {
		edge := &edges[i]

		if edge.ToCurrency == ChaosOrb {
			// Rows arrive weight-descending, so no better direct edge can
			// follow; take it unless an earlier two-hop path outweighs it.
			if highScore == nil || edge.Weight >= *highScore {
				v.log.Debug().
					Str("from", name).
					Float64("mean", edge.Mean).
					Msg("Direct chaos conversion")
				highScore = &edge.Weight
				conversion = &edge.Mean
			}
			break
		}

		if highScore != nil && edge.Weight <= *highScore {
			// min(edge, second hop) can never beat the incumbent.
			continue
		}

		second, err := v.summaries.Get(edge.ToCurrency, ChaosOrb, league)
		if err != nil {
			return nil, err
		}
		if second == nil {
			continue
		}

		score := edge.Weight
		if second.Weight < score {
			score = second.Weight
		}
		if highScore == nil || score > *highScore {
			product := edge.Mean * second.Mean
			highScore = &score
			conversion = &product
			v.log.Debug().
				Str("from", name).
				Str("via", edge.ToCurrency).
				Float64("conversion", product).
				Msg("Two-hop chaos conversion")
		}
	}

	if highScore != nil {
		value := *conversion * price
		return &value, nil
	}

	// Fallback: an inverse chaos->name edge. Demand-side and less reliable,
	// but better than nothing.
	inverse, err := v.summaries.Get(ChaosOrb, name, league)
	if err != nil {
		return nil, err
	}
	if inverse != nil && inverse.Mean != 0 {
		value := (1.0 / inverse.Mean) * price
		return &value, nil
	}

	return nil, nil
}
