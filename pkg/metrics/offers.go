package metrics

import "github.com/prometheus/client_golang/prometheus"

// OfferMetrics tracks the route offer lifecycle across sweeps and claims.
type OfferMetrics struct {
	expired   prometheus.Counter
	reoffered prometheus.Counter
	exhausted prometheus.Counter
	claims    *prometheus.CounterVec
}

// NewOfferMetrics registers offer lifecycle metrics on the provided registerer.
func NewOfferMetrics(reg prometheus.Registerer) *OfferMetrics {
	if reg == nil {
		return &OfferMetrics{}
	}
	expired := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "route_offers_expired_total",
		Help: "Route offers that lapsed without a response.",
	})
	reoffered := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "route_offers_reoffered_total",
		Help: "Expired route offers re-sent to the next candidate worker.",
	})
	exhausted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "route_offers_exhausted_total",
		Help: "Routes with no remaining candidate workers after expiry.",
	})
	claims := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "route_offer_claims_total",
		Help: "Route offer claim attempts by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(expired, reoffered, exhausted, claims)
	return &OfferMetrics{
		expired:   expired,
		reoffered: reoffered,
		exhausted: exhausted,
		claims:    claims,
	}
}

// IncExpired counts an offer that lapsed.
func (o *OfferMetrics) IncExpired() {
	if o == nil || o.expired == nil {
		return
	}
	o.expired.Inc()
}

// IncReoffered counts an offer re-sent to another worker.
func (o *OfferMetrics) IncReoffered() {
	if o == nil || o.reoffered == nil {
		return
	}
	o.reoffered.Inc()
}

// IncExhausted counts a route that ran out of candidates.
func (o *OfferMetrics) IncExhausted() {
	if o == nil || o.exhausted == nil {
		return
	}
	o.exhausted.Inc()
}

// IncClaim counts a claim attempt with its outcome label.
func (o *OfferMetrics) IncClaim(outcome string) {
	if o == nil || o.claims == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	o.claims.WithLabelValues(outcome).Inc()
}
