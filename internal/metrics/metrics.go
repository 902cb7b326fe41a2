package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// #region counters

var (
	Reevaluations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recoupement_reevaluations_total",
			Help: "Reevaluation pipeline runs by outcome",
		},
		[]string{"outcome"},
	)

	GuardRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recoupement_guard_rejections_total",
			Help: "Collection-request guard rejections by reason",
		},
		[]string{"reason"},
	)

	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recoupement_cache_hits_total",
			Help: "Cache hits by key prefix",
		},
		[]string{"prefix"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recoupement_cache_misses_total",
			Help: "Cache misses by key prefix",
		},
		[]string{"prefix"},
	)

	ThreatsRescored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recoupement_threats_rescored_total",
			Help: "Threats rescored by cluster growth",
		},
	)
)

// #endregion counters
