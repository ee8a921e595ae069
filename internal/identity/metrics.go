package identity

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Resolution outcomes.
const (
	OutcomeIdentity  = "id"
	OutcomeCanonical = "canonical"
	OutcomeAlias     = "alias"
	OutcomeCreated   = "created"
	OutcomeExisting  = "existing"
	OutcomeNone      = "none"
)

var (
	// personResolutions counts resolved person references by how they matched.
	personResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kinstory_person_resolutions_total",
		Help: "Person references resolved, by outcome",
	}, []string{"outcome"})

	locationResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kinstory_location_resolutions_total",
		Help: "Location references resolved, by outcome",
	}, []string{"outcome"})

	familyTreeBuild = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kinstory_family_tree_build_seconds",
		Help:    "Time spent assembling a family tree from loaded records",
		Buckets: prometheus.ExponentialBuckets(0.00005, 2, 12),
	})

	// extractionMentions counts extracted mentions by label before filtering.
	extractionMentions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kinstory_extraction_mentions_total",
		Help: "Mentions returned by entity extraction, by label",
	}, []string{"label"})
)
