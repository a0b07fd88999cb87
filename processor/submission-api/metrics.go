package submissionapi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Transition outcomes are labelled by their error kind so dashboards
// can separate user errors (forbidden, stale) from config faults.
var (
	submissionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hypha_submissions_created_total",
		Help: "Number of submissions created.",
	})

	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hypha_transitions_total",
		Help: "Number of transition attempts by workflow, action, and result.",
	}, []string{"workflow", "action", "result"})

	reviewsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hypha_reviews_submitted_total",
		Help: "Number of reviews filed.",
	})

	determinationsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hypha_determinations_submitted_total",
		Help: "Number of non-draft determinations by outcome.",
	}, []string{"outcome"})
)

const (
	resultOK        = "ok"
	resultForbidden = "forbidden"
	resultNoAction  = "no_such_transition"
	resultStale     = "stale_state"
	resultError     = "error"
)
