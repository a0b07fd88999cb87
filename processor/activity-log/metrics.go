package activitylog

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var activitiesRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "hypha_activity_entries_total",
	Help: "Number of activity feed entries recorded, by verb.",
}, []string{"verb"})
