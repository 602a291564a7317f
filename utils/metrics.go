package utils

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Tracking events accepted by the anonymous endpoints
	TrackingEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phishdrill_tracking_events_total",
			Help: "Tracking events recorded, by event type and whether it changed state",
		},
		[]string{"event", "outcome"}, // outcome: first, repeat, invalid_token
	)

	// Campaign lifecycle operations
	CampaignOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phishdrill_campaign_operations_total",
			Help: "Campaign lifecycle operations, by operation and result",
		},
		[]string{"operation", "result"},
	)

	// Quiz submissions
	QuizSubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phishdrill_quiz_submissions_total",
			Help: "Quiz submissions, by pass or fail",
		},
		[]string{"result"},
	)
)

// RecordTrackingEvent counts a tracking call
func RecordTrackingEvent(event, outcome string) {
	TrackingEventsTotal.WithLabelValues(event, outcome).Inc()
}

// RecordCampaignOperation counts a lifecycle operation
func RecordCampaignOperation(operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	CampaignOperationsTotal.WithLabelValues(operation, result).Inc()
}

// RecordQuizSubmission counts a scored quiz attempt
func RecordQuizSubmission(passed bool) {
	result := "fail"
	if passed {
		result = "pass"
	}
	QuizSubmissionsTotal.WithLabelValues(result).Inc()
}
