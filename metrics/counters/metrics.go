package counters

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var syncAppliedCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ocpi",
	Name:      "sync_applied_count",
	Help:      "Total number of accepted object writes.",
}, []string{"party_id", "entity"})

var syncRejectedCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ocpi",
	Name:      "sync_rejected_count",
	Help:      "Total number of rejected object writes.",
}, []string{"party_id", "entity"})

func CountSyncApplied(partyId, entity string) {
	if len(partyId) == 0 || len(entity) == 0 {
		return
	}
	syncAppliedCounter.With(prometheus.Labels{"party_id": partyId, "entity": entity}).Inc()
}

func CountSyncRejected(partyId, entity string) {
	if len(partyId) == 0 || len(entity) == 0 {
		return
	}
	syncRejectedCounter.With(prometheus.Labels{"party_id": partyId, "entity": entity}).Inc()
}

var commandCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ocpi",
	Name:      "command_count",
	Help:      "Total number of command state transitions.",
}, []string{"party_id", "state"})

var commandsPendingGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "ocpi",
	Name:      "commands_pending",
	Help:      "Number of tracked commands.",
})

func CountCommand(partyId, state string) {
	if len(partyId) == 0 || len(state) == 0 {
		return
	}
	commandCounter.With(prometheus.Labels{"party_id": partyId, "state": state}).Inc()
}

func ObservePendingCommands(count int) {
	commandsPendingGauge.Set(float64(count))
}

var negotiationCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ocpi",
	Name:      "negotiation_count",
	Help:      "Total number of version negotiations by outcome.",
}, []string{"party_id", "status"})

func CountNegotiation(partyId, status string) {
	if len(partyId) == 0 || len(status) == 0 {
		return
	}
	negotiationCounter.With(prometheus.Labels{"party_id": partyId, "status": status}).Inc()
}

var authFailureCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ocpi",
	Name:      "auth_failure_count",
	Help:      "Total number of rejected requests by reason.",
}, []string{"reason"})

func CountAuthFailure(reason string) {
	if len(reason) == 0 {
		return
	}
	authFailureCounter.With(prometheus.Labels{"reason": reason}).Inc()
}
