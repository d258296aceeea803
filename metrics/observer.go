package metrics

import (
	"ocpinode/internal"
	"ocpinode/metrics/counters"
)

// Observer translates node events into prometheus counters
type Observer struct{}

func NewObserver() *Observer {
	return &Observer{}
}

func (o *Observer) OnSyncApplied(event *internal.EventMessage) {
	counters.CountSyncApplied(event.PartyId, event.Entity)
}

func (o *Observer) OnSyncRejected(event *internal.EventMessage) {
	counters.CountSyncRejected(event.PartyId, event.Entity)
}

func (o *Observer) OnCommandUpdate(event *internal.EventMessage) {
	counters.CountCommand(event.PartyId, event.Status)
}

func (o *Observer) OnNegotiation(event *internal.EventMessage) {
	counters.CountNegotiation(event.PartyId, event.Status)
}

func (o *Observer) OnPartyStatus(_ *internal.EventMessage) {
}
