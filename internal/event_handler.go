package internal

import "time"

type EventHandler interface {
	OnSyncApplied(event *EventMessage)
	OnSyncRejected(event *EventMessage)
	OnCommandUpdate(event *EventMessage)
	OnNegotiation(event *EventMessage)
	OnPartyStatus(event *EventMessage)
}

type EventMessage struct {
	Type        string      `json:"type" bson:"type"`
	PartyId     string      `json:"party_id" bson:"party_id"`
	CountryCode string      `json:"country_code" bson:"country_code"`
	Entity      string      `json:"entity" bson:"entity"`
	Key         string      `json:"key" bson:"key"`
	Time        time.Time   `json:"time" bson:"time"`
	Status      string      `json:"status" bson:"status"`
	Info        string      `json:"info" bson:"info"`
	Payload     interface{} `json:"payload" bson:"payload"`
}
