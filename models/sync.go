package models

import (
	"encoding/json"
	"time"
)

type EntityType string

const (
	EntityLocation EntityType = "locations"
	EntitySession  EntityType = "sessions"
	EntityCdr      EntityType = "cdrs"
	EntityTariff   EntityType = "tariffs"
	EntityToken    EntityType = "tokens"
)

// SyncObject is a synchronized entity together with its federation metadata.
// Payload is the canonical JSON form; ETag is derived from it and LastUpdated
// only moves forward unless a downgrade is explicitly allowed.
type SyncObject struct {
	Type        EntityType      `json:"type" bson:"type"`
	CountryCode string          `json:"country_code" bson:"country_code"`
	PartyId     string          `json:"party_id" bson:"party_id"`
	Key         string          `json:"key" bson:"key"`
	Payload     json.RawMessage `json:"payload" bson:"payload"`
	LastUpdated time.Time       `json:"last_updated" bson:"last_updated"`
	ETag        string          `json:"etag" bson:"etag"`
}

func (o *SyncObject) DataType() string {
	return "syncObject"
}

// Clone returns a copy safe to hand to callers while the stored
// record keeps changing under its partition lock.
func (o *SyncObject) Clone() *SyncObject {
	c := *o
	c.Payload = make(json.RawMessage, len(o.Payload))
	copy(c.Payload, o.Payload)
	return &c
}
