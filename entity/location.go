package entity

import (
	"ocpinode/entity/common"
	"ocpinode/utility"
)

// Location is the OCPI location object, reduced to the fields this node
// validates before accepting a synchronized write. Unknown fields pass
// through untouched in the stored payload.
type Location struct {
	CountryCode string            `json:"country_code" bson:"country_code" validate:"required,len=2"`
	PartyId     string            `json:"party_id" bson:"party_id" validate:"required,len=3"`
	Id          string            `json:"id" bson:"id" validate:"required,max=36"`
	Publish     bool              `json:"publish" bson:"publish"`
	Name        string            `json:"name,omitempty" bson:"name,omitempty" validate:"omitempty,max=255"`
	Address     string            `json:"address" bson:"address" validate:"required,max=45"`
	City        string            `json:"city" bson:"city" validate:"required,max=45"`
	PostalCode  string            `json:"postal_code,omitempty" bson:"postal_code,omitempty" validate:"omitempty,max=10"`
	Country     string            `json:"country" bson:"country" validate:"required,len=3"`
	Coordinates GeoLocation       `json:"coordinates" bson:"coordinates" validate:"required"`
	Evses       []*Evse           `json:"evses,omitempty" bson:"evses,omitempty" validate:"omitempty,dive"`
	TimeZone    string            `json:"time_zone" bson:"time_zone" validate:"required,max=255"`
	EnergyMix   *common.EnergyMix `json:"energy_mix,omitempty" bson:"energy_mix,omitempty" validate:"omitempty"`
	LastUpdated string            `json:"last_updated" bson:"last_updated" validate:"required"`
}

type GeoLocation struct {
	Latitude  string `json:"latitude" bson:"latitude" validate:"required,max=10"`
	Longitude string `json:"longitude" bson:"longitude" validate:"required,max=11"`
}

type Evse struct {
	Uid         string       `json:"uid" bson:"uid" validate:"required,max=36"`
	EvseId      string       `json:"evse_id,omitempty" bson:"evse_id,omitempty" validate:"omitempty,max=48"`
	Status      string       `json:"status" bson:"status" validate:"required"`
	Connectors  []*Connector `json:"connectors,omitempty" bson:"connectors,omitempty" validate:"omitempty,dive"`
	Coordinates *GeoLocation `json:"coordinates,omitempty" bson:"coordinates,omitempty" validate:"omitempty"`
	LastUpdated string       `json:"last_updated" bson:"last_updated" validate:"required"`
}

type Connector struct {
	Id          string   `json:"id" bson:"id" validate:"required,max=36"`
	Standard    string   `json:"standard" bson:"standard" validate:"required"`
	Format      string   `json:"format" bson:"format" validate:"required,oneof=SOCKET CABLE"`
	PowerType   string   `json:"power_type" bson:"power_type" validate:"required"`
	MaxVoltage  int      `json:"max_voltage" bson:"max_voltage" validate:"required"`
	MaxAmperage int      `json:"max_amperage" bson:"max_amperage" validate:"required"`
	TariffIds   []string `json:"tariff_ids,omitempty" bson:"tariff_ids,omitempty" validate:"omitempty"`
	LastUpdated string   `json:"last_updated" bson:"last_updated" validate:"required"`
}

func (l *Location) Validate() error {
	if l.Id == "" {
		return utility.Err("location id is required")
	}
	if l.CountryCode == "" || l.PartyId == "" {
		return utility.Err("location country_code and party_id are required")
	}
	return nil
}

func (e *Evse) Validate() error {
	if e.Uid == "" {
		return utility.Err("evse uid is required")
	}
	return nil
}

func (c *Connector) Validate() error {
	if c.Id == "" {
		return utility.Err("connector id is required")
	}
	return nil
}
