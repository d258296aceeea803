package tariff

import (
	"ocpinode/entity/common"
	"ocpinode/utility"
)

type Tariff struct {
	CountryCode string              `json:"country_code" bson:"country_code" validate:"required,len=2"`
	PartyId     string              `json:"party_id" bson:"party_id" validate:"required,len=3"`
	Id          string              `json:"id" bson:"id" validate:"required,max=36"`
	Currency    string              `json:"currency" bson:"currency" validate:"required,len=3"`
	Type        string              `json:"type,omitempty" bson:"type,omitempty" validate:"omitempty,oneof=AD_HOC_PAYMENT PROFILE_CHEAP PROFILE_FAST PROFILE_GREEN REGULAR"`
	AltText     *common.DisplayText `json:"tariff_alt_text,omitempty" bson:"tariff_alt_text,omitempty" validate:"omitempty"`
	AltUrl      string              `json:"tariff_alt_url,omitempty" bson:"tariff_alt_url,omitempty" validate:"omitempty,url"`
	MinPrice    *Price              `json:"min_price,omitempty" bson:"min_price,omitempty" validate:"omitempty"`
	MaxPrice    *Price              `json:"max_price,omitempty" bson:"max_price,omitempty" validate:"omitempty"`
	Elements    []*Element          `json:"elements" bson:"elements" validate:"required,dive"`
	EnergyMix   *common.EnergyMix   `json:"energy_mix,omitempty" bson:"energy_mix,omitempty" validate:"omitempty"`
	StartDate   string              `json:"start_date_time,omitempty" bson:"start_date_time,omitempty" validate:"omitempty"`
	EndDate     string              `json:"end_date_time,omitempty" bson:"end_date_time,omitempty" validate:"omitempty"`
	LastUpdated string              `json:"last_updated" bson:"last_updated" validate:"required"`
}

type Price struct {
	ExclVat float64 `json:"excl_vat" bson:"excl_vat"`
	InclVat float64 `json:"incl_vat,omitempty" bson:"incl_vat,omitempty"`
}

type Element struct {
	PriceComponents []*PriceComponent `json:"price_components" bson:"price_components" validate:"required,dive"`
	Restrictions    *Restrictions     `json:"restrictions,omitempty" bson:"restrictions,omitempty" validate:"omitempty"`
}

func (t *Tariff) Validate() error {
	if t.Id == "" {
		return utility.Err("tariff id is required")
	}
	if t.CountryCode == "" || t.PartyId == "" {
		return utility.Err("tariff country_code and party_id are required")
	}
	if t.Currency == "" {
		return utility.Err("tariff currency is required")
	}
	return nil
}

func (t *Tariff) PricePerKwh() float64 {
	var total float64
	for _, element := range t.Elements {
		for _, priceComponent := range element.PriceComponents {
			if priceComponent.IsEnergy() {
				total += priceComponent.Price
			}
		}
	}
	return total
}
