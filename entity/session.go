package entity

import "ocpinode/utility"

// Session is the OCPI charging session object, reduced to the fields this
// node validates on a synchronized write.
type Session struct {
	CountryCode string  `json:"country_code" bson:"country_code" validate:"required,len=2"`
	PartyId     string  `json:"party_id" bson:"party_id" validate:"required,len=3"`
	Id          string  `json:"id" bson:"id" validate:"required,max=36"`
	StartDate   string  `json:"start_date_time" bson:"start_date_time" validate:"required"`
	EndDate     string  `json:"end_date_time,omitempty" bson:"end_date_time,omitempty" validate:"omitempty"`
	Kwh         float64 `json:"kwh" bson:"kwh"`
	CdrToken    *Token  `json:"cdr_token,omitempty" bson:"cdr_token,omitempty" validate:"omitempty"`
	AuthMethod  string  `json:"auth_method" bson:"auth_method" validate:"required"`
	LocationId  string  `json:"location_id" bson:"location_id" validate:"required,max=36"`
	EvseUid     string  `json:"evse_uid,omitempty" bson:"evse_uid,omitempty" validate:"omitempty,max=36"`
	ConnectorId string  `json:"connector_id,omitempty" bson:"connector_id,omitempty" validate:"omitempty,max=36"`
	Currency    string  `json:"currency" bson:"currency" validate:"required,len=3"`
	TotalCost   float64 `json:"total_cost,omitempty" bson:"total_cost,omitempty"`
	Status      string  `json:"status" bson:"status" validate:"required,oneof=ACTIVE COMPLETED INVALID PENDING RESERVATION"`
	LastUpdated string  `json:"last_updated" bson:"last_updated" validate:"required"`
}

func (s *Session) Validate() error {
	if s.Id == "" {
		return utility.Err("session id is required")
	}
	if s.CountryCode == "" || s.PartyId == "" {
		return utility.Err("session country_code and party_id are required")
	}
	return nil
}
