package entity

import "ocpinode/utility"

// Cdr is the OCPI charge detail record, reduced to the fields this node
// validates. CDRs are append-only by protocol convention.
type Cdr struct {
	CountryCode string  `json:"country_code" bson:"country_code" validate:"required,len=2"`
	PartyId     string  `json:"party_id" bson:"party_id" validate:"required,len=3"`
	Id          string  `json:"id" bson:"id" validate:"required,max=39"`
	StartDate   string  `json:"start_date_time" bson:"start_date_time" validate:"required"`
	EndDate     string  `json:"end_date_time" bson:"end_date_time" validate:"required"`
	SessionId   string  `json:"session_id,omitempty" bson:"session_id,omitempty" validate:"omitempty,max=36"`
	CdrToken    *Token  `json:"cdr_token,omitempty" bson:"cdr_token,omitempty" validate:"omitempty"`
	AuthMethod  string  `json:"auth_method" bson:"auth_method" validate:"required"`
	Currency    string  `json:"currency" bson:"currency" validate:"required,len=3"`
	TotalCost   float64 `json:"total_cost" bson:"total_cost"`
	TotalEnergy float64 `json:"total_energy" bson:"total_energy"`
	TotalTime   float64 `json:"total_time" bson:"total_time"`
	LastUpdated string  `json:"last_updated" bson:"last_updated" validate:"required"`
}

func (c *Cdr) Validate() error {
	if c.Id == "" {
		return utility.Err("cdr id is required")
	}
	if c.CountryCode == "" || c.PartyId == "" {
		return utility.Err("cdr country_code and party_id are required")
	}
	return nil
}
