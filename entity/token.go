package entity

import "ocpinode/utility"

// Token is the OCPI end-user charging token (RFID card, app credential),
// not to be confused with the bearer tokens of the access registry.
type Token struct {
	CountryCode  string `json:"country_code" bson:"country_code" validate:"required,len=2"`
	PartyId      string `json:"party_id" bson:"party_id" validate:"required,len=3"`
	Uid          string `json:"uid" bson:"uid" validate:"required,max=36"`
	Type         string `json:"type" bson:"type" validate:"required,oneof=AD_HOC_USER APP_USER OTHER RFID"`
	ContractId   string `json:"contract_id" bson:"contract_id" validate:"required,max=36"`
	VisualNumber string `json:"visual_number,omitempty" bson:"visual_number,omitempty" validate:"omitempty,max=64"`
	Issuer       string `json:"issuer" bson:"issuer" validate:"required,max=64"`
	Valid        bool   `json:"valid" bson:"valid"`
	Whitelist    string `json:"whitelist" bson:"whitelist" validate:"required,oneof=ALWAYS ALLOWED ALLOWED_OFFLINE NEVER"`
	LastUpdated  string `json:"last_updated" bson:"last_updated" validate:"required"`
}

func (t *Token) Validate() error {
	if t.Uid == "" {
		return utility.Err("token uid is required")
	}
	if t.CountryCode == "" || t.PartyId == "" {
		return utility.Err("token country_code and party_id are required")
	}
	return nil
}
