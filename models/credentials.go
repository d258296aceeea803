package models

// Credentials is the payload of the registration handshake: the token the
// sender wants the receiver to use, plus the identities it acts as.
type Credentials struct {
	Token string            `json:"token" bson:"token" validate:"required,max=64"`
	Url   string            `json:"url" bson:"url" validate:"required,url"`
	Roles []CredentialsRole `json:"roles" bson:"roles" validate:"required,dive"`
}

type CredentialsRole struct {
	Role            PartyRole        `json:"role" bson:"role" validate:"required"`
	PartyId         string           `json:"party_id" bson:"party_id" validate:"required,len=3"`
	CountryCode     string           `json:"country_code" bson:"country_code" validate:"required,len=2"`
	BusinessDetails *BusinessDetails `json:"business_details,omitempty" bson:"business_details,omitempty" validate:"omitempty"`
}

type BusinessDetails struct {
	Name    string `json:"name" bson:"name" validate:"required,max=100"`
	Website string `json:"website,omitempty" bson:"website,omitempty" validate:"omitempty,url"`
}

func (c *Credentials) Identities() []PartyIdentity {
	identities := make([]PartyIdentity, 0, len(c.Roles))
	for _, role := range c.Roles {
		identities = append(identities, PartyIdentity{
			CountryCode: role.CountryCode,
			PartyId:     role.PartyId,
			Role:        role.Role,
		})
	}
	return identities
}
