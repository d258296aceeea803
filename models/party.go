package models

import "time"

type PartyRole string

const (
	RoleCPO  PartyRole = "CPO"
	RoleEMSP PartyRole = "EMSP"
	RoleHUB  PartyRole = "HUB"
	RoleNAP  PartyRole = "NAP"
	RoleNSP  PartyRole = "NSP"
	RoleSCSP PartyRole = "SCSP"
)

type PartyStatus string

const (
	PartyPending PartyStatus = "PENDING"
	PartyAllowed PartyStatus = "ALLOWED"
	PartyBlocked PartyStatus = "BLOCKED"
)

type TokenStatus string

const (
	TokenAllowed TokenStatus = "ALLOWED"
	TokenBlocked TokenStatus = "BLOCKED"
)

// PartyIdentity is the (country, party, role) triple a counterparty acts as.
// Immutable once registered.
type PartyIdentity struct {
	CountryCode string    `json:"country_code" bson:"country_code" validate:"required,len=2"`
	PartyId     string    `json:"party_id" bson:"party_id" validate:"required,len=3"`
	Role        PartyRole `json:"role" bson:"role" validate:"required"`
}

func (p PartyIdentity) String() string {
	return p.CountryCode + "*" + p.PartyId + ":" + string(p.Role)
}

// AccessToken is a bearer token this system issued to a counterparty.
type AccessToken struct {
	Token      string          `json:"token" bson:"token"`
	Status     TokenStatus     `json:"status" bson:"status"`
	Identities []PartyIdentity `json:"identities" bson:"identities"`
	IssuedAt   time.Time       `json:"issued_at" bson:"issued_at"`
}

// RemoteAccess holds the credentials this system uses to call a counterparty:
// the token they issued to us and their versions discovery URL.
type RemoteAccess struct {
	Token       string `json:"token" bson:"token"`
	VersionsUrl string `json:"versions_url" bson:"versions_url"`
}

type RemoteParty struct {
	Id         string          `json:"id" bson:"id"`
	Name       string          `json:"name" bson:"name"`
	Status     PartyStatus     `json:"status" bson:"status"`
	Identities []PartyIdentity `json:"identities" bson:"identities"`
	Tokens     []AccessToken   `json:"tokens" bson:"tokens"`
	Remote     []RemoteAccess  `json:"remote" bson:"remote"`
	CreatedAt  time.Time       `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at" bson:"updated_at"`
}

func (rp *RemoteParty) DataType() string {
	return "remoteParty"
}

func (rp *RemoteParty) HasRole(role PartyRole) bool {
	for _, identity := range rp.Identities {
		if identity.Role == role {
			return true
		}
	}
	return false
}
