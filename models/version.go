package models

import "time"

// Version is one entry of the versions discovery document.
type Version struct {
	Version string `json:"version" bson:"version"`
	Url     string `json:"url" bson:"url"`
}

// Endpoint maps one module identifier to its URL for a negotiated version.
type Endpoint struct {
	Identifier string `json:"identifier" bson:"identifier"`
	Role       string `json:"role,omitempty" bson:"role,omitempty"`
	Url        string `json:"url" bson:"url"`
}

// VersionDetails is the endpoint document served under a version URL.
type VersionDetails struct {
	Version   string     `json:"version" bson:"version"`
	Endpoints []Endpoint `json:"endpoints" bson:"endpoints"`
}

// NegotiatedEndpointSet is the cached outcome of version negotiation with
// one remote party. Replaced atomically, never patched in place.
type NegotiatedEndpointSet struct {
	PartyId      string            `json:"party_id" bson:"party_id"`
	Version      string            `json:"version" bson:"version"`
	Endpoints    map[string]string `json:"endpoints" bson:"endpoints"`
	NegotiatedAt time.Time         `json:"negotiated_at" bson:"negotiated_at"`
}

func (n *NegotiatedEndpointSet) Endpoint(module string) (string, bool) {
	url, ok := n.Endpoints[module]
	return url, ok
}
