package registry

import (
	"fmt"
	"ocpinode/internal"
	"ocpinode/models"
	"ocpinode/utility"
	"sync"
	"time"
)

var ErrNotFound = utility.Err("party not found")
var ErrExists = utility.Err("party already registered")

// Registry holds the known remote parties and resolves the bearer tokens
// they present. Reads take the shared lock so the request path never
// blocks behind administrative mutations of unrelated parties.
type Registry struct {
	mu       sync.RWMutex
	parties  map[string]*models.RemoteParty
	tokens   map[string]*tokenRecord
	database internal.Database
	logger   internal.LogHandler
	events   internal.EventHandler
}

type tokenRecord struct {
	partyId string
	token   *models.AccessToken
}

func New() *Registry {
	return &Registry{
		parties: make(map[string]*models.RemoteParty),
		tokens:  make(map[string]*tokenRecord),
	}
}

func (r *Registry) SetLogger(logger internal.LogHandler) {
	r.logger = logger
}

func (r *Registry) SetDatabase(database internal.Database) {
	r.database = database
}

func (r *Registry) SetEventHandler(events internal.EventHandler) {
	r.events = events
}

// Load restores the party table from the database service.
func (r *Registry) Load() error {
	if r.database == nil {
		return nil
	}
	parties, err := r.database.GetParties()
	if err != nil {
		return fmt.Errorf("loading parties: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, party := range parties {
		r.parties[party.Id] = party
		for i := range party.Tokens {
			r.tokens[party.Tokens[i].Token] = &tokenRecord{partyId: party.Id, token: &party.Tokens[i]}
		}
	}
	return nil
}

// Resolve maps a presented bearer token to the identities it may act as.
// Callers must treat any status other than ALLOWED the same as not found.
func (r *Registry) Resolve(token string) ([]models.PartyIdentity, models.TokenStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.tokens[token]
	if !ok {
		return nil, "", false
	}
	party, ok := r.parties[record.partyId]
	if !ok {
		return nil, "", false
	}
	status := record.token.Status
	if party.Status != models.PartyAllowed {
		status = models.TokenBlocked
	}
	identities := make([]models.PartyIdentity, len(record.token.Identities))
	copy(identities, record.token.Identities)
	return identities, status, true
}

// Authorize reports whether the token is allowed to act in the given role.
func (r *Registry) Authorize(token string, role models.PartyRole) bool {
	identities, status, ok := r.Resolve(token)
	if !ok || status != models.TokenAllowed {
		return false
	}
	for _, identity := range identities {
		if identity.Role == role {
			return true
		}
	}
	return false
}

// PartyForToken returns the party record a valid token belongs to.
func (r *Registry) PartyForToken(token string) (*models.RemoteParty, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.tokens[token]
	if !ok {
		return nil, false
	}
	party, ok := r.parties[record.partyId]
	if !ok {
		return nil, false
	}
	return clone(party), true
}

// Register adds a new remote party. Its id must be unique.
func (r *Registry) Register(party *models.RemoteParty) error {
	r.mu.Lock()
	if _, ok := r.parties[party.Id]; ok {
		r.mu.Unlock()
		return ErrExists
	}
	if party.Status == "" {
		party.Status = models.PartyPending
	}
	party.CreatedAt = time.Now().UTC()
	party.UpdatedAt = party.CreatedAt
	stored := clone(party)
	r.parties[stored.Id] = stored
	for i := range stored.Tokens {
		r.tokens[stored.Tokens[i].Token] = &tokenRecord{partyId: stored.Id, token: &stored.Tokens[i]}
	}
	r.mu.Unlock()

	r.persist(stored)
	if r.logger != nil {
		r.logger.FeatureEvent("registry", party.Id, "party registered")
	}
	return nil
}

func (r *Registry) Party(id string) (*models.RemoteParty, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	party, ok := r.parties[id]
	if !ok {
		return nil, false
	}
	return clone(party), true
}

func (r *Registry) Parties() []*models.RemoteParty {
	r.mu.RLock()
	defer r.mu.RUnlock()
	parties := make([]*models.RemoteParty, 0, len(r.parties))
	for _, party := range r.parties {
		parties = append(parties, clone(party))
	}
	return parties
}

// SetStatus changes the party lifecycle status.
func (r *Registry) SetStatus(id string, status models.PartyStatus) error {
	r.mu.Lock()
	party, ok := r.parties[id]
	if !ok {
		r.mu.Unlock()
		return ErrNotFound
	}
	party.Status = status
	party.UpdatedAt = time.Now().UTC()
	stored := clone(party)
	r.mu.Unlock()

	r.persist(stored)
	if r.events != nil {
		r.events.OnPartyStatus(&internal.EventMessage{
			Type:    "party_status",
			PartyId: id,
			Time:    time.Now().UTC(),
			Status:  string(status),
		})
	}
	return nil
}

// IssueToken creates a new local token bound to the given identities and
// returns its value. Previously issued tokens stay valid until revoked.
func (r *Registry) IssueToken(id string, identities []models.PartyIdentity) (string, error) {
	value := utility.NewUUID()
	r.mu.Lock()
	party, ok := r.parties[id]
	if !ok {
		r.mu.Unlock()
		return "", ErrNotFound
	}
	token := models.AccessToken{
		Token:      value,
		Status:     models.TokenAllowed,
		Identities: identities,
		IssuedAt:   time.Now().UTC(),
	}
	party.Tokens = append(party.Tokens, token)
	party.UpdatedAt = time.Now().UTC()
	// appending may have moved the slice, re-index all of this party's tokens
	for i := range party.Tokens {
		r.tokens[party.Tokens[i].Token] = &tokenRecord{partyId: id, token: &party.Tokens[i]}
	}
	stored := clone(party)
	r.mu.Unlock()

	r.persist(stored)
	if r.logger != nil {
		r.logger.FeatureEvent("registry", id, "token issued")
	}
	return value, nil
}

// RevokeToken removes a local token. Unknown tokens are not an error.
func (r *Registry) RevokeToken(value string) {
	r.mu.Lock()
	record, ok := r.tokens[value]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.tokens, value)
	var stored *models.RemoteParty
	if party, found := r.parties[record.partyId]; found {
		tokens := make([]models.AccessToken, 0, len(party.Tokens))
		for _, t := range party.Tokens {
			if t.Token != value {
				tokens = append(tokens, t)
			}
		}
		party.Tokens = tokens
		for i := range party.Tokens {
			r.tokens[party.Tokens[i].Token] = &tokenRecord{partyId: party.Id, token: &party.Tokens[i]}
		}
		party.UpdatedAt = time.Now().UTC()
		stored = clone(party)
	}
	r.mu.Unlock()

	if stored != nil {
		r.persist(stored)
	}
}

// SetRemoteAccess records the credentials used to call the counterparty.
func (r *Registry) SetRemoteAccess(id string, access models.RemoteAccess) error {
	r.mu.Lock()
	party, ok := r.parties[id]
	if !ok {
		r.mu.Unlock()
		return ErrNotFound
	}
	party.Remote = []models.RemoteAccess{access}
	party.UpdatedAt = time.Now().UTC()
	stored := clone(party)
	r.mu.Unlock()

	r.persist(stored)
	return nil
}

// Remove deletes a party and all its tokens. An explicit administrative act.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	party, ok := r.parties[id]
	if !ok {
		r.mu.Unlock()
		return ErrNotFound
	}
	for _, token := range party.Tokens {
		delete(r.tokens, token.Token)
	}
	delete(r.parties, id)
	r.mu.Unlock()

	if r.database != nil {
		if err := r.database.DeleteParty(id); err != nil && r.logger != nil {
			r.logger.Error("delete party", err)
		}
	}
	if r.logger != nil {
		r.logger.FeatureEvent("registry", id, "party removed")
	}
	return nil
}

func (r *Registry) persist(party *models.RemoteParty) {
	if r.database == nil {
		return
	}
	if err := r.database.SaveParty(party); err != nil && r.logger != nil {
		r.logger.Error("save party", err)
	}
}

func clone(party *models.RemoteParty) *models.RemoteParty {
	c := *party
	c.Identities = append([]models.PartyIdentity(nil), party.Identities...)
	c.Tokens = append([]models.AccessToken(nil), party.Tokens...)
	c.Remote = append([]models.RemoteAccess(nil), party.Remote...)
	return &c
}
