package versions

import (
	"context"
	"errors"
	"fmt"
	"ocpinode/internal"
	"ocpinode/models"
	"ocpinode/ocpi/client"
	"ocpinode/utility"
	"strconv"
	"strings"
	"sync"
	"time"
)

var ErrNoCompatibleVersion = utility.Err("no compatible version")
var ErrUpstreamUnavailable = utility.Err("counterparty unavailable")
var ErrProtocolViolation = utility.Err("counterparty protocol violation")
var ErrNoRemoteAccess = utility.Err("party has no remote access configured")

type State string

const (
	Unnegotiated State = "UNNEGOTIATED"
	Negotiating  State = "NEGOTIATING"
	Negotiated   State = "NEGOTIATED"
	Stale        State = "STALE"
)

// Fetcher is the outbound leg of the negotiation handshake.
type Fetcher interface {
	Get(ctx context.Context, url, token string, out interface{}) error
}

// Negotiator performs the version/endpoint handshake with remote parties
// and caches the outcome. Concurrent calls for the same party share one
// in-flight negotiation; the cached endpoint set is replaced atomically.
type Negotiator struct {
	mu       sync.Mutex
	cache    map[string]*models.NegotiatedEndpointSet
	inflight map[string]*negotiation
	local    []string
	ttl      time.Duration
	fetcher  Fetcher
	logger   internal.LogHandler
	events   internal.EventHandler
}

type negotiation struct {
	done   chan struct{}
	result *models.NegotiatedEndpointSet
	err    error
}

func New(fetcher Fetcher, local []string, ttl time.Duration) *Negotiator {
	return &Negotiator{
		cache:    make(map[string]*models.NegotiatedEndpointSet),
		inflight: make(map[string]*negotiation),
		local:    local,
		ttl:      ttl,
		fetcher:  fetcher,
	}
}

func (n *Negotiator) SetLogger(logger internal.LogHandler) {
	n.logger = logger
}

func (n *Negotiator) SetEventHandler(events internal.EventHandler) {
	n.events = events
}

// State reports the negotiation state for a party.
func (n *Negotiator) State(partyId string) State {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.inflight[partyId]; ok {
		return Negotiating
	}
	set, ok := n.cache[partyId]
	if !ok {
		return Unnegotiated
	}
	if time.Since(set.NegotiatedAt) > n.ttl {
		return Stale
	}
	return Negotiated
}

// Endpoints returns the cached endpoint set if it is still fresh.
func (n *Negotiator) Endpoints(partyId string) (*models.NegotiatedEndpointSet, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	set, ok := n.cache[partyId]
	if !ok || time.Since(set.NegotiatedAt) > n.ttl {
		return nil, false
	}
	return set, true
}

// Invalidate drops the cached endpoint set for a party.
func (n *Negotiator) Invalidate(partyId string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.cache, partyId)
}

// Negotiate returns a fresh endpoint set for the party, fetching the
// counterparty's versions document when the cache is stale or missing.
func (n *Negotiator) Negotiate(ctx context.Context, party *models.RemoteParty) (*models.NegotiatedEndpointSet, error) {
	if len(party.Remote) == 0 {
		return nil, ErrNoRemoteAccess
	}
	access := party.Remote[0]

	n.mu.Lock()
	if set, ok := n.cache[party.Id]; ok && time.Since(set.NegotiatedAt) <= n.ttl {
		n.mu.Unlock()
		return set, nil
	}
	if pending, ok := n.inflight[party.Id]; ok {
		n.mu.Unlock()
		select {
		case <-pending.done:
			return pending.result, pending.err
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, ctx.Err())
		}
	}
	pending := &negotiation{done: make(chan struct{})}
	n.inflight[party.Id] = pending
	n.mu.Unlock()

	set, err := n.negotiate(ctx, party.Id, access)

	n.mu.Lock()
	if err == nil {
		n.cache[party.Id] = set
	}
	pending.result = set
	pending.err = err
	delete(n.inflight, party.Id)
	n.mu.Unlock()
	close(pending.done)

	n.report(party.Id, set, err)
	return set, err
}

func (n *Negotiator) negotiate(ctx context.Context, partyId string, access models.RemoteAccess) (*models.NegotiatedEndpointSet, error) {
	var offered []models.Version
	if err := n.fetcher.Get(ctx, access.VersionsUrl, access.Token, &offered); err != nil {
		return nil, translate(err, "fetching versions")
	}

	selected, ok := highestMutual(n.local, offered)
	if !ok {
		return nil, ErrNoCompatibleVersion
	}

	var details models.VersionDetails
	if err := n.fetcher.Get(ctx, selected.Url, access.Token, &details); err != nil {
		return nil, translate(err, "fetching endpoints")
	}
	if details.Version != "" && details.Version != selected.Version {
		return nil, fmt.Errorf("%w: endpoint document for version %s, expected %s",
			ErrProtocolViolation, details.Version, selected.Version)
	}
	if len(details.Endpoints) == 0 {
		return nil, fmt.Errorf("%w: empty endpoint list", ErrProtocolViolation)
	}

	endpoints := make(map[string]string, len(details.Endpoints))
	for _, endpoint := range details.Endpoints {
		if endpoint.Identifier == "" || endpoint.Url == "" {
			return nil, fmt.Errorf("%w: endpoint without identifier or url", ErrProtocolViolation)
		}
		// RECEIVER entries describe where we push data; they win over SENDER
		if endpoint.Role == "SENDER" {
			if _, exists := endpoints[endpoint.Identifier]; exists {
				continue
			}
		}
		endpoints[endpoint.Identifier] = endpoint.Url
	}

	return &models.NegotiatedEndpointSet{
		PartyId:      partyId,
		Version:      selected.Version,
		Endpoints:    endpoints,
		NegotiatedAt: time.Now().UTC(),
	}, nil
}

func (n *Negotiator) report(partyId string, set *models.NegotiatedEndpointSet, err error) {
	if err != nil {
		if n.logger != nil {
			n.logger.Error(fmt.Sprintf("negotiation with %s failed", partyId), err)
		}
		if n.events != nil {
			n.events.OnNegotiation(&internal.EventMessage{
				Type:    "negotiation",
				PartyId: partyId,
				Time:    time.Now().UTC(),
				Status:  "FAILED",
				Info:    err.Error(),
			})
		}
		return
	}
	if n.logger != nil {
		n.logger.FeatureEvent("versions", partyId, fmt.Sprintf("negotiated version %s with %d endpoints", set.Version, len(set.Endpoints)))
	}
	if n.events != nil {
		n.events.OnNegotiation(&internal.EventMessage{
			Type:    "negotiation",
			PartyId: partyId,
			Time:    time.Now().UTC(),
			Status:  "NEGOTIATED",
			Info:    set.Version,
		})
	}
}

func translate(err error, op string) error {
	if errors.Is(err, client.ErrProtocol) {
		return fmt.Errorf("%w: %s: %v", ErrProtocolViolation, op, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrUpstreamUnavailable, op, err)
}

// highestMutual picks the numerically highest version present on both sides.
func highestMutual(local []string, offered []models.Version) (models.Version, bool) {
	var best models.Version
	found := false
	for _, candidate := range offered {
		if !utility.Contains(local, candidate.Version) {
			continue
		}
		if !found || compareVersions(candidate.Version, best.Version) > 0 {
			best = candidate
			found = true
		}
	}
	return best, found
}

func compareVersions(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) || i < len(bs); i++ {
		var av, bv int
		if i < len(as) {
			av, _ = strconv.Atoi(as[i])
		}
		if i < len(bs) {
			bv, _ = strconv.Atoi(bs[i])
		}
		if av != bv {
			if av > bv {
				return 1
			}
			return -1
		}
	}
	return strings.Compare(a, b)
}
