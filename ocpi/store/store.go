package store

import (
	"encoding/json"
	"fmt"
	"ocpinode/internal"
	"ocpinode/models"
	"ocpinode/utility"
	"sync"
	"time"
)

var ErrConflict = utility.Err("write is older than stored entity")
var ErrNotFound = utility.Err("entity not found")
var ErrInvalidPayload = utility.Err("invalid entity payload")

// Filter narrows a List call: a half-open [From, To) window on LastUpdated
// plus an offset/limit pagination window. Zero Limit means no limit.
type Filter struct {
	From   *time.Time
	To     *time.Time
	Offset int
	Limit  int
}

// ListResult reports the page together with the counts the gateway needs
// for pagination headers.
type ListResult struct {
	Objects  []*models.SyncObject
	Total    int
	Filtered int
}

// Store keeps synchronized entities partitioned per (type, country, party).
// Each partition serializes its writers; readers of other partitions are
// never blocked. Persistence happens on a background writer so store
// operations never wait on the network.
type Store struct {
	mu              sync.RWMutex
	partitions      map[partitionKey]*partition
	allowDowngrades bool
	writer          chan persistOp
	database        internal.Database
	logger          internal.LogHandler
	events          internal.EventHandler
}

type partitionKey struct {
	entityType  models.EntityType
	countryCode string
	partyId     string
}

type partition struct {
	mu      sync.Mutex
	records map[string]*models.SyncObject
	order   []string
}

type persistOp struct {
	remove bool
	object *models.SyncObject
}

func New(allowDowngrades bool) *Store {
	return &Store{
		partitions:      make(map[partitionKey]*partition),
		allowDowngrades: allowDowngrades,
		writer:          make(chan persistOp, 500),
	}
}

func (s *Store) SetLogger(logger internal.LogHandler) {
	s.logger = logger
}

func (s *Store) SetEventHandler(events internal.EventHandler) {
	s.events = events
}

// SetDatabase attaches write-through persistence and starts the writer.
func (s *Store) SetDatabase(database internal.Database) {
	s.database = database
	if database != nil {
		go s.startWriter()
	}
}

func (s *Store) startWriter() {
	for op := range s.writer {
		var err error
		if op.remove {
			err = s.database.DeleteObject(op.object)
		} else {
			err = s.database.SaveObject(op.object)
		}
		if err != nil && s.logger != nil {
			s.logger.Error(fmt.Sprintf("persist %s %s", op.object.Type, op.object.Key), err)
		}
	}
}

// Load restores previously persisted objects, preserving their stored order.
func (s *Store) Load() error {
	if s.database == nil {
		return nil
	}
	objects, err := s.database.GetObjects()
	if err != nil {
		return fmt.Errorf("loading objects: %w", err)
	}
	for _, obj := range objects {
		p := s.partition(obj.Type, obj.CountryCode, obj.PartyId)
		p.mu.Lock()
		if _, ok := p.records[obj.Key]; !ok {
			p.order = append(p.order, obj.Key)
		}
		p.records[obj.Key] = obj
		p.mu.Unlock()
	}
	return nil
}

// NewObject builds a SyncObject from a raw payload, deriving LastUpdated
// from the payload's last_updated field when present and the ETag from the
// canonical payload form.
func NewObject(entityType models.EntityType, countryCode, partyId, key string, payload json.RawMessage) (*models.SyncObject, error) {
	canonical, err := canonicalize(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	lastUpdated := payloadTimestamp(payload)
	if lastUpdated.IsZero() {
		lastUpdated = time.Now().UTC()
	}
	return &models.SyncObject{
		Type:        entityType,
		CountryCode: countryCode,
		PartyId:     partyId,
		Key:         key,
		Payload:     canonical,
		LastUpdated: lastUpdated,
		ETag:        etag(canonical),
	}, nil
}

// setPayloadTimestamp aligns the payload's last_updated field with the
// metadata timestamp after a patch. Payloads without the field stay as-is.
func setPayloadTimestamp(payload json.RawMessage, t time.Time) (json.RawMessage, error) {
	var doc map[string]interface{}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if _, ok := doc["last_updated"]; !ok {
		return payload, nil
	}
	doc["last_updated"] = t.Format(time.RFC3339)
	return json.Marshal(doc)
}

func payloadTimestamp(payload json.RawMessage) time.Time {
	var probe struct {
		LastUpdated string `json:"last_updated"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil || probe.LastUpdated == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, probe.LastUpdated); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func (s *Store) partition(entityType models.EntityType, countryCode, partyId string) *partition {
	key := partitionKey{entityType: entityType, countryCode: countryCode, partyId: partyId}
	s.mu.RLock()
	p, ok := s.partitions[key]
	s.mu.RUnlock()
	if ok {
		return p
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok = s.partitions[key]; ok {
		return p
	}
	p = &partition{records: make(map[string]*models.SyncObject)}
	s.partitions[key] = p
	return p
}

func (s *Store) Get(entityType models.EntityType, countryCode, partyId, key string) (*models.SyncObject, bool) {
	p := s.partition(entityType, countryCode, partyId)
	p.mu.Lock()
	defer p.mu.Unlock()
	obj, ok := p.records[key]
	if !ok {
		return nil, false
	}
	return obj.Clone(), true
}

// List returns a stable, insertion-ordered page of the partition.
func (s *Store) List(entityType models.EntityType, countryCode, partyId string, filter Filter) ListResult {
	p := s.partition(entityType, countryCode, partyId)
	p.mu.Lock()
	defer p.mu.Unlock()

	matched := make([]*models.SyncObject, 0, len(p.order))
	for _, key := range p.order {
		obj := p.records[key]
		if filter.From != nil && obj.LastUpdated.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !obj.LastUpdated.Before(*filter.To) {
			continue
		}
		matched = append(matched, obj)
	}

	result := ListResult{Total: len(p.order), Filtered: len(matched)}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset > len(matched) {
		offset = len(matched)
	}
	end := len(matched)
	if filter.Limit > 0 && offset+filter.Limit < end {
		end = offset + filter.Limit
	}
	for _, obj := range matched[offset:end] {
		result.Objects = append(result.Objects, obj.Clone())
	}
	return result
}

// AddOrUpdate stores the object, rejecting downgrades. The per-request
// allowDowngrade override wins when present, otherwise the global setting
// applies. On Conflict the stored entity is returned unchanged.
func (s *Store) AddOrUpdate(obj *models.SyncObject, allowDowngrade *bool) (*models.SyncObject, bool, error) {
	downgrade := s.allowDowngrades
	if allowDowngrade != nil {
		downgrade = *allowDowngrade
	}

	p := s.partition(obj.Type, obj.CountryCode, obj.PartyId)
	p.mu.Lock()
	existing, ok := p.records[obj.Key]
	if ok && !downgrade && !obj.LastUpdated.After(existing.LastUpdated) {
		stored := existing.Clone()
		p.mu.Unlock()
		s.rejected(obj, "downgrade rejected")
		return stored, false, ErrConflict
	}
	if !ok {
		p.order = append(p.order, obj.Key)
	}
	stored := obj.Clone()
	p.records[obj.Key] = stored
	result := stored.Clone()
	p.mu.Unlock()

	s.persist(persistOp{object: result})
	s.applied(result, !ok)
	return result, !ok, nil
}

// Patch applies a merge patch to the stored entity under the same per-key
// and downgrade discipline as AddOrUpdate. Fields named in protected must
// survive the patch unchanged.
func (s *Store) Patch(entityType models.EntityType, countryCode, partyId, key string, patch json.RawMessage, protected []string, allowDowngrade *bool) (*models.SyncObject, error) {
	downgrade := s.allowDowngrades
	if allowDowngrade != nil {
		downgrade = *allowDowngrade
	}

	p := s.partition(entityType, countryCode, partyId)
	p.mu.Lock()
	existing, ok := p.records[key]
	if !ok {
		p.mu.Unlock()
		return nil, ErrNotFound
	}

	payload, err := applyMergePatch(existing.Payload, patch, protected)
	if err != nil {
		p.mu.Unlock()
		return nil, err
	}

	patchTime := payloadTimestamp(patch)
	if !patchTime.IsZero() && !patchTime.After(existing.LastUpdated) && !downgrade {
		p.mu.Unlock()
		s.rejected(existing, "patch downgrade rejected")
		return nil, ErrConflict
	}
	lastUpdated := time.Now().UTC()
	if patchTime.After(lastUpdated) {
		lastUpdated = patchTime
	}
	payload, err = setPayloadTimestamp(payload, lastUpdated)
	if err != nil {
		p.mu.Unlock()
		return nil, err
	}

	stored := existing.Clone()
	stored.Payload = payload
	stored.LastUpdated = lastUpdated
	stored.ETag = etag(payload)
	p.records[key] = stored
	result := stored.Clone()
	p.mu.Unlock()

	s.persist(persistOp{object: result})
	s.applied(result, false)
	return result, nil
}

// Remove deletes the entity. Reports whether anything was removed.
func (s *Store) Remove(entityType models.EntityType, countryCode, partyId, key string) bool {
	p := s.partition(entityType, countryCode, partyId)
	p.mu.Lock()
	obj, ok := p.records[key]
	if !ok {
		p.mu.Unlock()
		return false
	}
	delete(p.records, key)
	for i, k := range p.order {
		if k == key {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	removed := obj.Clone()
	p.mu.Unlock()

	s.persist(persistOp{remove: true, object: removed})
	if s.logger != nil {
		s.logger.FeatureEvent(string(entityType), partyId, fmt.Sprintf("removed %s", key))
	}
	return true
}

func (s *Store) persist(op persistOp) {
	if s.database == nil {
		return
	}
	select {
	case s.writer <- op:
	default:
		if s.logger != nil {
			s.logger.Warn(fmt.Sprintf("persistence queue full, dropping %s %s", op.object.Type, op.object.Key))
		}
	}
}

func (s *Store) applied(obj *models.SyncObject, created bool) {
	if s.logger != nil {
		verb := "updated"
		if created {
			verb = "created"
		}
		s.logger.FeatureEvent(string(obj.Type), obj.PartyId, fmt.Sprintf("%s %s", verb, obj.Key))
	}
	if s.events != nil {
		s.events.OnSyncApplied(&internal.EventMessage{
			Type:        "sync_applied",
			PartyId:     obj.PartyId,
			CountryCode: obj.CountryCode,
			Entity:      string(obj.Type),
			Key:         obj.Key,
			Time:        time.Now().UTC(),
		})
	}
}

func (s *Store) rejected(obj *models.SyncObject, reason string) {
	if s.logger != nil {
		s.logger.Warn(fmt.Sprintf("[%s] %s %s: %s", obj.PartyId, obj.Type, obj.Key, reason))
	}
	if s.events != nil {
		s.events.OnSyncRejected(&internal.EventMessage{
			Type:        "sync_rejected",
			PartyId:     obj.PartyId,
			CountryCode: obj.CountryCode,
			Entity:      string(obj.Type),
			Key:         obj.Key,
			Time:        time.Now().UTC(),
			Info:        reason,
		})
	}
}
