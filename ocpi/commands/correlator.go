package commands

import (
	"context"
	"fmt"
	"ocpinode/internal"
	"ocpinode/models"
	"ocpinode/utility"
	"sync"
	"time"
)

var ErrNotFound = utility.Err("unknown command")
var ErrNoEndpoint = utility.Err("party has no commands endpoint")

// Sender is the outbound leg of command dispatch.
type Sender interface {
	Post(ctx context.Context, url, token string, data, out interface{}) error
}

// Correlator tracks outstanding remote commands and matches the
// asynchronous callbacks a counterparty delivers later. Entries expire on
// a background sweep so the pending table stays bounded.
type Correlator struct {
	mu        sync.RWMutex
	pending   map[string]*models.PendingCommand
	timeout   time.Duration
	retention time.Duration
	sender    Sender
	logger    internal.LogHandler
	events    internal.EventHandler
	stop      chan struct{}
}

func New(sender Sender, timeout, retention time.Duration) *Correlator {
	return &Correlator{
		pending:   make(map[string]*models.PendingCommand),
		timeout:   timeout,
		retention: retention,
		sender:    sender,
		stop:      make(chan struct{}),
	}
}

func (c *Correlator) SetLogger(logger internal.LogHandler) {
	c.logger = logger
}

func (c *Correlator) SetEventHandler(events internal.EventHandler) {
	c.events = events
}

// Start launches the deadline sweep.
func (c *Correlator) Start() {
	go c.sweepPump()
}

func (c *Correlator) Stop() {
	close(c.stop)
}

func (c *Correlator) sweepPump() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.sweep(time.Now().UTC())
		case <-c.stop:
			return
		}
	}
}

func (c *Correlator) sweep(now time.Time) {
	var timedOut []*models.PendingCommand
	c.mu.Lock()
	for key, command := range c.pending {
		if command.State == models.CommandAwaitingCallback && now.After(command.Deadline) {
			command.State = models.CommandTimedOut
			command.CompletedAt = now
			timedOut = append(timedOut, cloneCommand(command))
			continue
		}
		if command.Terminal() && now.Sub(command.CompletedAt) > c.retention {
			delete(c.pending, key)
		}
	}
	c.mu.Unlock()

	for _, command := range timedOut {
		c.notify(command, "command timed out")
	}
}

// Dispatch registers a pending entry and then performs the outbound call,
// so a callback racing the call's return is never lost. An empty
// correlation key gets a generated one.
func (c *Correlator) Dispatch(ctx context.Context, kind models.CommandKind, origin models.PartyIdentity, party *models.RemoteParty, url, correlationKey string, payload interface{}) (*models.PendingCommand, error) {
	if url == "" {
		return nil, ErrNoEndpoint
	}
	if len(party.Remote) == 0 {
		return nil, ErrNoEndpoint
	}
	if correlationKey == "" {
		correlationKey = utility.NewUUID()
	}

	now := time.Now().UTC()
	command := &models.PendingCommand{
		CorrelationId: correlationKey,
		Kind:          kind,
		Origin:        origin,
		PartyId:       party.Id,
		State:         models.CommandAwaitingCallback,
		SubmittedAt:   now,
		Deadline:      now.Add(c.timeout),
	}

	c.mu.Lock()
	if _, exists := c.pending[correlationKey]; exists {
		c.mu.Unlock()
		return nil, utility.Err("correlation key already in use")
	}
	c.pending[correlationKey] = command
	c.mu.Unlock()

	var response models.CommandResponse
	err := c.sender.Post(ctx, url, party.Remote[0].Token, payload, &response)

	c.mu.Lock()
	current := c.pending[correlationKey]
	if current != nil && current.State == models.CommandAwaitingCallback {
		if err != nil {
			current.State = models.CommandCompleted
			current.CompletedAt = time.Now().UTC()
			current.Result = &models.CommandResult{Result: "FAILED", Message: err.Error()}
		} else if response.Result != "" && response.Result != "ACCEPTED" {
			current.State = models.CommandCompleted
			current.CompletedAt = time.Now().UTC()
			current.Result = &models.CommandResult{Result: response.Result}
		}
	}
	result := cloneCommand(c.pending[correlationKey])
	c.mu.Unlock()

	c.notify(result, "command dispatched")
	if err != nil {
		return result, fmt.Errorf("dispatching %s to %s: %w", kind, party.Id, err)
	}
	return result, nil
}

// MatchCallback matches an out-of-band callback to its pending command.
// Unknown, timed out or cancelled keys report false; duplicate and
// very late callbacks are expected, callers only log them.
func (c *Correlator) MatchCallback(correlationKey string, result models.CommandResult) bool {
	c.mu.Lock()
	command, ok := c.pending[correlationKey]
	if !ok || command.Terminal() {
		c.mu.Unlock()
		if c.logger != nil {
			c.logger.Warn(fmt.Sprintf("unmatched callback for %s", correlationKey))
		}
		return false
	}
	command.State = models.CommandCompleted
	command.CompletedAt = time.Now().UTC()
	command.Result = &result
	matched := cloneCommand(command)
	c.mu.Unlock()

	c.notify(matched, "callback matched")
	return true
}

// Cancel transitions a pending command to CANCELLED before its callback.
func (c *Correlator) Cancel(correlationKey string) bool {
	c.mu.Lock()
	command, ok := c.pending[correlationKey]
	if !ok || command.Terminal() {
		c.mu.Unlock()
		return false
	}
	command.State = models.CommandCancelled
	command.CompletedAt = time.Now().UTC()
	cancelled := cloneCommand(command)
	c.mu.Unlock()

	c.notify(cancelled, "command cancelled")
	return true
}

// Status reports the current state of a command.
func (c *Correlator) Status(correlationKey string) (*models.PendingCommand, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	command, ok := c.pending[correlationKey]
	if !ok {
		return nil, false
	}
	return cloneCommand(command), true
}

// Pending reports the number of tracked commands.
func (c *Correlator) Pending() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pending)
}

func (c *Correlator) notify(command *models.PendingCommand, text string) {
	if command == nil {
		return
	}
	if c.logger != nil {
		c.logger.FeatureEvent("commands", command.PartyId, fmt.Sprintf("%s %s: %s", command.Kind, command.CorrelationId, text))
	}
	if c.events != nil {
		c.events.OnCommandUpdate(&internal.EventMessage{
			Type:    "command",
			PartyId: command.PartyId,
			Key:     command.CorrelationId,
			Time:    time.Now().UTC(),
			Status:  string(command.State),
			Info:    text,
			Payload: command.Result,
		})
	}
}

func cloneCommand(command *models.PendingCommand) *models.PendingCommand {
	if command == nil {
		return nil
	}
	c := *command
	if command.Result != nil {
		result := *command.Result
		c.Result = &result
	}
	return &c
}
