package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"ocpinode/models"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSender acknowledges commands and records what went out
type stubSender struct {
	mu       sync.Mutex
	urls     []string
	response models.CommandResponse
	err      error
}

func (s *stubSender) Post(_ context.Context, url, _ string, _, out interface{}) error {
	s.mu.Lock()
	s.urls = append(s.urls, url)
	response := s.response
	err := s.err
	s.mu.Unlock()
	if err != nil {
		return err
	}
	data, _ := json.Marshal(response)
	return json.Unmarshal(data, out)
}

func commandParty() *models.RemoteParty {
	return &models.RemoteParty{
		Id:     "p1",
		Status: models.PartyAllowed,
		Remote: []models.RemoteAccess{{Token: "remote-token", VersionsUrl: "http://emsp.example/ocpi/versions"}},
	}
}

func origin() models.PartyIdentity {
	return models.PartyIdentity{CountryCode: "ES", PartyId: "EVS", Role: models.RoleEMSP}
}

func TestDispatch(t *testing.T) {
	t.Run("accepted command awaits callback", func(t *testing.T) {
		sender := &stubSender{response: models.CommandResponse{Result: "ACCEPTED", Timeout: 30}}
		c := New(sender, time.Minute, time.Hour)

		command, err := c.Dispatch(context.Background(), models.CommandReserveNow, origin(), commandParty(),
			"http://emsp.example/commands/RESERVE_NOW", "corr-1", map[string]interface{}{"reservation_id": 7})
		require.NoError(t, err)
		assert.Equal(t, models.CommandAwaitingCallback, command.State)
		assert.Equal(t, "corr-1", command.CorrelationId)
		assert.Equal(t, 1, c.Pending())
	})

	t.Run("empty correlation key gets generated", func(t *testing.T) {
		sender := &stubSender{response: models.CommandResponse{Result: "ACCEPTED"}}
		c := New(sender, time.Minute, time.Hour)
		command, err := c.Dispatch(context.Background(), models.CommandStartSession, origin(), commandParty(),
			"http://emsp.example/commands/START_SESSION", "", nil)
		require.NoError(t, err)
		assert.NotEmpty(t, command.CorrelationId)
	})

	t.Run("duplicate correlation key", func(t *testing.T) {
		sender := &stubSender{response: models.CommandResponse{Result: "ACCEPTED"}}
		c := New(sender, time.Minute, time.Hour)
		_, err := c.Dispatch(context.Background(), models.CommandReserveNow, origin(), commandParty(),
			"http://emsp.example/commands/RESERVE_NOW", "corr-1", nil)
		require.NoError(t, err)
		_, err = c.Dispatch(context.Background(), models.CommandReserveNow, origin(), commandParty(),
			"http://emsp.example/commands/RESERVE_NOW", "corr-1", nil)
		assert.Error(t, err)
	})

	t.Run("immediate rejection completes the command", func(t *testing.T) {
		sender := &stubSender{response: models.CommandResponse{Result: "REJECTED"}}
		c := New(sender, time.Minute, time.Hour)
		command, err := c.Dispatch(context.Background(), models.CommandUnlockConnector, origin(), commandParty(),
			"http://emsp.example/commands/UNLOCK_CONNECTOR", "corr-2", nil)
		require.NoError(t, err)
		assert.Equal(t, models.CommandCompleted, command.State)
		require.NotNil(t, command.Result)
		assert.Equal(t, "REJECTED", command.Result.Result)
	})

	t.Run("transport failure completes the command", func(t *testing.T) {
		sender := &stubSender{err: fmt.Errorf("connection refused")}
		c := New(sender, time.Minute, time.Hour)
		command, err := c.Dispatch(context.Background(), models.CommandStopSession, origin(), commandParty(),
			"http://emsp.example/commands/STOP_SESSION", "corr-3", nil)
		require.Error(t, err)
		require.NotNil(t, command)
		assert.Equal(t, models.CommandCompleted, command.State)
		assert.Equal(t, "FAILED", command.Result.Result)
	})

	t.Run("missing endpoint", func(t *testing.T) {
		sender := &stubSender{}
		c := New(sender, time.Minute, time.Hour)
		_, err := c.Dispatch(context.Background(), models.CommandReserveNow, origin(), commandParty(), "", "corr-4", nil)
		assert.ErrorIs(t, err, ErrNoEndpoint)
	})
}

func TestMatchCallback(t *testing.T) {
	sender := &stubSender{response: models.CommandResponse{Result: "ACCEPTED"}}

	t.Run("callback completes a pending command", func(t *testing.T) {
		c := New(sender, time.Minute, time.Hour)
		_, err := c.Dispatch(context.Background(), models.CommandReserveNow, origin(), commandParty(),
			"http://emsp.example/commands/RESERVE_NOW", "corr-1", nil)
		require.NoError(t, err)

		matched := c.MatchCallback("corr-1", models.CommandResult{Result: "ACCEPTED"})
		assert.True(t, matched)

		command, ok := c.Status("corr-1")
		require.True(t, ok)
		assert.Equal(t, models.CommandCompleted, command.State)
		assert.Equal(t, "ACCEPTED", command.Result.Result)
	})

	t.Run("unknown key is unmatched", func(t *testing.T) {
		c := New(sender, time.Minute, time.Hour)
		assert.False(t, c.MatchCallback("nope", models.CommandResult{Result: "ACCEPTED"}))
	})

	t.Run("second callback is unmatched", func(t *testing.T) {
		c := New(sender, time.Minute, time.Hour)
		_, err := c.Dispatch(context.Background(), models.CommandReserveNow, origin(), commandParty(),
			"http://emsp.example/commands/RESERVE_NOW", "corr-1", nil)
		require.NoError(t, err)
		require.True(t, c.MatchCallback("corr-1", models.CommandResult{Result: "ACCEPTED"}))
		assert.False(t, c.MatchCallback("corr-1", models.CommandResult{Result: "REJECTED"}))

		command, _ := c.Status("corr-1")
		assert.Equal(t, "ACCEPTED", command.Result.Result)
	})
}

func TestSweep(t *testing.T) {
	sender := &stubSender{response: models.CommandResponse{Result: "ACCEPTED"}}

	t.Run("deadline transitions to timed out", func(t *testing.T) {
		c := New(sender, time.Minute, time.Hour)
		_, err := c.Dispatch(context.Background(), models.CommandReserveNow, origin(), commandParty(),
			"http://emsp.example/commands/RESERVE_NOW", "corr-1", nil)
		require.NoError(t, err)

		c.sweep(time.Now().UTC().Add(2 * time.Minute))

		command, ok := c.Status("corr-1")
		require.True(t, ok)
		assert.Equal(t, models.CommandTimedOut, command.State)

		// a late callback no longer matches
		assert.False(t, c.MatchCallback("corr-1", models.CommandResult{Result: "ACCEPTED"}))
	})

	t.Run("terminal entries evicted after retention", func(t *testing.T) {
		c := New(sender, time.Minute, time.Hour)
		_, err := c.Dispatch(context.Background(), models.CommandReserveNow, origin(), commandParty(),
			"http://emsp.example/commands/RESERVE_NOW", "corr-1", nil)
		require.NoError(t, err)
		require.True(t, c.MatchCallback("corr-1", models.CommandResult{Result: "ACCEPTED"}))

		c.sweep(time.Now().UTC().Add(2 * time.Hour))
		assert.Zero(t, c.Pending())
		_, ok := c.Status("corr-1")
		assert.False(t, ok)
	})
}

func TestCancel(t *testing.T) {
	sender := &stubSender{response: models.CommandResponse{Result: "ACCEPTED"}}
	c := New(sender, time.Minute, time.Hour)
	_, err := c.Dispatch(context.Background(), models.CommandReserveNow, origin(), commandParty(),
		"http://emsp.example/commands/RESERVE_NOW", "corr-1", nil)
	require.NoError(t, err)

	assert.True(t, c.Cancel("corr-1"))
	command, ok := c.Status("corr-1")
	require.True(t, ok)
	assert.Equal(t, models.CommandCancelled, command.State)

	// cancelled commands reject late callbacks and repeat cancels
	assert.False(t, c.MatchCallback("corr-1", models.CommandResult{Result: "ACCEPTED"}))
	assert.False(t, c.Cancel("corr-1"))
	assert.False(t, c.Cancel("unknown"))
}
