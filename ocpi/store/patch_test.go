package store

import (
	"encoding/json"
	"ocpinode/models"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyMergePatch(t *testing.T) {
	t.Run("fields overwrite", func(t *testing.T) {
		result, err := applyMergePatch(
			json.RawMessage(`{"a":1,"b":2}`),
			json.RawMessage(`{"b":3}`), nil)
		require.NoError(t, err)
		assert.JSONEq(t, `{"a":1,"b":3}`, string(result))
	})

	t.Run("null removes", func(t *testing.T) {
		result, err := applyMergePatch(
			json.RawMessage(`{"a":1,"b":2}`),
			json.RawMessage(`{"b":null}`), nil)
		require.NoError(t, err)
		assert.JSONEq(t, `{"a":1}`, string(result))
	})

	t.Run("absent fields survive", func(t *testing.T) {
		result, err := applyMergePatch(
			json.RawMessage(`{"a":1,"b":{"c":2,"d":3}}`),
			json.RawMessage(`{"b":{"c":9}}`), nil)
		require.NoError(t, err)
		assert.JSONEq(t, `{"a":1,"b":{"c":9,"d":3}}`, string(result))
	})

	t.Run("arrays replace wholesale", func(t *testing.T) {
		result, err := applyMergePatch(
			json.RawMessage(`{"tags":["a","b","c"]}`),
			json.RawMessage(`{"tags":["z"]}`), nil)
		require.NoError(t, err)
		assert.JSONEq(t, `{"tags":["z"]}`, string(result))
	})

	t.Run("object replaces scalar", func(t *testing.T) {
		result, err := applyMergePatch(
			json.RawMessage(`{"a":1}`),
			json.RawMessage(`{"a":{"b":2}}`), nil)
		require.NoError(t, err)
		assert.JSONEq(t, `{"a":{"b":2}}`, string(result))
	})

	t.Run("patch must be an object", func(t *testing.T) {
		_, err := applyMergePatch(
			json.RawMessage(`{"a":1}`),
			json.RawMessage(`[1,2,3]`), nil)
		assert.ErrorIs(t, err, ErrInvalidPatch)
	})

	t.Run("protected field cannot change", func(t *testing.T) {
		_, err := applyMergePatch(
			json.RawMessage(`{"id":"LOC1","name":"Main"}`),
			json.RawMessage(`{"id":"LOC2"}`),
			[]string{"id"})
		assert.ErrorIs(t, err, ErrInvalidResultingState)
	})

	t.Run("protected field cannot be removed", func(t *testing.T) {
		_, err := applyMergePatch(
			json.RawMessage(`{"id":"LOC1","name":"Main"}`),
			json.RawMessage(`{"id":null}`),
			[]string{"id"})
		assert.ErrorIs(t, err, ErrInvalidResultingState)
	})

	t.Run("restating a protected field is fine", func(t *testing.T) {
		result, err := applyMergePatch(
			json.RawMessage(`{"id":"LOC1","name":"Main"}`),
			json.RawMessage(`{"id":"LOC1","name":"Other"}`),
			[]string{"id"})
		require.NoError(t, err)
		assert.JSONEq(t, `{"id":"LOC1","name":"Other"}`, string(result))
	})
}

func TestStorePatch(t *testing.T) {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	seed := func(t *testing.T, s *Store) *models.SyncObject {
		obj, err := NewObject(models.EntityLocation, "ES", "EVS", "LOC1", payloadAt("LOC1", base))
		require.NoError(t, err)
		stored, _, err := s.AddOrUpdate(obj, nil)
		require.NoError(t, err)
		return stored
	}

	t.Run("patch updates payload, timestamp and etag", func(t *testing.T) {
		s := New(false)
		before := seed(t, s)

		patched, err := s.Patch(models.EntityLocation, "ES", "EVS", "LOC1",
			json.RawMessage(`{"status":"CHARGING"}`), nil, nil)
		require.NoError(t, err)
		assert.NotEqual(t, before.ETag, patched.ETag)
		assert.True(t, patched.LastUpdated.After(before.LastUpdated))

		var doc map[string]interface{}
		require.NoError(t, json.Unmarshal(patched.Payload, &doc))
		assert.Equal(t, "CHARGING", doc["status"])
		// payload timestamp follows the metadata timestamp
		assert.Equal(t, patched.LastUpdated.Format(time.RFC3339), doc["last_updated"])
	})

	t.Run("unknown entity", func(t *testing.T) {
		s := New(false)
		_, err := s.Patch(models.EntityLocation, "ES", "EVS", "NOPE",
			json.RawMessage(`{"status":"CHARGING"}`), nil, nil)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("stale patch timestamp rejected", func(t *testing.T) {
		s := New(false)
		seed(t, s)
		stale := base.Add(-time.Hour).Format(time.RFC3339)
		_, err := s.Patch(models.EntityLocation, "ES", "EVS", "LOC1",
			json.RawMessage(`{"status":"CHARGING","last_updated":"`+stale+`"}`), nil, nil)
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("stale patch accepted when downgrades allowed", func(t *testing.T) {
		s := New(true)
		seed(t, s)
		stale := base.Add(-time.Hour).Format(time.RFC3339)
		_, err := s.Patch(models.EntityLocation, "ES", "EVS", "LOC1",
			json.RawMessage(`{"status":"CHARGING","last_updated":"`+stale+`"}`), nil, nil)
		require.NoError(t, err)
	})

	t.Run("request override accepts a stale patch", func(t *testing.T) {
		s := New(false)
		seed(t, s)
		force := true
		stale := base.Add(-time.Hour).Format(time.RFC3339)
		_, err := s.Patch(models.EntityLocation, "ES", "EVS", "LOC1",
			json.RawMessage(`{"status":"CHARGING","last_updated":"`+stale+`"}`), nil, &force)
		require.NoError(t, err)
	})

	t.Run("request override wins over permissive global setting", func(t *testing.T) {
		s := New(true)
		seed(t, s)
		force := false
		stale := base.Add(-time.Hour).Format(time.RFC3339)
		_, err := s.Patch(models.EntityLocation, "ES", "EVS", "LOC1",
			json.RawMessage(`{"status":"CHARGING","last_updated":"`+stale+`"}`), nil, &force)
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("protected field rejection leaves entity unchanged", func(t *testing.T) {
		s := New(false)
		before := seed(t, s)
		_, err := s.Patch(models.EntityLocation, "ES", "EVS", "LOC1",
			json.RawMessage(`{"id":"LOC2"}`), []string{"id"}, nil)
		assert.ErrorIs(t, err, ErrInvalidResultingState)

		got, ok := s.Get(models.EntityLocation, "ES", "EVS", "LOC1")
		require.True(t, ok)
		assert.Equal(t, before.ETag, got.ETag)
	})
}
