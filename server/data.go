package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"ocpinode/entity"
	"ocpinode/entity/tariff"
	"ocpinode/models"
	"ocpinode/ocpi/store"
	"ocpinode/utility"

	"github.com/julienschmidt/httprouter"
)

// objectKey builds the store key from the path: plain entity id, extended
// with evse uid and connector id for nested location writes.
func objectKey(params httprouter.Params) string {
	key := params.ByName("id")
	if evseUid := params.ByName("evse_uid"); evseUid != "" {
		key += "/" + evseUid
		if connectorId := params.ByName("connector_id"); connectorId != "" {
			key += "/" + connectorId
		}
	}
	return key
}

func keyDepth(params httprouter.Params) int {
	if params.ByName("connector_id") != "" {
		return 3
	}
	if params.ByName("evse_uid") != "" {
		return 2
	}
	return 1
}

func (s *Server) handleGet(entityType models.EntityType) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		obj, ok := s.store.Get(entityType, params.ByName("country_code"), params.ByName("party_id"), objectKey(params))
		if !ok {
			sendError(w, http.StatusNotFound, models.StatusUnknownObject, "unknown object")
			return
		}
		setValidators(w, obj)
		sendSuccess(w, json.RawMessage(obj.Payload))
	}
}

func (s *Server) handleList(entityType models.EntityType) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		query := r.URL.Query()
		filter := store.Filter{
			Offset: utility.ToInt(query.Get("offset")),
			Limit:  utility.ToInt(query.Get("limit")),
		}
		if filter.Offset < 0 || filter.Limit < 0 {
			sendError(w, http.StatusBadRequest, models.StatusInvalidParams, "offset and limit must not be negative")
			return
		}
		if value := query.Get("date_from"); value != "" {
			from, err := parseTimestamp(value)
			if err != nil {
				sendError(w, http.StatusBadRequest, models.StatusInvalidParams, "invalid date_from")
				return
			}
			filter.From = &from
		}
		if value := query.Get("date_to"); value != "" {
			to, err := parseTimestamp(value)
			if err != nil {
				sendError(w, http.StatusBadRequest, models.StatusInvalidParams, "invalid date_to")
				return
			}
			filter.To = &to
		}

		result := s.store.List(entityType, s.conf.Party.CountryCode, s.conf.Party.PartyId, filter)
		payloads := make([]json.RawMessage, 0, len(result.Objects))
		for _, obj := range result.Objects {
			payloads = append(payloads, obj.Payload)
		}
		setPaginationHeaders(w, result.Total, result.Filtered, filter.Limit)
		sendSuccess(w, payloads)
	}
}

func (s *Server) handlePut(entityType models.EntityType) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			sendError(w, http.StatusBadRequest, models.StatusInvalidParams, "error reading body")
			return
		}
		countryCode := params.ByName("country_code")
		partyId := params.ByName("party_id")
		key := objectKey(params)

		if err = validatePayload(entityType, keyDepth(params), countryCode, partyId, params, body); err != nil {
			sendError(w, http.StatusBadRequest, models.StatusInvalidParams, err.Error())
			return
		}

		obj, err := store.NewObject(entityType, countryCode, partyId, key, body)
		if err != nil {
			sendError(w, http.StatusBadRequest, models.StatusInvalidParams, err.Error())
			return
		}

		stored, created, err := s.store.AddOrUpdate(obj, downgradeOverride(r))
		if errors.Is(err, store.ErrConflict) {
			sendConflict(w, stored)
			return
		}
		if err != nil {
			sendError(w, http.StatusInternalServerError, models.StatusServerError, err.Error())
			return
		}
		setValidators(w, stored)
		if created {
			sendCreated(w, nil)
			return
		}
		sendSuccess(w, nil)
	}
}

func (s *Server) handlePatch(entityType models.EntityType) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			sendError(w, http.StatusBadRequest, models.StatusInvalidParams, "error reading body")
			return
		}

		stored, err := s.store.Patch(
			entityType,
			params.ByName("country_code"),
			params.ByName("party_id"),
			objectKey(params),
			body,
			protectedFields(entityType, keyDepth(params)),
			downgradeOverride(r),
		)
		switch {
		case errors.Is(err, store.ErrNotFound):
			sendError(w, http.StatusNotFound, models.StatusUnknownObject, "unknown object")
		case errors.Is(err, store.ErrInvalidPatch), errors.Is(err, store.ErrInvalidResultingState):
			sendError(w, http.StatusBadRequest, models.StatusInvalidParams, err.Error())
		case errors.Is(err, store.ErrConflict):
			sendError(w, http.StatusConflict, models.StatusClientError, "patch is older than stored entity")
		case err != nil:
			sendError(w, http.StatusInternalServerError, models.StatusServerError, err.Error())
		default:
			setValidators(w, stored)
			sendSuccess(w, nil)
		}
	}
}

func (s *Server) handleDelete(entityType models.EntityType) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		// CDRs are append-only by protocol convention; deletion is a
		// non-standard extension behind an explicit setting
		if entityType == models.EntityCdr && !s.conf.Ocpi.AllowCdrDelete {
			sendError(w, http.StatusMethodNotAllowed, models.StatusInvalidParams, "cdr deletion is not permitted")
			return
		}
		removed := s.store.Remove(entityType, params.ByName("country_code"), params.ByName("party_id"), objectKey(params))
		if !removed {
			sendError(w, http.StatusNotFound, models.StatusUnknownObject, "unknown object")
			return
		}
		sendSuccess(w, nil)
	}
}

// downgradeOverride reads the per-request force_downgrade flag. When the
// query does not carry it the store falls back to the global policy.
func downgradeOverride(r *http.Request) *bool {
	value := r.URL.Query().Get("force_downgrade")
	if value == "" {
		return nil
	}
	force := value == "true" || value == "1"
	return &force
}

func validatePayload(entityType models.EntityType, depth int, countryCode, partyId string, params httprouter.Params, body []byte) error {
	switch entityType {
	case models.EntityLocation:
		switch depth {
		case 1:
			var location entity.Location
			if err := json.Unmarshal(body, &location); err != nil {
				return fmt.Errorf("unparsable location: %w", err)
			}
			if err := location.Validate(); err != nil {
				return err
			}
			return matchIdentity(location.CountryCode, location.PartyId, location.Id, countryCode, partyId, params.ByName("id"))
		case 2:
			var evse entity.Evse
			if err := json.Unmarshal(body, &evse); err != nil {
				return fmt.Errorf("unparsable evse: %w", err)
			}
			if err := evse.Validate(); err != nil {
				return err
			}
			if evse.Uid != params.ByName("evse_uid") {
				return utility.Err("evse uid does not match url")
			}
		case 3:
			var connector entity.Connector
			if err := json.Unmarshal(body, &connector); err != nil {
				return fmt.Errorf("unparsable connector: %w", err)
			}
			if err := connector.Validate(); err != nil {
				return err
			}
			if connector.Id != params.ByName("connector_id") {
				return utility.Err("connector id does not match url")
			}
		}
	case models.EntitySession:
		var session entity.Session
		if err := json.Unmarshal(body, &session); err != nil {
			return fmt.Errorf("unparsable session: %w", err)
		}
		if err := session.Validate(); err != nil {
			return err
		}
		return matchIdentity(session.CountryCode, session.PartyId, session.Id, countryCode, partyId, params.ByName("id"))
	case models.EntityCdr:
		var cdr entity.Cdr
		if err := json.Unmarshal(body, &cdr); err != nil {
			return fmt.Errorf("unparsable cdr: %w", err)
		}
		if err := cdr.Validate(); err != nil {
			return err
		}
		return matchIdentity(cdr.CountryCode, cdr.PartyId, cdr.Id, countryCode, partyId, params.ByName("id"))
	case models.EntityTariff:
		var t tariff.Tariff
		if err := json.Unmarshal(body, &t); err != nil {
			return fmt.Errorf("unparsable tariff: %w", err)
		}
		if err := t.Validate(); err != nil {
			return err
		}
		return matchIdentity(t.CountryCode, t.PartyId, t.Id, countryCode, partyId, params.ByName("id"))
	case models.EntityToken:
		var token entity.Token
		if err := json.Unmarshal(body, &token); err != nil {
			return fmt.Errorf("unparsable token: %w", err)
		}
		if err := token.Validate(); err != nil {
			return err
		}
		return matchIdentity(token.CountryCode, token.PartyId, token.Uid, countryCode, partyId, params.ByName("id"))
	}
	return nil
}

func matchIdentity(bodyCountry, bodyParty, bodyId, urlCountry, urlParty, urlId string) error {
	if bodyCountry != urlCountry || bodyParty != urlParty {
		return utility.Err("country_code or party_id does not match url")
	}
	if bodyId != urlId {
		return utility.Err("object id does not match url")
	}
	return nil
}

func protectedFields(entityType models.EntityType, depth int) []string {
	if entityType == models.EntityLocation {
		switch depth {
		case 2:
			return []string{"uid"}
		case 3:
			return []string{"id"}
		}
	}
	if entityType == models.EntityToken {
		return []string{"country_code", "party_id", "uid"}
	}
	return []string{"country_code", "party_id", "id"}
}
