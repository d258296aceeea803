package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"ocpinode/models"
	"time"

	"github.com/julienschmidt/httprouter"
)

// CommandHandler executes a received remote command against the local
// charging infrastructure. It is the boundary to the charge point side of
// the system.
type CommandHandler interface {
	Execute(kind models.CommandKind, payload json.RawMessage) models.CommandResult
}

// ResultSender delivers the asynchronous command result to the caller's
// response URL.
type ResultSender interface {
	Post(ctx context.Context, url, token string, data, out interface{}) error
}

type acceptAllHandler struct{}

func (acceptAllHandler) Execute(models.CommandKind, json.RawMessage) models.CommandResult {
	return models.CommandResult{Result: "ACCEPTED"}
}

var commandKinds = map[string]models.CommandKind{
	"RESERVE_NOW":        models.CommandReserveNow,
	"CANCEL_RESERVATION": models.CommandCancelReservation,
	"START_SESSION":      models.CommandStartSession,
	"STOP_SESSION":       models.CommandStopSession,
	"UNLOCK_CONNECTOR":   models.CommandUnlockConnector,
}

// handleCommand is the receiver side: an EMSP asks this node to act on its
// infrastructure. The transport answer only acknowledges receipt; the
// outcome travels later to the caller's response_url.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	kind, ok := commandKinds[params.ByName("command")]
	if !ok {
		sendError(w, http.StatusNotFound, models.StatusInvalidParams, "unknown command")
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		sendError(w, http.StatusBadRequest, models.StatusInvalidParams, "error reading body")
		return
	}
	var request struct {
		ResponseUrl string `json:"response_url"`
	}
	if err = json.Unmarshal(body, &request); err != nil || request.ResponseUrl == "" {
		sendError(w, http.StatusBadRequest, models.StatusInvalidParams, "missing response_url")
		return
	}

	// the caller's own token authenticates our result delivery
	var resultToken string
	if party, found := s.registry.PartyForToken(tokenFromRequest(r)); found && len(party.Remote) > 0 {
		resultToken = party.Remote[0].Token
	}

	go s.executeCommand(kind, json.RawMessage(body), request.ResponseUrl, resultToken)

	sendSuccess(w, models.CommandResponse{
		Result:  "ACCEPTED",
		Timeout: s.conf.Ocpi.CommandTimeout,
	})
}

func (s *Server) executeCommand(kind models.CommandKind, payload json.RawMessage, responseUrl, token string) {
	result := s.handler.Execute(kind, payload)
	if s.sender == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(s.conf.Ocpi.RequestTimeout)*time.Second)
	defer cancel()
	if err := s.sender.Post(ctx, responseUrl, token, result, nil); err != nil {
		s.logger.Error(fmt.Sprintf("delivering %s result to %s", kind, responseUrl), err)
	}
}

// handleCommandCallback is the sender side re-entry point: the counterparty
// posts the outcome of a command this node dispatched earlier.
func (s *Server) handleCommandCallback(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		sendError(w, http.StatusBadRequest, models.StatusInvalidParams, "error reading body")
		return
	}
	var result models.CommandResult
	if err = json.Unmarshal(body, &result); err != nil || result.Result == "" {
		sendError(w, http.StatusBadRequest, models.StatusInvalidParams, "unparsable command result")
		return
	}

	correlationId := params.ByName("correlation_id")
	if !s.correlator.MatchCallback(correlationId, result) {
		// duplicate or very late callbacks are expected, never an error
		s.logger.Debug(fmt.Sprintf("unmatched callback %s from %s", correlationId, r.RemoteAddr))
	}
	sendSuccess(w, nil)
}

// handleCredentials is the registration handshake receiver: the caller
// hands over the token and versions URL we should use towards them, and
// receives a fresh token of ours in return.
func (s *Server) handleCredentials(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		sendError(w, http.StatusBadRequest, models.StatusInvalidParams, "error reading body")
		return
	}
	var credentials models.Credentials
	if err = json.Unmarshal(body, &credentials); err != nil {
		sendError(w, http.StatusBadRequest, models.StatusInvalidParams, "unparsable credentials")
		return
	}
	if credentials.Token == "" || credentials.Url == "" || len(credentials.Roles) == 0 {
		sendError(w, http.StatusBadRequest, models.StatusInvalidParams, "token, url and roles are required")
		return
	}

	party, found := s.registry.PartyForToken(tokenFromRequest(r))
	if !found {
		sendError(w, http.StatusUnauthorized, models.StatusClientError, "invalid or blocked token")
		return
	}

	if err = s.registry.SetRemoteAccess(party.Id, models.RemoteAccess{
		Token:       credentials.Token,
		VersionsUrl: credentials.Url,
	}); err != nil {
		sendError(w, http.StatusInternalServerError, models.StatusServerError, err.Error())
		return
	}

	// the old token stays valid until the counterparty confirms the new one
	value, err := s.registry.IssueToken(party.Id, credentials.Identities())
	if err != nil {
		sendError(w, http.StatusInternalServerError, models.StatusServerError, err.Error())
		return
	}

	roles := make([]models.CredentialsRole, 0, len(s.conf.Party.Roles))
	for _, role := range s.conf.Party.Roles {
		roles = append(roles, models.CredentialsRole{
			Role:        models.PartyRole(role),
			PartyId:     s.conf.Party.PartyId,
			CountryCode: s.conf.Party.CountryCode,
			BusinessDetails: &models.BusinessDetails{
				Name: s.conf.Party.Name,
			},
		})
	}
	sendSuccess(w, models.Credentials{
		Token: value,
		Url:   s.conf.Ocpi.ExternalUrl + "/ocpi/versions",
		Roles: roles,
	})
}
