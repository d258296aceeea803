package server

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"ocpinode/internal"
	"ocpinode/internal/config"
	"ocpinode/metrics/counters"
	"ocpinode/models"
	"ocpinode/ocpi/commands"
	"ocpinode/ocpi/registry"
	"ocpinode/ocpi/store"
	"ocpinode/ocpi/versions"
	"ocpinode/utility"
	"time"

	"github.com/julienschmidt/httprouter"
)

// Api is the administrative surface: party registration, token rotation,
// negotiation triggers, command dispatch and local data management.
type Api struct {
	conf       *config.Config
	httpServer *http.Server
	logger     internal.LogHandler
	registry   *registry.Registry
	negotiator *versions.Negotiator
	correlator *commands.Correlator
	store      *store.Store
	database   internal.Database
}

func NewServerApi(conf *config.Config, logger internal.LogHandler) *Api {
	server := &Api{
		conf:   conf,
		logger: logger,
	}
	router := httprouter.New()
	server.Register(router)
	server.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%s", conf.Api.BindIP, conf.Api.Port),
		Handler: router,
	}
	return server
}

func (s *Api) SetRegistry(reg *registry.Registry) {
	s.registry = reg
}

func (s *Api) SetNegotiator(n *versions.Negotiator) {
	s.negotiator = n
}

func (s *Api) SetCorrelator(c *commands.Correlator) {
	s.correlator = c
}

func (s *Api) SetStore(st *store.Store) {
	s.store = st
}

func (s *Api) SetDatabase(database internal.Database) {
	s.database = database
}

func (s *Api) Register(router *httprouter.Router) {
	router.GET("/api/parties", s.handleListParties)
	router.POST("/api/parties", s.handleRegisterParty)
	router.GET("/api/parties/:id", s.handleGetParty)
	router.DELETE("/api/parties/:id", s.handleRemoveParty)
	router.POST("/api/parties/:id/status", s.handlePartyStatus)
	router.POST("/api/parties/:id/tokens", s.handleIssueToken)
	router.DELETE("/api/parties/:id/tokens/:token", s.handleRevokeToken)
	router.POST("/api/parties/:id/negotiate", s.handleNegotiate)
	router.POST("/api/parties/:id/commands", s.handleDispatchCommand)
	router.GET("/api/commands/:id", s.handleCommandStatus)
	router.POST("/api/commands/:id/cancel", s.handleCancelCommand)
	router.PUT("/api/data/:type/:id", s.handlePutLocalObject)
	router.GET("/api/log", s.handleReadLog)
}

func (s *Api) Start() error {
	if s.conf.Api.TLS {
		cert, err := tls.LoadX509KeyPair(s.conf.Api.CertFile, s.conf.Api.KeyFile)
		if err != nil {
			return fmt.Errorf("api: failed to load certificate: %v", err)
		}
		s.httpServer.TLSConfig = &tls.Config{
			MinVersion:   tls.VersionTLS12,
			Certificates: []tls.Certificate{cert},
		}
		return s.httpServer.ListenAndServeTLS("", "")
	}
	return s.httpServer.ListenAndServe()
}

func (s *Api) handleListParties(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	sendSuccess(w, s.registry.Parties())
}

func (s *Api) handleGetParty(w http.ResponseWriter, _ *http.Request, params httprouter.Params) {
	party, ok := s.registry.Party(params.ByName("id"))
	if !ok {
		sendError(w, http.StatusNotFound, models.StatusUnknownObject, "unknown party")
		return
	}
	sendSuccess(w, party)
}

func (s *Api) handleRegisterParty(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var party models.RemoteParty
	if err := json.NewDecoder(r.Body).Decode(&party); err != nil {
		sendError(w, http.StatusBadRequest, models.StatusInvalidParams, "unparsable party")
		return
	}
	if party.Id == "" || len(party.Identities) == 0 {
		sendError(w, http.StatusBadRequest, models.StatusInvalidParams, "id and identities are required")
		return
	}
	if err := s.registry.Register(&party); err != nil {
		sendError(w, http.StatusConflict, models.StatusClientError, err.Error())
		return
	}
	sendCreated(w, party)
}

func (s *Api) handleRemoveParty(w http.ResponseWriter, _ *http.Request, params httprouter.Params) {
	if err := s.registry.Remove(params.ByName("id")); err != nil {
		sendError(w, http.StatusNotFound, models.StatusUnknownObject, err.Error())
		return
	}
	sendSuccess(w, nil)
}

func (s *Api) handlePartyStatus(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	var request struct {
		Status models.PartyStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		sendError(w, http.StatusBadRequest, models.StatusInvalidParams, "unparsable status")
		return
	}
	switch request.Status {
	case models.PartyPending, models.PartyAllowed, models.PartyBlocked:
	default:
		sendError(w, http.StatusBadRequest, models.StatusInvalidParams, "unknown status")
		return
	}
	if err := s.registry.SetStatus(params.ByName("id"), request.Status); err != nil {
		sendError(w, http.StatusNotFound, models.StatusUnknownObject, err.Error())
		return
	}
	sendSuccess(w, nil)
}

func (s *Api) handleIssueToken(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	var request struct {
		Identities []models.PartyIdentity `json:"identities"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		sendError(w, http.StatusBadRequest, models.StatusInvalidParams, "unparsable identities")
		return
	}
	value, err := s.registry.IssueToken(params.ByName("id"), request.Identities)
	if err != nil {
		sendError(w, http.StatusNotFound, models.StatusUnknownObject, err.Error())
		return
	}
	sendCreated(w, map[string]string{"token": value})
}

func (s *Api) handleRevokeToken(w http.ResponseWriter, _ *http.Request, params httprouter.Params) {
	s.registry.RevokeToken(params.ByName("token"))
	sendSuccess(w, nil)
}

func (s *Api) handleNegotiate(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	party, ok := s.registry.Party(params.ByName("id"))
	if !ok {
		sendError(w, http.StatusNotFound, models.StatusUnknownObject, "unknown party")
		return
	}
	if r.URL.Query().Get("refresh") == "true" {
		s.negotiator.Invalidate(party.Id)
	}
	set, err := s.negotiator.Negotiate(r.Context(), party)
	switch {
	case errors.Is(err, versions.ErrNoCompatibleVersion):
		sendError(w, http.StatusConflict, models.StatusUnsupportedVer, err.Error())
	case errors.Is(err, versions.ErrProtocolViolation):
		sendError(w, http.StatusBadGateway, models.StatusServerError, err.Error())
	case err != nil:
		sendError(w, http.StatusServiceUnavailable, models.StatusServerError, err.Error())
	default:
		sendSuccess(w, set)
	}
}

func (s *Api) handleDispatchCommand(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	var request struct {
		Kind          string                 `json:"kind"`
		CorrelationId string                 `json:"correlation_id"`
		Payload       map[string]interface{} `json:"payload"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		sendError(w, http.StatusBadRequest, models.StatusInvalidParams, "unparsable command")
		return
	}
	kind, ok := commandKinds[request.Kind]
	if !ok {
		sendError(w, http.StatusBadRequest, models.StatusInvalidParams, "unknown command kind")
		return
	}
	party, ok := s.registry.Party(params.ByName("id"))
	if !ok {
		sendError(w, http.StatusNotFound, models.StatusUnknownObject, "unknown party")
		return
	}

	set, err := s.negotiator.Negotiate(r.Context(), party)
	if err != nil {
		sendError(w, http.StatusServiceUnavailable, models.StatusServerError, err.Error())
		return
	}
	moduleUrl, ok := set.Endpoint("commands")
	if !ok {
		sendError(w, http.StatusConflict, models.StatusClientError, "party offers no commands module")
		return
	}

	correlationId := request.CorrelationId
	if correlationId == "" {
		correlationId = utility.NewUUID()
	}
	if request.Payload == nil {
		request.Payload = make(map[string]interface{})
	}
	request.Payload["response_url"] = fmt.Sprintf("%s/ocpi/%s/commands/%s/%s",
		s.conf.Ocpi.ExternalUrl, set.Version, request.Kind, correlationId)

	origin := models.PartyIdentity{
		CountryCode: s.conf.Party.CountryCode,
		PartyId:     s.conf.Party.PartyId,
		Role:        models.RoleEMSP,
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(s.conf.Ocpi.RequestTimeout)*time.Second)
	defer cancel()
	command, err := s.correlator.Dispatch(ctx, kind, origin, party, moduleUrl+"/"+request.Kind, correlationId, request.Payload)
	if err != nil {
		sendError(w, http.StatusServiceUnavailable, models.StatusServerError, err.Error())
		return
	}
	counters.ObservePendingCommands(s.correlator.Pending())
	sendCreated(w, command)
}

func (s *Api) handleCommandStatus(w http.ResponseWriter, _ *http.Request, params httprouter.Params) {
	command, ok := s.correlator.Status(params.ByName("id"))
	if !ok {
		sendError(w, http.StatusNotFound, models.StatusUnknownObject, "unknown command")
		return
	}
	sendSuccess(w, command)
}

func (s *Api) handleCancelCommand(w http.ResponseWriter, _ *http.Request, params httprouter.Params) {
	if !s.correlator.Cancel(params.ByName("id")) {
		sendError(w, http.StatusConflict, models.StatusClientError, "command is not pending")
		return
	}
	counters.ObservePendingCommands(s.correlator.Pending())
	sendSuccess(w, nil)
}

// handlePutLocalObject stores an object owned by this node's own party, so
// it can be served to counterparties on the list endpoints.
func (s *Api) handlePutLocalObject(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	entityType := models.EntityType(params.ByName("type"))
	switch entityType {
	case models.EntityLocation, models.EntitySession, models.EntityCdr, models.EntityTariff, models.EntityToken:
	default:
		sendError(w, http.StatusBadRequest, models.StatusInvalidParams, "unknown entity type")
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		sendError(w, http.StatusBadRequest, models.StatusInvalidParams, "error reading body")
		return
	}
	obj, err := store.NewObject(entityType, s.conf.Party.CountryCode, s.conf.Party.PartyId, params.ByName("id"), body)
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

func (s *Api) handleReadLog(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	if s.database == nil {
		sendError(w, http.StatusNotFound, models.StatusUnknownObject, "database is disabled")
		return
	}
	data, err := s.database.ReadLog()
	if err != nil {
		sendError(w, http.StatusInternalServerError, models.StatusServerError, err.Error())
		return
	}
	sendSuccess(w, data)
}
