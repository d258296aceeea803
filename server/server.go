package server

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"ocpinode/internal"
	"ocpinode/internal/config"
	"ocpinode/metrics/counters"
	"ocpinode/models"
	"ocpinode/ocpi/commands"
	"ocpinode/ocpi/registry"
	"ocpinode/ocpi/store"
	"strings"

	"github.com/julienschmidt/httprouter"
)

// Server is the OCPI gateway: it authenticates inbound federation traffic
// against the access registry and carries the core results back onto the
// wire in the status envelope.
type Server struct {
	conf       *config.Config
	httpServer *http.Server
	logger     internal.LogHandler
	registry   *registry.Registry
	store      *store.Store
	correlator *commands.Correlator
	sender     ResultSender
	handler    CommandHandler
}

type module struct {
	entityType models.EntityType
	role       models.PartyRole
}

// tokens flow the opposite way to CPO data: an EMSP pushes them to us
var modules = []module{
	{models.EntityLocation, models.RoleCPO},
	{models.EntitySession, models.RoleCPO},
	{models.EntityCdr, models.RoleCPO},
	{models.EntityTariff, models.RoleCPO},
	{models.EntityToken, models.RoleEMSP},
}

func NewServer(conf *config.Config, logger internal.LogHandler) *Server {
	server := &Server{
		conf:    conf,
		logger:  logger,
		handler: acceptAllHandler{},
	}
	router := httprouter.New()
	server.Register(router)
	server.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%s", conf.Listen.BindIP, conf.Listen.Port),
		Handler: router,
	}
	return server
}

func (s *Server) SetRegistry(reg *registry.Registry) {
	s.registry = reg
}

func (s *Server) SetStore(st *store.Store) {
	s.store = st
}

func (s *Server) SetCorrelator(c *commands.Correlator) {
	s.correlator = c
}

func (s *Server) SetResultSender(sender ResultSender) {
	s.sender = sender
}

// SetCommandHandler replaces the default accept-all command executor with
// the charge point infrastructure adapter.
func (s *Server) SetCommandHandler(handler CommandHandler) {
	s.handler = handler
}

func (s *Server) Register(router *httprouter.Router) {
	router.GET("/ocpi/versions", s.authenticated(s.handleVersions))
	for _, version := range s.conf.Ocpi.Versions {
		prefix := "/ocpi/" + version
		router.GET(prefix, s.authenticated(s.handleVersionDetails(version)))
		router.POST(prefix+"/credentials", s.authenticated(s.handleCredentials))

		for _, m := range modules {
			base := prefix + "/" + string(m.entityType)
			router.GET(base, s.protected(m.role, s.handleList(m.entityType)))
			router.GET(base+"/:country_code/:party_id/:id", s.protected(m.role, s.handleGet(m.entityType)))
			router.PUT(base+"/:country_code/:party_id/:id", s.protected(m.role, s.handlePut(m.entityType)))
			router.PATCH(base+"/:country_code/:party_id/:id", s.protected(m.role, s.handlePatch(m.entityType)))
			router.DELETE(base+"/:country_code/:party_id/:id", s.protected(m.role, s.handleDelete(m.entityType)))
			if m.entityType == models.EntityLocation {
				for _, tail := range []string{"/:evse_uid", "/:evse_uid/:connector_id"} {
					path := base + "/:country_code/:party_id/:id" + tail
					router.GET(path, s.protected(m.role, s.handleGet(m.entityType)))
					router.PUT(path, s.protected(m.role, s.handlePut(m.entityType)))
					router.PATCH(path, s.protected(m.role, s.handlePatch(m.entityType)))
					router.DELETE(path, s.protected(m.role, s.handleDelete(m.entityType)))
				}
			}
		}

		router.POST(prefix+"/commands/:command", s.protected(models.RoleEMSP, s.handleCommand))
		router.POST(prefix+"/commands/:command/:correlation_id", s.protected(models.RoleCPO, s.handleCommandCallback))
	}
}

func (s *Server) Start() error {
	if s.conf.Listen.TLS {
		cert, err := tls.LoadX509KeyPair(s.conf.Listen.CertFile, s.conf.Listen.KeyFile)
		if err != nil {
			return fmt.Errorf("ocpi server: failed to load certificate: %v", err)
		}
		s.httpServer.TLSConfig = &tls.Config{
			MinVersion:   tls.VersionTLS12,
			Certificates: []tls.Certificate{cert},
		}
		return s.httpServer.ListenAndServeTLS("", "")
	}
	return s.httpServer.ListenAndServe()
}

func tokenFromRequest(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	if strings.HasPrefix(header, "Token ") {
		return strings.TrimPrefix(header, "Token ")
	}
	return ""
}

// authenticated admits any token that resolves to an allowed party.
// Blocked and unknown tokens get the same answer.
func (s *Server) authenticated(handle httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		token := tokenFromRequest(r)
		if token == "" {
			counters.CountAuthFailure("missing_token")
			sendError(w, http.StatusUnauthorized, models.StatusClientError, "missing token")
			return
		}
		_, status, ok := s.registry.Resolve(token)
		if !ok || status != models.TokenAllowed {
			counters.CountAuthFailure("invalid_token")
			s.logger.Warn(fmt.Sprintf("rejected token from %s", r.RemoteAddr))
			sendError(w, http.StatusUnauthorized, models.StatusClientError, "invalid or blocked token")
			return
		}
		handle(w, r, params)
	}
}

// protected additionally requires the token to act in the given role.
func (s *Server) protected(role models.PartyRole, handle httprouter.Handle) httprouter.Handle {
	return s.authenticated(func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		token := tokenFromRequest(r)
		if !s.registry.Authorize(token, role) {
			counters.CountAuthFailure("insufficient_role")
			s.logger.Warn(fmt.Sprintf("token from %s lacks role %s", r.RemoteAddr, role))
			sendError(w, http.StatusForbidden, models.StatusClientError, "insufficient role")
			return
		}
		handle(w, r, params)
	})
}

func (s *Server) handleVersions(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	versions := make([]models.Version, 0, len(s.conf.Ocpi.Versions))
	for _, version := range s.conf.Ocpi.Versions {
		versions = append(versions, models.Version{
			Version: version,
			Url:     s.conf.Ocpi.ExternalUrl + "/ocpi/" + version,
		})
	}
	sendSuccess(w, versions)
}

func (s *Server) handleVersionDetails(version string) httprouter.Handle {
	return func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		base := s.conf.Ocpi.ExternalUrl + "/ocpi/" + version
		endpoints := []models.Endpoint{
			{Identifier: "credentials", Role: "RECEIVER", Url: base + "/credentials"},
			{Identifier: "commands", Role: "RECEIVER", Url: base + "/commands"},
		}
		for _, m := range modules {
			endpoints = append(endpoints, models.Endpoint{
				Identifier: string(m.entityType),
				Role:       "RECEIVER",
				Url:        base + "/" + string(m.entityType),
			})
		}
		sendSuccess(w, models.VersionDetails{Version: version, Endpoints: endpoints})
	}
}
