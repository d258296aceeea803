package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"ocpinode/internal/config"
	"ocpinode/models"
	"ocpinode/ocpi/registry"
	"ocpinode/ocpi/store"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testLogger struct{}

func (testLogger) FeatureEvent(string, string, string) {}
func (testLogger) Debug(string)                        {}
func (testLogger) Warn(string)                         {}
func (testLogger) Error(string, error)                 {}

type recordingSender struct {
	mu    sync.Mutex
	urls  []string
	bodys []interface{}
}

func (s *recordingSender) Post(_ context.Context, url, _ string, data, _ interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.urls = append(s.urls, url)
	s.bodys = append(s.bodys, data)
	return nil
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.urls)
}

func testConfig() *config.Config {
	conf := &config.Config{}
	conf.Party.CountryCode = "ES"
	conf.Party.PartyId = "EVS"
	conf.Party.Roles = []string{"CPO"}
	conf.Party.Name = "test node"
	conf.Ocpi.ExternalUrl = "http://node.example"
	conf.Ocpi.Versions = []string{"2.2.1"}
	conf.Ocpi.RequestTimeout = 5
	conf.Ocpi.CommandTimeout = 30
	return conf
}

type gateway struct {
	server   *Server
	router   *httprouter.Router
	registry *registry.Registry
	store    *store.Store
	sender   *recordingSender
}

func newGateway(t *testing.T, conf *config.Config) *gateway {
	t.Helper()
	reg := registry.New()
	cpoIdentity := models.PartyIdentity{CountryCode: "DE", PartyId: "CPO", Role: models.RoleCPO}
	emspIdentity := models.PartyIdentity{CountryCode: "DE", PartyId: "MSP", Role: models.RoleEMSP}
	require.NoError(t, reg.Register(&models.RemoteParty{
		Id:         "cpo-party",
		Status:     models.PartyAllowed,
		Identities: []models.PartyIdentity{cpoIdentity},
		Tokens:     []models.AccessToken{{Token: "cpo-token", Status: models.TokenAllowed, Identities: []models.PartyIdentity{cpoIdentity}}},
		Remote:     []models.RemoteAccess{{Token: "our-token-at-cpo", VersionsUrl: "http://cpo.example/ocpi/versions"}},
	}))
	require.NoError(t, reg.Register(&models.RemoteParty{
		Id:         "emsp-party",
		Status:     models.PartyAllowed,
		Identities: []models.PartyIdentity{emspIdentity},
		Tokens:     []models.AccessToken{{Token: "emsp-token", Status: models.TokenAllowed, Identities: []models.PartyIdentity{emspIdentity}}},
		Remote:     []models.RemoteAccess{{Token: "our-token-at-emsp", VersionsUrl: "http://emsp.example/ocpi/versions"}},
	}))

	st := store.New(conf.Ocpi.AllowDowngrades)
	sender := &recordingSender{}

	srv := NewServer(conf, testLogger{})
	srv.SetRegistry(reg)
	srv.SetStore(st)
	srv.SetResultSender(sender)

	router := httprouter.New()
	srv.Register(router)
	return &gateway{server: srv, router: router, registry: reg, store: st, sender: sender}
}

func (g *gateway) request(method, path, token, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	r := httptest.NewRequest(method, path, reader)
	if token != "" {
		r.Header.Set("Authorization", "Token "+token)
	}
	w := httptest.NewRecorder()
	g.router.ServeHTTP(w, r)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) models.Envelope {
	t.Helper()
	var envelope models.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope
}

func locationBody(id string, lastUpdated time.Time) string {
	return fmt.Sprintf(`{"country_code":"DE","party_id":"CPO","id":%q,"address":"Main St 1","city":"Berlin","country":"DEU","coordinates":{"latitude":"52.5","longitude":"13.4"},"last_updated":%q}`,
		id, lastUpdated.UTC().Format(time.RFC3339))
}

func TestAuthentication(t *testing.T) {
	g := newGateway(t, testConfig())

	t.Run("missing token", func(t *testing.T) {
		w := g.request(http.MethodGet, "/ocpi/versions", "", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, models.StatusClientError, decodeEnvelope(t, w).StatusCode)
	})

	t.Run("unknown token", func(t *testing.T) {
		w := g.request(http.MethodGet, "/ocpi/versions", "who-is-this", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("blocked party looks like unknown token", func(t *testing.T) {
		require.NoError(t, g.registry.SetStatus("cpo-party", models.PartyBlocked))
		w := g.request(http.MethodGet, "/ocpi/versions", "cpo-token", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		blocked := decodeEnvelope(t, w)

		wUnknown := g.request(http.MethodGet, "/ocpi/versions", "who-is-this", "")
		unknown := decodeEnvelope(t, wUnknown)
		assert.Equal(t, unknown.StatusMessage, blocked.StatusMessage)
		require.NoError(t, g.registry.SetStatus("cpo-party", models.PartyAllowed))
	})

	t.Run("valid token", func(t *testing.T) {
		w := g.request(http.MethodGet, "/ocpi/versions", "cpo-token", "")
		assert.Equal(t, http.StatusOK, w.Code)
		envelope := decodeEnvelope(t, w)
		assert.Equal(t, models.StatusSuccess, envelope.StatusCode)
	})
}

func TestRoleGating(t *testing.T) {
	g := newGateway(t, testConfig())
	body := locationBody("LOC1", time.Now())

	t.Run("emsp cannot push locations", func(t *testing.T) {
		w := g.request(http.MethodPut, "/ocpi/2.2.1/locations/DE/CPO/LOC1", "emsp-token", body)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("cpo can push locations", func(t *testing.T) {
		w := g.request(http.MethodPut, "/ocpi/2.2.1/locations/DE/CPO/LOC1", "cpo-token", body)
		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("cpo cannot push tokens", func(t *testing.T) {
		w := g.request(http.MethodPut, "/ocpi/2.2.1/tokens/DE/CPO/TK1", "cpo-token", `{}`)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestPutAndGet(t *testing.T) {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("create sets validators", func(t *testing.T) {
		g := newGateway(t, testConfig())
		w := g.request(http.MethodPut, "/ocpi/2.2.1/locations/DE/CPO/LOC1", "cpo-token", locationBody("LOC1", base))
		require.Equal(t, http.StatusCreated, w.Code)
		assert.NotEmpty(t, w.Header().Get("ETag"))
		assert.NotEmpty(t, w.Header().Get("Last-Modified"))
	})

	t.Run("get echoes payload and validators", func(t *testing.T) {
		g := newGateway(t, testConfig())
		put := g.request(http.MethodPut, "/ocpi/2.2.1/locations/DE/CPO/LOC1", "cpo-token", locationBody("LOC1", base))
		require.Equal(t, http.StatusCreated, put.Code)

		w := g.request(http.MethodGet, "/ocpi/2.2.1/locations/DE/CPO/LOC1", "cpo-token", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, put.Header().Get("ETag"), w.Header().Get("ETag"))

		envelope := decodeEnvelope(t, w)
		data, err := json.Marshal(envelope.Data)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"LOC1"`)
	})

	t.Run("identity mismatch rejected", func(t *testing.T) {
		g := newGateway(t, testConfig())
		w := g.request(http.MethodPut, "/ocpi/2.2.1/locations/DE/XXX/LOC1", "cpo-token", locationBody("LOC1", base))
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, models.StatusInvalidParams, decodeEnvelope(t, w).StatusCode)
	})

	t.Run("unknown object", func(t *testing.T) {
		g := newGateway(t, testConfig())
		w := g.request(http.MethodGet, "/ocpi/2.2.1/locations/DE/CPO/NOPE", "cpo-token", "")
		require.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, models.StatusUnknownObject, decodeEnvelope(t, w).StatusCode)
	})
}

func TestDowngradePrevention(t *testing.T) {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("stale write conflicts with stored payload echoed", func(t *testing.T) {
		g := newGateway(t, testConfig())
		require.Equal(t, http.StatusCreated,
			g.request(http.MethodPut, "/ocpi/2.2.1/locations/DE/CPO/LOC1", "cpo-token", locationBody("LOC1", base)).Code)

		w := g.request(http.MethodPut, "/ocpi/2.2.1/locations/DE/CPO/LOC1", "cpo-token", locationBody("LOC1", base.Add(-time.Hour)))
		require.Equal(t, http.StatusConflict, w.Code)
		envelope := decodeEnvelope(t, w)
		assert.Equal(t, models.StatusClientError, envelope.StatusCode)
		data, err := json.Marshal(envelope.Data)
		require.NoError(t, err)
		assert.Contains(t, string(data), base.Format(time.RFC3339))
	})

	t.Run("force_downgrade flag overrides", func(t *testing.T) {
		g := newGateway(t, testConfig())
		require.Equal(t, http.StatusCreated,
			g.request(http.MethodPut, "/ocpi/2.2.1/locations/DE/CPO/LOC1", "cpo-token", locationBody("LOC1", base)).Code)

		w := g.request(http.MethodPut, "/ocpi/2.2.1/locations/DE/CPO/LOC1?force_downgrade=true", "cpo-token", locationBody("LOC1", base.Add(-time.Hour)))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("flag wins over permissive global default", func(t *testing.T) {
		conf := testConfig()
		conf.Ocpi.AllowDowngrades = true
		g := newGateway(t, conf)
		require.Equal(t, http.StatusCreated,
			g.request(http.MethodPut, "/ocpi/2.2.1/locations/DE/CPO/LOC1", "cpo-token", locationBody("LOC1", base)).Code)

		w := g.request(http.MethodPut, "/ocpi/2.2.1/locations/DE/CPO/LOC1?force_downgrade=false", "cpo-token", locationBody("LOC1", base.Add(-time.Hour)))
		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestListPagination(t *testing.T) {
	g := newGateway(t, testConfig())
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	// list serves this node's own data
	for i := 0; i < 10; i++ {
		key := fmt.Sprintf("S%d", i)
		payload := fmt.Sprintf(`{"country_code":"ES","party_id":"EVS","id":%q,"last_updated":%q}`,
			key, base.Add(time.Duration(i)*time.Hour).Format(time.RFC3339))
		obj, err := store.NewObject(models.EntitySession, "ES", "EVS", key, json.RawMessage(payload))
		require.NoError(t, err)
		_, _, err = g.store.AddOrUpdate(obj, nil)
		require.NoError(t, err)
	}

	t.Run("page with headers", func(t *testing.T) {
		w := g.request(http.MethodGet, "/ocpi/2.2.1/sessions?offset=3&limit=4", "cpo-token", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "10", w.Header().Get("X-Total-Count"))
		assert.Equal(t, "10", w.Header().Get("X-Full-Count"))
		assert.Equal(t, "4", w.Header().Get("X-Limit"))

		envelope := decodeEnvelope(t, w)
		data, err := json.Marshal(envelope.Data)
		require.NoError(t, err)
		var page []map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &page))
		require.Len(t, page, 4)
		assert.Equal(t, "S3", page[0]["id"])
		assert.Equal(t, "S6", page[3]["id"])
	})

	t.Run("date window narrows the count", func(t *testing.T) {
		from := base.Add(2 * time.Hour).Format(time.RFC3339)
		to := base.Add(5 * time.Hour).Format(time.RFC3339)
		w := g.request(http.MethodGet, "/ocpi/2.2.1/sessions?date_from="+from+"&date_to="+to, "cpo-token", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "3", w.Header().Get("X-Total-Count"))
		assert.Equal(t, "10", w.Header().Get("X-Full-Count"))
	})

	t.Run("invalid date", func(t *testing.T) {
		w := g.request(http.MethodGet, "/ocpi/2.2.1/sessions?date_from=yesterday", "cpo-token", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("negative offset rejected", func(t *testing.T) {
		w := g.request(http.MethodGet, "/ocpi/2.2.1/sessions?offset=-1", "cpo-token", "")
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, models.StatusInvalidParams, decodeEnvelope(t, w).StatusCode)
	})

	t.Run("negative limit rejected", func(t *testing.T) {
		w := g.request(http.MethodGet, "/ocpi/2.2.1/sessions?limit=-5", "cpo-token", "")
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, models.StatusInvalidParams, decodeEnvelope(t, w).StatusCode)
	})
}

func TestPatch(t *testing.T) {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("partial update", func(t *testing.T) {
		g := newGateway(t, testConfig())
		require.Equal(t, http.StatusCreated,
			g.request(http.MethodPut, "/ocpi/2.2.1/locations/DE/CPO/LOC1", "cpo-token", locationBody("LOC1", base)).Code)

		w := g.request(http.MethodPatch, "/ocpi/2.2.1/locations/DE/CPO/LOC1", "cpo-token", `{"city":"Hamburg"}`)
		require.Equal(t, http.StatusOK, w.Code)

		get := g.request(http.MethodGet, "/ocpi/2.2.1/locations/DE/CPO/LOC1", "cpo-token", "")
		data, err := json.Marshal(decodeEnvelope(t, get).Data)
		require.NoError(t, err)
		assert.Contains(t, string(data), "Hamburg")
		assert.Contains(t, string(data), "Main St 1")
	})

	t.Run("identity fields are protected", func(t *testing.T) {
		g := newGateway(t, testConfig())
		require.Equal(t, http.StatusCreated,
			g.request(http.MethodPut, "/ocpi/2.2.1/locations/DE/CPO/LOC1", "cpo-token", locationBody("LOC1", base)).Code)

		w := g.request(http.MethodPatch, "/ocpi/2.2.1/locations/DE/CPO/LOC1", "cpo-token", `{"id":"LOC2"}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, models.StatusInvalidParams, decodeEnvelope(t, w).StatusCode)
	})

	t.Run("stale patch honours force_downgrade", func(t *testing.T) {
		g := newGateway(t, testConfig())
		require.Equal(t, http.StatusCreated,
			g.request(http.MethodPut, "/ocpi/2.2.1/locations/DE/CPO/LOC1", "cpo-token", locationBody("LOC1", base)).Code)
		stale := fmt.Sprintf(`{"city":"Hamburg","last_updated":%q}`, base.Add(-time.Hour).Format(time.RFC3339))

		w := g.request(http.MethodPatch, "/ocpi/2.2.1/locations/DE/CPO/LOC1", "cpo-token", stale)
		require.Equal(t, http.StatusConflict, w.Code)

		w = g.request(http.MethodPatch, "/ocpi/2.2.1/locations/DE/CPO/LOC1?force_downgrade=true", "cpo-token", stale)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("force_downgrade=false wins over permissive global default", func(t *testing.T) {
		conf := testConfig()
		conf.Ocpi.AllowDowngrades = true
		g := newGateway(t, conf)
		require.Equal(t, http.StatusCreated,
			g.request(http.MethodPut, "/ocpi/2.2.1/locations/DE/CPO/LOC1", "cpo-token", locationBody("LOC1", base)).Code)
		stale := fmt.Sprintf(`{"city":"Hamburg","last_updated":%q}`, base.Add(-time.Hour).Format(time.RFC3339))

		w := g.request(http.MethodPatch, "/ocpi/2.2.1/locations/DE/CPO/LOC1?force_downgrade=false", "cpo-token", stale)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("patch on unknown object", func(t *testing.T) {
		g := newGateway(t, testConfig())
		w := g.request(http.MethodPatch, "/ocpi/2.2.1/locations/DE/CPO/NOPE", "cpo-token", `{"city":"Hamburg"}`)
		require.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, models.StatusUnknownObject, decodeEnvelope(t, w).StatusCode)
	})
}

func TestDelete(t *testing.T) {
	cdr := func(lastUpdated time.Time) string {
		return fmt.Sprintf(`{"country_code":"DE","party_id":"CPO","id":"CDR1","currency":"EUR","total_cost":10.5,"last_updated":%q}`,
			lastUpdated.UTC().Format(time.RFC3339))
	}
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("cdr deletion blocked by default", func(t *testing.T) {
		g := newGateway(t, testConfig())
		require.Equal(t, http.StatusCreated,
			g.request(http.MethodPut, "/ocpi/2.2.1/cdrs/DE/CPO/CDR1", "cpo-token", cdr(base)).Code)

		w := g.request(http.MethodDelete, "/ocpi/2.2.1/cdrs/DE/CPO/CDR1", "cpo-token", "")
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})

	t.Run("cdr deletion behind setting", func(t *testing.T) {
		conf := testConfig()
		conf.Ocpi.AllowCdrDelete = true
		g := newGateway(t, conf)
		require.Equal(t, http.StatusCreated,
			g.request(http.MethodPut, "/ocpi/2.2.1/cdrs/DE/CPO/CDR1", "cpo-token", cdr(base)).Code)

		w := g.request(http.MethodDelete, "/ocpi/2.2.1/cdrs/DE/CPO/CDR1", "cpo-token", "")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("location deletion", func(t *testing.T) {
		g := newGateway(t, testConfig())
		base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
		require.Equal(t, http.StatusCreated,
			g.request(http.MethodPut, "/ocpi/2.2.1/locations/DE/CPO/LOC1", "cpo-token", locationBody("LOC1", base)).Code)

		assert.Equal(t, http.StatusOK,
			g.request(http.MethodDelete, "/ocpi/2.2.1/locations/DE/CPO/LOC1", "cpo-token", "").Code)
		assert.Equal(t, http.StatusNotFound,
			g.request(http.MethodGet, "/ocpi/2.2.1/locations/DE/CPO/LOC1", "cpo-token", "").Code)
	})
}

func TestVersionsDocument(t *testing.T) {
	g := newGateway(t, testConfig())

	t.Run("versions index", func(t *testing.T) {
		w := g.request(http.MethodGet, "/ocpi/versions", "cpo-token", "")
		require.Equal(t, http.StatusOK, w.Code)
		data, err := json.Marshal(decodeEnvelope(t, w).Data)
		require.NoError(t, err)
		var versions []models.Version
		require.NoError(t, json.Unmarshal(data, &versions))
		require.Len(t, versions, 1)
		assert.Equal(t, "2.2.1", versions[0].Version)
		assert.Equal(t, "http://node.example/ocpi/2.2.1", versions[0].Url)
	})

	t.Run("version details", func(t *testing.T) {
		w := g.request(http.MethodGet, "/ocpi/2.2.1", "cpo-token", "")
		require.Equal(t, http.StatusOK, w.Code)
		data, err := json.Marshal(decodeEnvelope(t, w).Data)
		require.NoError(t, err)
		var details models.VersionDetails
		require.NoError(t, json.Unmarshal(data, &details))
		assert.Equal(t, "2.2.1", details.Version)

		identifiers := make(map[string]bool)
		for _, endpoint := range details.Endpoints {
			identifiers[endpoint.Identifier] = true
		}
		for _, expected := range []string{"credentials", "commands", "locations", "sessions", "cdrs", "tariffs", "tokens"} {
			assert.True(t, identifiers[expected], expected)
		}
	})
}

func TestCommandReceiver(t *testing.T) {
	g := newGateway(t, testConfig())

	t.Run("accepted with async result delivery", func(t *testing.T) {
		body := `{"response_url":"http://emsp.example/callback/abc","reservation_id":7}`
		w := g.request(http.MethodPost, "/ocpi/2.2.1/commands/RESERVE_NOW", "emsp-token", body)
		require.Equal(t, http.StatusOK, w.Code)

		data, err := json.Marshal(decodeEnvelope(t, w).Data)
		require.NoError(t, err)
		var response models.CommandResponse
		require.NoError(t, json.Unmarshal(data, &response))
		assert.Equal(t, "ACCEPTED", response.Result)
		assert.Equal(t, 30, response.Timeout)

		require.Eventually(t, func() bool { return g.sender.count() > 0 }, time.Second, 10*time.Millisecond)
		g.sender.mu.Lock()
		defer g.sender.mu.Unlock()
		assert.Equal(t, "http://emsp.example/callback/abc", g.sender.urls[0])
	})

	t.Run("missing response_url", func(t *testing.T) {
		w := g.request(http.MethodPost, "/ocpi/2.2.1/commands/RESERVE_NOW", "emsp-token", `{"reservation_id":7}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown command kind", func(t *testing.T) {
		w := g.request(http.MethodPost, "/ocpi/2.2.1/commands/SELF_DESTRUCT", "emsp-token", `{"response_url":"http://emsp.example/cb"}`)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("cpo role cannot send commands", func(t *testing.T) {
		w := g.request(http.MethodPost, "/ocpi/2.2.1/commands/RESERVE_NOW", "cpo-token", `{"response_url":"http://x.example"}`)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestCredentialsHandshake(t *testing.T) {
	g := newGateway(t, testConfig())
	body := `{"token":"their-new-token","url":"http://cpo.example/ocpi/versions","roles":[{"role":"CPO","party_id":"CPO","country_code":"DE"}]}`

	w := g.request(http.MethodPost, "/ocpi/2.2.1/credentials", "cpo-token", body)
	require.Equal(t, http.StatusOK, w.Code)

	data, err := json.Marshal(decodeEnvelope(t, w).Data)
	require.NoError(t, err)
	var credentials models.Credentials
	require.NoError(t, json.Unmarshal(data, &credentials))
	assert.NotEmpty(t, credentials.Token)
	assert.Equal(t, "http://node.example/ocpi/versions", credentials.Url)
	require.Len(t, credentials.Roles, 1)
	assert.Equal(t, models.RoleCPO, credentials.Roles[0].Role)

	// the handshake updated our outbound access towards the party
	party, ok := g.registry.Party("cpo-party")
	require.True(t, ok)
	require.Len(t, party.Remote, 1)
	assert.Equal(t, "their-new-token", party.Remote[0].Token)

	// and the freshly issued token authenticates
	assert.Equal(t, http.StatusOK, g.request(http.MethodGet, "/ocpi/versions", credentials.Token, "").Code)
}
