package server

import (
	"fmt"
	"log"
	"ocpinode/feed"
	"ocpinode/internal"
	"ocpinode/internal/config"
	"ocpinode/metrics"
	"ocpinode/ocpi/client"
	"ocpinode/ocpi/commands"
	"ocpinode/ocpi/registry"
	"ocpinode/ocpi/store"
	"ocpinode/ocpi/versions"
	"ocpinode/telegram"
	"time"
)

// Node wires the registry, negotiator, store and correlator together with
// the gateway and the admin api, and owns their lifecycle.
type Node struct {
	conf       *config.Config
	server     *Server
	api        *Api
	hub        *feed.Hub
	logger     internal.LogHandler
	location   *time.Location
	registry   *registry.Registry
	negotiator *versions.Negotiator
	store      *store.Store
	correlator *commands.Correlator
}

// eventMultiplexer fans node events out to every attached listener
type eventMultiplexer struct {
	listeners []internal.EventHandler
}

func (m *eventMultiplexer) add(handler internal.EventHandler) {
	m.listeners = append(m.listeners, handler)
}

func (m *eventMultiplexer) OnSyncApplied(event *internal.EventMessage) {
	for _, listener := range m.listeners {
		listener.OnSyncApplied(event)
	}
}

func (m *eventMultiplexer) OnSyncRejected(event *internal.EventMessage) {
	for _, listener := range m.listeners {
		listener.OnSyncRejected(event)
	}
}

func (m *eventMultiplexer) OnCommandUpdate(event *internal.EventMessage) {
	for _, listener := range m.listeners {
		listener.OnCommandUpdate(event)
	}
}

func (m *eventMultiplexer) OnNegotiation(event *internal.EventMessage) {
	for _, listener := range m.listeners {
		listener.OnNegotiation(event)
	}
}

func (m *eventMultiplexer) OnPartyStatus(event *internal.EventMessage) {
	for _, listener := range m.listeners {
		listener.OnPartyStatus(event)
	}
}

func NewNode() (*Node, error) {
	node := &Node{}

	conf, err := config.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("configuration failed: %s", err)
	}
	node.conf = conf

	log.Println("set time zone to " + conf.TimeZone)
	location, err := time.LoadLocation(conf.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("time zone initialization failed: %s", err)
	}
	node.location = location

	var database internal.Database
	if conf.Mongo.Enabled {
		database, err = internal.NewMongoClient(conf)
		if err != nil {
			return nil, fmt.Errorf("mongodb setup failed: %s", err)
		}
		log.Println("mongodb is configured and enabled")
	} else {
		log.Println("database is disabled")
	}

	logService := internal.NewLogger(location)
	if conf.IsDebug != nil {
		logService.SetDebugMode(*conf.IsDebug)
	}
	logService.SetDatabase(database)
	node.logger = logService

	events := &eventMultiplexer{}
	events.add(metrics.NewObserver())

	if conf.Telegram.Enabled {
		telegramBot, err := telegram.NewBot(conf.Telegram.ApiKey)
		if err != nil {
			return nil, fmt.Errorf("telegram bot setup failed: %s", err)
		}
		telegramBot.Start()
		events.add(telegramBot)
		log.Println("telegram bot is configured and enabled")
	}

	if conf.Feed.Enabled {
		node.hub = feed.NewHub(conf, logService)
		events.add(node.hub)
		log.Println("event feed is configured and enabled")
	}

	// access registry
	reg := registry.New()
	reg.SetLogger(logService)
	reg.SetDatabase(database)
	reg.SetEventHandler(events)
	if err = reg.Load(); err != nil {
		return nil, fmt.Errorf("registry load failed: %s", err)
	}
	node.registry = reg

	// object store
	st := store.New(conf.Ocpi.AllowDowngrades)
	st.SetLogger(logService)
	st.SetEventHandler(events)
	st.SetDatabase(database)
	if err = st.Load(); err != nil {
		return nil, fmt.Errorf("store load failed: %s", err)
	}
	node.store = st

	httpClient := client.New(time.Duration(conf.Ocpi.RequestTimeout) * time.Second)

	// version negotiator
	negotiator := versions.New(httpClient, conf.Ocpi.Versions, time.Duration(conf.Ocpi.NegotiationTTL)*time.Second)
	negotiator.SetLogger(logService)
	negotiator.SetEventHandler(events)
	node.negotiator = negotiator

	// command correlator
	correlator := commands.New(httpClient,
		time.Duration(conf.Ocpi.CommandTimeout)*time.Second,
		time.Duration(conf.Ocpi.CommandRetention)*time.Second)
	correlator.SetLogger(logService)
	correlator.SetEventHandler(events)
	node.correlator = correlator

	// gateway
	gateway := NewServer(conf, logService)
	gateway.SetRegistry(reg)
	gateway.SetStore(st)
	gateway.SetCorrelator(correlator)
	gateway.SetResultSender(httpClient)
	node.server = gateway

	// admin api
	apiServer := NewServerApi(conf, logService)
	apiServer.SetRegistry(reg)
	apiServer.SetNegotiator(negotiator)
	apiServer.SetCorrelator(correlator)
	apiServer.SetStore(st)
	apiServer.SetDatabase(database)
	node.api = apiServer

	return node, nil
}

// SetCommandHandler installs the executor backing inbound commands
func (n *Node) SetCommandHandler(handler CommandHandler) {
	n.server.SetCommandHandler(handler)
}

func (n *Node) Start() {
	n.correlator.Start()

	go func() {
		if err := n.server.Start(); err != nil {
			n.logger.Error("ocpi server failed", err)
		}
	}()

	go func() {
		if err := n.api.Start(); err != nil {
			n.logger.Error("api server failed", err)
		}
	}()

	if n.hub != nil {
		go func() {
			if err := n.hub.Start(); err != nil {
				n.logger.Error("feed server failed", err)
			}
		}()
	}

	go func() {
		if err := metrics.Listen(n.conf); err != nil {
			n.logger.Error("metrics server failed", err)
		}
	}()

	select {}
}
