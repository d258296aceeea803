package feed

import (
	"encoding/json"
	"fmt"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"net"
	"net/http"
	"ocpinode/internal"
	"ocpinode/internal/config"
)

const wsEndpoint = "/feed"

// Hub streams node events to connected websocket clients. A client that
// cannot keep up with the stream is dropped. The client set is owned by
// the broadcast goroutine alone; the pumps only signal over channels, so
// a send channel is closed exactly once and never raced by a broadcast.
type Hub struct {
	conf       *config.Config
	httpServer *http.Server
	upgrader   websocket.Upgrader
	logger     internal.LogHandler

	clients    map[*client]bool
	register   chan *client
	unregister chan *client

	event chan *internal.EventMessage
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func NewHub(conf *config.Config, logger internal.LogHandler) *Hub {
	hub := &Hub{
		conf:       conf,
		upgrader:   websocket.Upgrader{},
		logger:     logger,
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		event:      make(chan *internal.EventMessage, 100),
	}
	router := httprouter.New()
	router.GET(wsEndpoint, hub.handleWsRequest)
	hub.httpServer = &http.Server{
		Handler: router,
	}
	return hub
}

func (h *Hub) Start() error {
	go h.broadcastPump()
	serverAddress := fmt.Sprintf("%s:%s", h.conf.Feed.BindIP, h.conf.Feed.Port)
	h.logger.Debug(fmt.Sprintf("starting feed server on %s", serverAddress))
	listener, err := net.Listen("tcp", serverAddress)
	if err != nil {
		return err
	}
	return h.httpServer.Serve(listener)
}

func (h *Hub) handleWsRequest(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	h.upgrader.CheckOrigin = func(r *http.Request) bool {
		return true
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("feed upgrade failed: ", err)
		return
	}
	c := &client{
		conn: conn,
		send: make(chan []byte, 64),
	}
	h.register <- c
	h.logger.Debug(fmt.Sprintf("feed client connected from %s", r.RemoteAddr))

	go h.writePump(c)
	go h.readPump(c)
}

// readPump drains incoming frames so close handshakes are processed
func (h *Hub) readPump(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.unregister <- c
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.unregister <- c
			return
		}
	}
	_ = c.conn.Close()
}

func (h *Hub) broadcastPump() {
	for {
		select {
		case c := <-h.register:
			h.clients[c] = true
		case c := <-h.unregister:
			h.drop(c)
		case event := <-h.event:
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			for c := range h.clients {
				select {
				case c.send <- data:
				default:
					h.drop(c)
				}
			}
		}
	}
}

// drop runs on the broadcast goroutine only
func (h *Hub) drop(c *client) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	_ = c.conn.Close()
}

func (h *Hub) publish(event *internal.EventMessage) {
	select {
	case h.event <- event:
	default:
		h.logger.Warn("feed buffer is full, event dropped")
	}
}

func (h *Hub) OnSyncApplied(event *internal.EventMessage) {
	h.publish(event)
}

func (h *Hub) OnSyncRejected(event *internal.EventMessage) {
	h.publish(event)
}

func (h *Hub) OnCommandUpdate(event *internal.EventMessage) {
	h.publish(event)
}

func (h *Hub) OnNegotiation(event *internal.EventMessage) {
	h.publish(event)
}

func (h *Hub) OnPartyStatus(event *internal.EventMessage) {
	h.publish(event)
}
