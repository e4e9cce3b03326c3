// Package server provides the HTTP and WebSocket API of the tag authenticator.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/grandcat/zeroconf"
	"github.com/nedpals/davi-tagauth/buildinfo"
	"github.com/nedpals/davi-tagauth/protocol"
	"github.com/nedpals/davi-tagauth/station"
)

// Config holds the server configuration
type Config struct {
	Station   *station.Station
	Port      int
	APISecret string // Optional API secret for WebSocket and status access
	MDNS      bool   // Advertise the server over mDNS
}

// Server manages the HTTP and WebSocket server
type Server struct {
	config     Config
	mu         sync.Mutex
	stopped    bool
	httpServer *http.Server
	ctx        context.Context
	cancel     context.CancelFunc

	upgrader        websocket.Upgrader
	clients         *ClientManager
	handlerRegistry *HandlerRegistry
	stationHandler  *StationHandler

	// mDNS service for auto-discovery
	mdnsServer *zeroconf.Server
}

// New creates a new server instance
func New(config Config) *Server {
	s := &Server{
		config:  config,
		clients: NewClientManager(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins
			},
		},
		handlerRegistry: NewHandlerRegistry(),
	}

	s.stationHandler = NewStationHandler(config.Station)
	s.stationHandler.Register(s)
	return s
}

// Handle implements HandlerServer interface.
func (s *Server) Handle(messageType string, handler HandlerFunc) error {
	return s.handlerRegistry.Handle(messageType, handler)
}

// StartLifecycle implements HandlerServer interface.
func (s *Server) StartLifecycle(start func(ctx context.Context)) {
	s.handlerRegistry.RegisterLifecycle(start)
}

// Broadcast implements HandlerServer interface.
func (s *Server) Broadcast(message protocol.WebSocketMessage) {
	s.clients.Broadcast(message)
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// API v1 routes
	apiV1 := "/api/v1"

	mux.HandleFunc(apiV1+"/health", enableCORS(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.handleHealthCheck(w, r)
	}))

	mux.HandleFunc(apiV1+"/status", enableCORS(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if !s.authorized(r) {
			http.Error(w, "Unauthorized: Invalid API secret", http.StatusUnauthorized)
			return
		}
		writeJSON(w, s.stationHandler.status())
	}))

	mux.HandleFunc("/ws", s.handleWebSocket)

	mux.HandleFunc("/", enableCORS(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(buildinfo.DisplayName + " Running"))
	}))

	return mux
}

// Start starts the HTTP server and blocks until Stop is called or the
// listener fails. A stopped server does not start again.
func (s *Server) Start() error {
	log.Printf("Starting %s %s...", buildinfo.DisplayName, buildinfo.FullVersion())

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.ctx, s.cancel = ctx, cancel
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.config.Port),
		Handler: s.Handler(),
	}
	s.httpServer = httpServer

	if s.config.MDNS {
		if err := s.startMDNS(); err != nil {
			log.Printf("Warning: Failed to start mDNS service: %v", err)
			log.Printf("Auto-discovery will not be available, but server will continue normally")
		}
	}
	s.mu.Unlock()

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("Starting server on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	s.handlerRegistry.StartLifecycleHandlers(ctx)

	select {
	case <-ctx.Done():
		log.Println("Server context cancelled, initiating shutdown...")
		return nil
	case err := <-serveErr:
		s.Stop()
		return fmt.Errorf("HTTP server error: %w", err)
	}
}

// Stop stops the HTTP server gracefully
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true

	if s.mdnsServer != nil {
		s.mdnsServer.Shutdown()
		s.mdnsServer = nil
		log.Printf("mDNS service stopped")
	}

	s.clients.CloseAll()

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
		s.httpServer = nil
	}
	if s.cancel != nil {
		s.cancel()
	}
}

// startMDNS registers the authenticator as an mDNS service for auto-discovery
func (s *Server) startMDNS() error {
	txtRecords := []string{
		"version=" + buildinfo.Version,
		"protocol=websocket",
		"path=/ws",
		"mac_size=" + strconv.Itoa(s.config.Station.MACSize()),
		"auth=" + strconv.FormatBool(s.config.APISecret != ""),
	}

	server, err := zeroconf.Register(MDNSServiceName, MDNSServiceType, MDNSDomain, s.config.Port, txtRecords, nil)
	if err != nil {
		return fmt.Errorf("failed to register mDNS service: %w", err)
	}

	s.mdnsServer = server
	log.Printf("mDNS service registered: %s (%s) on port %d", MDNSServiceName, MDNSServiceType, s.config.Port)
	return nil
}

// authorized checks the optional API secret, given either as the secret
// query parameter or as a bearer token.
func (s *Server) authorized(r *http.Request) bool {
	if s.config.APISecret == "" {
		return true
	}

	secret := r.URL.Query().Get("secret")
	if secret == "" {
		secret = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	return subtle.ConstantTimeCompare([]byte(secret), []byte(s.config.APISecret)) == 1
}

// handleWebSocket upgrades HTTP connections to WebSocket connections and manages
// the client connection lifecycle
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		log.Printf("WebSocket connection rejected: invalid API secret")
		http.Error(w, "Unauthorized: Invalid API secret", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := newClient(conn)
	s.clients.Register(client)
	log.Printf("Client connected: %s from %s (total: %d)", client.ID[:8], r.RemoteAddr, s.clients.Count())

	defer func() {
		client.Close()
		s.clients.Unregister(client)
		log.Printf("Client disconnected: %s (total: %d)", client.ID[:8], s.clients.Count())
	}()

	// Late joiners get the current status right away
	client.WriteJSON(protocol.WebSocketMessage{
		Type:    protocol.WSTypeSnapshot,
		Payload: snapshotPayload(s.config.Station.Snapshot()),
	})

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket read error: %v", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var req protocol.WebSocketRequest
		if err := json.Unmarshal(message, &req); err != nil {
			log.Printf("Failed to parse WebSocket message: %v", err)
			client.SendError("", protocol.ErrorPayload{Code: protocol.ErrCodeParseError}, "Invalid message format")
			continue
		}
		if req.ID == "" {
			req.ID = uuid.New().String()
		}

		handler, ok := s.handlerRegistry.Get(req.Type)
		if !ok {
			log.Printf("Unknown message type: %s", req.Type)
			client.SendError(req.ID, protocol.ErrorPayload{Code: protocol.ErrCodeUnknownType}, fmt.Sprintf("Unknown message type: %s", req.Type))
			continue
		}

		if err := handler(r.Context(), client, req); err != nil {
			// Error already sent by handler, just log it
			log.Printf("Handler error for message type '%s': %v", req.Type, err)
		}
	}
}

// handleHealthCheck provides a health check endpoint (GET /api/v1/health)
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status":    "ok",
		"version":   buildinfo.FullVersion(),
		"clients":   s.clients.Count(),
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Server", buildinfo.UserAgent())
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to write JSON response: %v", err)
	}
}

// enableCORS is a middleware that adds CORS headers to responses
func enableCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", CORSAllowOrigin)
		w.Header().Set("Access-Control-Allow-Methods", CORSAllowMethods)
		w.Header().Set("Access-Control-Allow-Headers", CORSAllowHeaders)

		// Handle preflight OPTIONS requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}
