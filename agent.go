package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/nedpals/davi-tagauth/config"
	"github.com/nedpals/davi-tagauth/keys"
	"github.com/nedpals/davi-tagauth/nfc"
	"github.com/nedpals/davi-tagauth/server"
	"github.com/nedpals/davi-tagauth/station"
	"github.com/nedpals/davi-tagauth/tagauth"
)

var errAgentRunning = errors.New("agent is already running")

// Agent ties the reader, the station and the server together so the tray
// can restart them when the device changes.
type Agent struct {
	Logger  *log.Logger
	Manager nfc.Manager
	Keys    keys.Provider
	Config  *config.Config

	mu      sync.Mutex
	station *station.Station
	server  *server.Server
	device  string
}

func NewAgent(cfg *config.Config, manager nfc.Manager, provider keys.Provider) *Agent {
	return &Agent{
		Logger:  log.New(os.Stderr, "[agent] ", log.LstdFlags),
		Manager: manager,
		Keys:    provider,
		Config:  cfg,
	}
}

// Start opens the station on devicePath and serves it in the background.
// Starting again on the same device is a no-op.
func (a *Agent) Start(devicePath string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.startLocked(devicePath)
}

func (a *Agent) startLocked(devicePath string) error {
	if a.station != nil {
		if devicePath == a.device {
			a.Logger.Printf("Station already running on device: %q", devicePath)
			return nil
		}
		return errAgentRunning
	}

	protocol, err := tagauth.NewProtocol(tagauth.WithMACSize(a.Config.Auth.MACSize))
	if err != nil {
		return fmt.Errorf("create protocol: %w", err)
	}

	reader := nfc.NewReader(a.Manager, readerOptions(a.Config, devicePath))
	a.station = station.New(reader, protocol, a.Keys)
	a.device = devicePath

	a.server = server.New(server.Config{
		Station:   a.station,
		Port:      a.Config.Server.Port,
		APISecret: a.Config.Server.APISecret,
		MDNS:      a.Config.MDNSEnabled(),
	})

	go func(srv *server.Server) {
		if err := srv.Start(); err != nil {
			a.Logger.Printf("Server stopped: %v", err)
		}
	}(a.server)
	return nil
}

// Restart stops the agent and starts it again on devicePath.
func (a *Agent) Restart(devicePath string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopLocked()
	return a.startLocked(devicePath)
}

func (a *Agent) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopLocked()
}

func (a *Agent) stopLocked() {
	if a.station == nil && a.server == nil {
		a.Logger.Println("Agent is not running")
		return
	}

	a.Logger.Println("Stopping agent...")

	if a.server != nil {
		a.server.Stop()
		a.server = nil
	}
	a.station = nil
	a.device = ""

	a.Logger.Println("Agent stopped successfully")
}

// Station returns the running station, or nil when stopped.
func (a *Agent) Station() *station.Station {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.station
}

func (a *Agent) Running() bool {
	return a.Station() != nil
}

func (a *Agent) Device() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.device
}

func readerOptions(cfg *config.Config, devicePath string) nfc.ReaderOptions {
	return nfc.ReaderOptions{
		Device:       devicePath,
		PollTimeout:  cfg.ReaderPollTimeout(),
		PollInterval: cfg.Reader.PollInterval,
	}
}
