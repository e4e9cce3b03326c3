// Package main runs the NFC tag authenticator: a reader station that verifies
// and issues counter-bound MAC records, served over WebSocket and shown in a
// system tray debug panel.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"fyne.io/systray"

	"github.com/nedpals/davi-tagauth/buildinfo"
	"github.com/nedpals/davi-tagauth/config"
	"github.com/nedpals/davi-tagauth/keys"
	"github.com/nedpals/davi-tagauth/nfc"
)

var (
	// CLI flags
	configFlag     string
	devicePathFlag string
	backendFlag    string
	portFlag       int
	apiSecretFlag  string
	keyFileFlag    string
	cliFlag        bool
	versionFlag    bool
)

// defaultConfigPath returns the config file in the user config directory,
// or "" when there is none.
func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	path := filepath.Join(dir, buildinfo.DirName, "config.yaml")
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return ""
	}
	return path
}

// loadConfig reads the config file and applies the flags the user set on
// top of it.
func loadConfig(path string, set map[string]bool) (*config.Config, error) {
	cfg := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
		log.Printf("Loaded config from %s", path)
	}

	if set["device"] {
		cfg.Reader.Device = devicePathFlag
	}
	if set["backend"] {
		cfg.Reader.Backend = backendFlag
	}
	if set["port"] {
		cfg.Server.Port = portFlag
	}
	if set["api-secret"] {
		cfg.Server.APISecret = apiSecretFlag
	}
	if set["key-file"] {
		cfg.Auth.KeyFile = keyFileFlag
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// keyProvider builds the key lookup order: key file, then environment,
// then an interactive prompt when enabled.
func keyProvider(cfg *config.Config) keys.Provider {
	var chain keys.Chain
	if cfg.Auth.KeyFile != "" {
		chain = append(chain, keys.FileProvider{Path: cfg.Auth.KeyFile})
	}
	chain = append(chain, keys.EnvProvider{Name: cfg.Auth.KeyEnv})
	if cfg.Auth.Prompt {
		chain = append(chain, &keys.PromptProvider{})
	}
	return chain
}

func main() {
	flag.StringVar(&configFlag, "config", "", "Path to YAML config file (optional)")
	flag.StringVar(&devicePathFlag, "device", "", "NFC device connection string or reader name (optional)")
	flag.StringVar(&backendFlag, "backend", config.BackendAuto, "Reader backend: auto, libnfc or pcsc")
	flag.IntVar(&portFlag, "port", config.DefaultPort, "Port to listen on for the WebSocket API")
	flag.StringVar(&apiSecretFlag, "api-secret", "", "API secret for WebSocket and status access (optional)")
	flag.StringVar(&keyFileFlag, "key-file", "", "File holding the tag secret key (optional)")
	flag.BoolVar(&cliFlag, "cli", false, "Run in CLI mode (default: system tray mode)")
	flag.BoolVar(&versionFlag, "version", false, "Print version information and exit")
	flag.Parse()

	if versionFlag {
		fmt.Println(buildinfo.Banner())
		return
	}

	log.Println(buildinfo.Banner())

	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	path := configFlag
	if path == "" {
		path = defaultConfigPath()
	}
	cfg, err := loadConfig(path, set)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	manager, err := nfc.NewManager(cfg.Reader.Backend)
	if err != nil {
		log.Fatalf("Failed to create NFC manager: %v", err)
	}

	agent := NewAgent(cfg, manager, keyProvider(cfg))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if cliFlag {
		if err := agent.Start(cfg.Reader.Device); err != nil {
			log.Fatalf("Failed to start agent: %v", err)
		}
		defer agent.Stop()

		<-sigChan
		log.Println("Shutdown signal received, stopping server...")
		return
	}

	// Default systray mode
	go func() {
		<-sigChan
		systray.Quit()
	}()

	NewSystrayApp(agent, cfg.Reader.Device).Run()
}
