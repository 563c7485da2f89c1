package mdns

import (
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/grandcat/zeroconf"
)

// Service registration constants.
const (
	ServiceType   = "_hubspace-bridge._tcp"
	DefaultDomain = "local."
)

// Server is a running registration. *zeroconf.Server implements it.
type Server interface {
	Shutdown()
}

// RegisterFunc registers a service. zeroconf.Register in production.
type RegisterFunc func(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (Server, error)

func zeroconfRegister(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (Server, error) {
	return zeroconf.Register(instance, service, domain, port, txt, ifaces)
}

// Logger is the logging interface used by the advertiser.
type Logger interface {
	Info(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}

// Config holds advertiser settings.
type Config struct {
	// Instance is the service instance name. Defaults to "HubSpace Bridge on <hostname>".
	Instance string

	// Port is the HTTP API port.
	Port int

	// Version is published in the TXT record.
	Version string

	// APIPath is published in the TXT record. Default /api/v1.
	APIPath string

	// Interfaces limits advertisement. Nil means all interfaces.
	Interfaces []net.Interface

	// Register overrides the registration function, for tests.
	Register RegisterFunc
}

// Advertiser publishes the API service record until Stop.
type Advertiser struct {
	cfg    Config
	logger Logger

	mu     sync.Mutex
	server Server
}

// NewAdvertiser validates cfg and fills defaults.
func NewAdvertiser(cfg Config) (*Advertiser, error) {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPort, cfg.Port)
	}
	if cfg.Instance == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "localhost"
		}
		cfg.Instance = "HubSpace Bridge on " + host
	}
	if cfg.APIPath == "" {
		cfg.APIPath = "/api/v1"
	}
	if cfg.Register == nil {
		cfg.Register = zeroconfRegister
	}
	return &Advertiser{cfg: cfg, logger: noopLogger{}}, nil
}

// SetLogger sets the logger.
func (a *Advertiser) SetLogger(logger Logger) {
	a.logger = logger
}

// TXT returns the TXT record published with the service.
func (a *Advertiser) TXT() []string {
	txt := []string{"path=" + a.cfg.APIPath}
	if a.cfg.Version != "" {
		txt = append(txt, "version="+a.cfg.Version)
	}
	return txt
}

// Start registers the service.
func (a *Advertiser) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		return ErrAlreadyStarted
	}
	server, err := a.cfg.Register(a.cfg.Instance, ServiceType, DefaultDomain, a.cfg.Port, a.TXT(), a.cfg.Interfaces)
	if err != nil {
		return fmt.Errorf("mdns: registering %s: %w", ServiceType, err)
	}
	a.server = server
	a.logger.Info("advertising api over mdns", "instance", a.cfg.Instance, "service", ServiceType, "port", a.cfg.Port)
	return nil
}

// Stop withdraws the service. Safe to call when not started.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server == nil {
		return
	}
	a.server.Shutdown()
	a.server = nil
}
