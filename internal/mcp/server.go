// Package mcp exposes the cohort classification workflow as MCP tools over
// stdio. The server is fully standalone: SQLite patient registry, in-memory
// reminder dedupe, console delivery channels.
package mcp

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/cohort-outreach-mcp-server/internal/catalog"
	"github.com/cohort-outreach-mcp-server/internal/config"
	"github.com/cohort-outreach-mcp-server/internal/notify"
	"github.com/cohort-outreach-mcp-server/internal/patients"
	"github.com/cohort-outreach-mcp-server/internal/service"
)

// Server is the standalone MCP server.
type Server struct {
	config     *config.LiteConfig
	mcpServer  *mcp.Server
	store      patients.Store
	classifier *service.ClassifierService
	dispatcher *notify.Dispatcher
	logger     *logrus.Logger
}

// ServerOption is a functional option for Server.
type ServerOption func(*Server) error

// WithStore sets a custom patient store.
func WithStore(store patients.Store) ServerOption {
	return func(s *Server) error {
		s.store = store
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.logger = logger
		return nil
	}
}

// NewServer creates the standalone MCP server. It requires no external
// databases; the patient registry lives in SQLite under the data directory
// and is seeded with the demo registry on first run.
func NewServer(cfg *config.LiteConfig, opts ...ServerOption) (*Server, error) {
	server := &Server{
		config: cfg,
		logger: logrus.New(),
	}

	if cfg.LogFormat == "text" {
		server.logger.SetFormatter(&logrus.TextFormatter{})
	} else {
		server.logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	server.logger.SetLevel(level)

	for _, opt := range opts {
		if err := opt(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	if server.store == nil {
		store, err := patients.NewSQLiteStore(cfg.PatientDBPath())
		if err != nil {
			return nil, fmt.Errorf("failed to create patient store: %w", err)
		}
		server.store = store
	}

	seeded, err := patients.SeedIfEmpty(context.Background(), server.store)
	if err != nil {
		return nil, fmt.Errorf("failed to seed patient registry: %w", err)
	}
	if seeded > 0 {
		server.logger.WithField("count", seeded).Info("Seeded demo patient registry")
	}

	cat, err := catalog.Load(cfg.CatalogPath, server.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load cohort catalog: %w", err)
	}

	classifier, err := service.NewClassifierService(server.logger, cat)
	if err != nil {
		return nil, fmt.Errorf("failed to create classifier service: %w", err)
	}
	server.classifier = classifier

	// Console senders stand in for the channel gateways in standalone mode
	server.dispatcher = notify.NewDispatcher(server.logger, server.store, notify.NewMemoryDeduper(),
		notify.DispatcherConfig{DedupeTTL: cfg.DedupeTTL},
		notify.NewConsoleSender(notify.ChannelPortal),
		notify.NewConsoleSender(notify.ChannelEmail),
		notify.NewConsoleSender(notify.ChannelSMS),
		notify.NewConsoleSender(notify.ChannelPhoneCall),
	)

	serverInfo := &mcp.Implementation{
		Name:    "cohort-outreach-mcp-server",
		Version: "v0.1.0",
	}
	server.mcpServer = mcp.NewServer(serverInfo, nil)

	server.registerTools()

	server.logger.WithFields(logrus.Fields{
		"catalog_version": cat.Version(),
		"tool_count":      len(toolDefinitions(server)),
	}).Info("MCP server initialized")

	return server, nil
}

// registerTools registers every tool from the capability table.
func (s *Server) registerTools() {
	for _, def := range toolDefinitions(s) {
		s.mcpServer.AddTool(&mcp.Tool{
			Name:        def.Name,
			Description: def.Description,
			// Handlers unmarshal and validate their own arguments; the SDK
			// requires an explicit object schema for that arrangement.
			InputSchema: &jsonschema.Schema{Type: "object"},
		}, def.Handler)
		s.logger.WithField("tool_name", def.Name).Debug("Registered MCP tool")
	}
}

// Start runs the MCP server over stdio until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting Cohort Outreach MCP Server...")

	if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// Close cleans up server resources.
func (s *Server) Close() error {
	if s.dispatcher != nil {
		if err := s.dispatcher.Close(); err != nil {
			s.logger.WithError(err).Error("Failed to close dispatcher")
		}
	}
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}
