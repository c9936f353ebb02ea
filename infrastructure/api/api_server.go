package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/mark3labs/mcp-go/server"

	"github.com/yksoni-monk/poke"
	apimiddleware "github.com/yksoni-monk/poke/infrastructure/api/middleware"
	v1 "github.com/yksoni-monk/poke/infrastructure/api/v1"
	mcpinternal "github.com/yksoni-monk/poke/internal/mcp"
)

// APIServer provides an HTTP API backed by a poke Client.
type APIServer struct {
	client       *poke.Client
	apiKeys      []string
	version      string
	server       *Server
	router       chi.Router
	routerCalled bool
	logger       *slog.Logger
}

// NewAPIServer creates a new APIServer wired to the given poke Client.
// apiKeys configures write-protection: mutating card endpoints require a
// valid key. Identification, card reads, MCP and docs remain open.
func NewAPIServer(client *poke.Client, apiKeys []string, version string) *APIServer {
	if version == "" {
		version = "dev"
	}
	return &APIServer{
		client:  client,
		apiKeys: apiKeys,
		version: version,
		logger:  client.Logger(),
	}
}

// Router returns the chi router for customization before starting.
// Call this first, add custom middleware with router.Use(), then call MountRoutes().
// If not called, ListenAndServe creates a default router with all standard routes.
func (a *APIServer) Router() chi.Router {
	if a.router != nil {
		return a.router
	}

	a.router = chi.NewRouter()
	a.routerCalled = true
	return a.router
}

// MountRoutes wires up all v1 API routes on the router.
// Call this after adding any custom middleware via Router().Use().
func (a *APIServer) MountRoutes() {
	if a.router == nil {
		a.Router()
	}
	a.mountRoutes(a.router)
}

func (a *APIServer) mountRoutes(router chi.Router) {
	c := a.client

	scanRouter := v1.NewScanRouter(c)
	cardsRouter := v1.NewCardsRouter(c)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(60 * time.Second))

		// Identification is a read-only POST.
		r.Mount("/", scanRouter.Routes())

		r.Group(func(r chi.Router) {
			r.Use(apimiddleware.WriteProtectAuth(a.apiKeys))
			r.Mount("/cards", cardsRouter.Routes())
		})
	})

	// MCP keeps its own session state in response headers, which chi's
	// Timeout middleware would wrap, so it stays outside the v1 group.
	mcpOpts := []mcpinternal.Option{
		mcpinternal.WithVersion(a.version),
		mcpinternal.WithLogger(a.logger),
	}
	cards := cardLookup(c)
	if cards != nil {
		mcpOpts = append(mcpOpts, mcpinternal.WithScanner(c))
	}
	mcpSrv := mcpinternal.NewServer(c, cards, mcpOpts...)
	router.Mount("/mcp", server.NewStreamableHTTPServer(mcpSrv.MCPServer()))
}

// cardLookup returns the client's card store, or nil when the client has
// no card database.
func cardLookup(c *poke.Client) mcpinternal.CardLookup {
	cards := c.Cards()
	if cards == nil {
		return nil
	}
	return cards
}

// DocsRouter returns a router for Swagger UI and OpenAPI spec.
func (a *APIServer) DocsRouter(specURL string) *DocsRouter {
	return NewDocsRouter(specURL)
}

// ListenAndServe starts the HTTP server on the given address.
func (a *APIServer) ListenAndServe(addr string) error {
	server := NewServer(addr, a.logger)
	a.server = &server

	if a.routerCalled && a.router != nil {
		server.Router().Mount("/", a.router)
	} else {
		a.mountRoutes(server.Router())
	}

	return server.Start()
}

// Shutdown gracefully shuts down the server.
func (a *APIServer) Shutdown(ctx context.Context) error {
	if a.server == nil {
		return nil
	}
	return a.server.Shutdown(ctx)
}

// Handler returns the router as an http.Handler for use with custom servers.
func (a *APIServer) Handler() http.Handler {
	if a.router == nil {
		a.Router()
		a.MountRoutes()
	}
	return a.router
}
