// Package mcp exposes card identification as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/yksoni-monk/poke/application/service"
	"github.com/yksoni-monk/poke/domain/catalog"
	"github.com/yksoni-monk/poke/domain/match"
)

// DefaultTopK is the candidate count when a tool call does not set top_k.
const DefaultTopK = 10

// Identifier ranks catalog cards against an image.
type Identifier interface {
	IdentifyK(ctx context.Context, src service.Source, k int) ([]match.Result, error)
}

// CardLookup retrieves card metadata by ID.
type CardLookup interface {
	Get(ctx context.Context, id string) (catalog.Card, error)
}

// CardScanner resolves an image to its best matching card.
type CardScanner interface {
	Scan(ctx context.Context, src service.Source) (service.ScanResult, error)
}

// Option configures the Server.
type Option func(*Server)

// WithVersion sets the version reported during initialization.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// WithScanner enables the scan_card tool.
func WithScanner(sc CardScanner) Option {
	return func(s *Server) { s.scanner = sc }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// Server wraps the MCP server with card identification tools.
type Server struct {
	mcpServer  *server.MCPServer
	identifier Identifier
	cards      CardLookup
	scanner    CardScanner
	version    string
	logger     *slog.Logger
}

// NewServer creates a new MCP server. cards may be nil, and without
// WithScanner scan_card is unavailable; both then report that no card
// database is configured.
func NewServer(identifier Identifier, cards CardLookup, opts ...Option) *Server {
	s := &Server{
		identifier: identifier,
		cards:      cards,
		version:    "dev",
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	mcpServer := server.NewMCPServer(
		"poke",
		s.version,
		server.WithToolCapabilities(true),
	)
	s.registerTools(mcpServer)
	s.mcpServer = mcpServer
	return s
}

func (s *Server) registerTools(mcpServer *server.MCPServer) {
	identifyTool := mcp.NewTool("identify_card",
		mcp.WithDescription("Identify a trading card from a photo or scan. Returns catalog card IDs ranked by visual similarity."),
		mcp.WithString("source",
			mcp.Required(),
			mcp.Description("Local file path or http(s) URL of the card image"),
		),
		mcp.WithNumber("top_k",
			mcp.Description(fmt.Sprintf("Number of candidates to return (default: %d)", DefaultTopK)),
		),
	)
	mcpServer.AddTool(identifyTool, s.handleIdentify)

	getCardTool := mcp.NewTool("get_card",
		mcp.WithDescription("Get metadata and a reference price for a catalog card"),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("The catalog card ID, for example base1-4"),
		),
	)
	mcpServer.AddTool(getCardTool, s.handleGetCard)

	scanTool := mcp.NewTool("scan_card",
		mcp.WithDescription("Identify a card image and return the best match with its metadata and price"),
		mcp.WithString("source",
			mcp.Required(),
			mcp.Description("Local file path or http(s) URL of the card image"),
		),
	)
	mcpServer.AddTool(scanTool, s.handleScan)
}

type candidate struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
	Name  string  `json:"name,omitempty"`
}

type cardResult struct {
	Card  catalog.Card   `json:"card"`
	Price *catalog.Price `json:"price,omitempty"`
	Score *float64       `json:"score,omitempty"`
}

func (s *Server) handleIdentify(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	location, err := request.RequireString("source")
	if err != nil || location == "" {
		return mcp.NewToolResultError("source is required"), nil
	}
	topK := request.GetInt("top_k", DefaultTopK)
	if topK <= 0 {
		return mcp.NewToolResultError("top_k must be positive"), nil
	}

	results, err := s.identifier.IdentifyK(ctx, service.ParseSource(location), topK)
	if err != nil {
		s.logger.Error("identify failed", slog.String("source", location), slog.Any("error", err))
		return mcp.NewToolResultError(fmt.Sprintf("identify failed: %v", err)), nil
	}

	out := make([]candidate, len(results))
	for i, r := range results {
		out[i] = candidate{ID: r.ID(), Score: r.Score()}
		if s.cards == nil {
			continue
		}
		// Names are a convenience; a card missing from the database is not an error.
		if card, err := s.cards.Get(ctx, r.ID()); err == nil {
			out[i].Name = card.Name
		}
	}
	return jsonResult(out)
}

func (s *Server) handleGetCard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil || id == "" {
		return mcp.NewToolResultError("id is required"), nil
	}
	if s.cards == nil {
		return mcp.NewToolResultError("card database not configured"), nil
	}

	card, err := s.cards.Get(ctx, id)
	if errors.Is(err, catalog.ErrCardNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("card not found: %s", id)), nil
	}
	if err != nil {
		s.logger.Error("failed to get card", slog.String("id", id), slog.Any("error", err))
		return mcp.NewToolResultError(fmt.Sprintf("failed to get card: %v", err)), nil
	}
	return jsonResult(newCardResult(card, nil))
}

func (s *Server) handleScan(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	location, err := request.RequireString("source")
	if err != nil || location == "" {
		return mcp.NewToolResultError("source is required"), nil
	}
	if s.scanner == nil {
		return mcp.NewToolResultError("card database not configured"), nil
	}

	scan, err := s.scanner.Scan(ctx, service.ParseSource(location))
	if errors.Is(err, service.ErrNoMatch) {
		return mcp.NewToolResultError(service.ErrNoMatch.Error()), nil
	}
	if err != nil {
		s.logger.Error("scan failed", slog.String("source", location), slog.Any("error", err))
		return mcp.NewToolResultError(fmt.Sprintf("scan failed: %v", err)), nil
	}
	return jsonResult(cardResult{Card: scan.Card, Price: scan.Price, Score: &scan.Score})
}

func newCardResult(card catalog.Card, score *float64) cardResult {
	result := cardResult{Card: card, Score: score}
	if price, ok := card.Price(); ok {
		result.Price = &price
	}
	return result
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

// MCPServer returns the underlying MCP server for stdio serving.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio runs the MCP server on stdio.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
