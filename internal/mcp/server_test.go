package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/yksoni-monk/poke/application/service"
	"github.com/yksoni-monk/poke/domain/catalog"
	"github.com/yksoni-monk/poke/domain/match"
)

// fakeIdentifier returns canned results and records the last request.
type fakeIdentifier struct {
	results []match.Result
	err     error
	lastSrc service.Source
	lastK   int
}

func (f *fakeIdentifier) IdentifyK(_ context.Context, src service.Source, k int) ([]match.Result, error) {
	f.lastSrc = src
	f.lastK = k
	if f.err != nil {
		return nil, f.err
	}
	if k < len(f.results) {
		return f.results[:k], nil
	}
	return f.results, nil
}

// fakeScanner returns a canned scan and records the last source.
type fakeScanner struct {
	result  service.ScanResult
	err     error
	lastSrc service.Source
}

func (f *fakeScanner) Scan(_ context.Context, src service.Source) (service.ScanResult, error) {
	f.lastSrc = src
	if f.err != nil {
		return service.ScanResult{}, f.err
	}
	return f.result, nil
}

// fakeCards implements CardLookup over a map.
type fakeCards map[string]catalog.Card

func (f fakeCards) Get(_ context.Context, id string) (catalog.Card, error) {
	card, ok := f[id]
	if !ok {
		return catalog.Card{}, catalog.ErrCardNotFound
	}
	return card, nil
}

func testCards() fakeCards {
	market := 12.5
	return fakeCards{
		"base1-4": {
			ID:   "base1-4",
			Name: "Charizard",
			Set:  catalog.Set{ID: "base1", Name: "Base"},
			TCGPlayer: &catalog.TCGPlayer{
				Prices: map[string]catalog.PriceBand{"holofoil": {Market: &market}},
			},
		},
		"base1-58": {ID: "base1-58", Name: "Pikachu", Set: catalog.Set{ID: "base1", Name: "Base"}},
	}
}

func testServer() (*Server, *fakeIdentifier) {
	identifier := &fakeIdentifier{results: []match.Result{
		match.NewResult("base1-4", 0.93),
		match.NewResult("base1-58", 0.41),
		match.NewResult("unknown-1", 0.12),
	}}
	return NewServer(identifier, testCards(), WithVersion("1.2.3")), identifier
}

// sendMessage marshals a JSON-RPC request, sends it through HandleMessage,
// and returns the JSONRPCResponse.
func sendMessage(t *testing.T, srv *Server, method string, id int, params map[string]any) mcp.JSONRPCResponse {
	t.Helper()

	msg := map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  method,
	}
	if params != nil {
		msg["params"] = params
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	result := srv.MCPServer().HandleMessage(context.Background(), raw)

	resp, ok := result.(mcp.JSONRPCResponse)
	if !ok {
		t.Fatalf("expected JSONRPCResponse, got %T: %+v", result, result)
	}
	return resp
}

// resultJSON re-marshals the Result field through JSON into dst.
func resultJSON(t *testing.T, resp mcp.JSONRPCResponse, dst any) {
	t.Helper()
	b, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatalf("marshal result: %v", err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		t.Fatalf("unmarshal result into %T: %v", dst, err)
	}
}

func initializeParams() map[string]any {
	return map[string]any{
		"protocolVersion": "2025-06-18",
		"capabilities":    map[string]any{},
		"clientInfo": map[string]any{
			"name":    "test-client",
			"version": "0.0.1",
		},
	}
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) mcp.CallToolResult {
	t.Helper()
	sendMessage(t, srv, "initialize", 1, initializeParams())
	resp := sendMessage(t, srv, "tools/call", 2, map[string]any{
		"name":      name,
		"arguments": args,
	})
	var result mcp.CallToolResult
	resultJSON(t, resp, &result)
	return result
}

// textFromContent extracts the text string from the first content item
// of a CallToolResult.
func textFromContent(t *testing.T, result mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	b, err := json.Marshal(result.Content[0])
	if err != nil {
		t.Fatalf("marshal content: %v", err)
	}
	var tc struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(b, &tc); err != nil {
		t.Fatalf("unmarshal text content: %v", err)
	}
	return tc.Text
}

func TestServer_Initialize(t *testing.T) {
	srv, _ := testServer()
	resp := sendMessage(t, srv, "initialize", 1, initializeParams())

	var result mcp.InitializeResult
	resultJSON(t, resp, &result)

	if result.ServerInfo.Name != "poke" {
		t.Errorf("expected server name poke, got %s", result.ServerInfo.Name)
	}
	if result.ServerInfo.Version != "1.2.3" {
		t.Errorf("expected version 1.2.3, got %s", result.ServerInfo.Version)
	}
	if result.Capabilities.Tools == nil {
		t.Error("expected tools capability to be present")
	}
}

func TestServer_ListTools(t *testing.T) {
	srv, _ := testServer()
	sendMessage(t, srv, "initialize", 1, initializeParams())

	resp := sendMessage(t, srv, "tools/list", 2, nil)

	var result mcp.ListToolsResult
	resultJSON(t, resp, &result)

	names := map[string]bool{}
	for _, tool := range result.Tools {
		names[tool.Name] = true
	}
	for _, name := range []string{"identify_card", "get_card", "scan_card"} {
		if !names[name] {
			t.Errorf("expected tool %s", name)
		}
	}
	if len(result.Tools) != 3 {
		t.Errorf("expected 3 tools, got %d", len(result.Tools))
	}
}

func TestServer_IdentifyCard(t *testing.T) {
	srv, identifier := testServer()

	result := callTool(t, srv, "identify_card", map[string]any{
		"source": "https://images.example.com/base1/4.png",
		"top_k":  2,
	})
	if result.IsError {
		t.Fatalf("expected success, got error: %s", textFromContent(t, result))
	}

	var got []candidate
	if err := json.Unmarshal([]byte(textFromContent(t, result)), &got); err != nil {
		t.Fatalf("unmarshal candidates: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	if got[0].ID != "base1-4" || got[0].Name != "Charizard" || got[0].Score != 0.93 {
		t.Errorf("unexpected first candidate: %+v", got[0])
	}
	if identifier.lastK != 2 {
		t.Errorf("expected k=2, got %d", identifier.lastK)
	}
	if identifier.lastSrc.Kind() != service.SourceURL {
		t.Errorf("expected URL source, got %v", identifier.lastSrc.Kind())
	}
}

func TestServer_IdentifyCardDefaultsAndMissingNames(t *testing.T) {
	srv, identifier := testServer()

	result := callTool(t, srv, "identify_card", map[string]any{"source": "/scans/card.jpg"})
	if result.IsError {
		t.Fatalf("expected success, got error: %s", textFromContent(t, result))
	}

	var got []candidate
	if err := json.Unmarshal([]byte(textFromContent(t, result)), &got); err != nil {
		t.Fatalf("unmarshal candidates: %v", err)
	}
	if identifier.lastK != DefaultTopK {
		t.Errorf("expected default k=%d, got %d", DefaultTopK, identifier.lastK)
	}
	if identifier.lastSrc.Kind() != service.SourcePath {
		t.Errorf("expected path source, got %v", identifier.lastSrc.Kind())
	}
	if len(got) != 3 || got[2].Name != "" {
		t.Errorf("expected unnamed third candidate, got %+v", got)
	}
}

func TestServer_IdentifyCardErrors(t *testing.T) {
	srv, identifier := testServer()

	result := callTool(t, srv, "identify_card", map[string]any{})
	if !result.IsError {
		t.Error("expected error for missing source")
	}

	identifier.err = catalog.ErrIndexNotFound
	result = callTool(t, srv, "identify_card", map[string]any{"source": "/x.png"})
	if !result.IsError {
		t.Fatal("expected error result")
	}
	if text := textFromContent(t, result); !strings.Contains(text, "catalog index not found") {
		t.Errorf("unexpected error text: %s", text)
	}
}

func TestServer_GetCard(t *testing.T) {
	srv, _ := testServer()

	result := callTool(t, srv, "get_card", map[string]any{"id": "base1-4"})
	if result.IsError {
		t.Fatalf("expected success, got error: %s", textFromContent(t, result))
	}

	var got cardResult
	if err := json.Unmarshal([]byte(textFromContent(t, result)), &got); err != nil {
		t.Fatalf("unmarshal card: %v", err)
	}
	if got.Card.Name != "Charizard" {
		t.Errorf("expected Charizard, got %s", got.Card.Name)
	}
	if got.Price == nil || got.Price.Amount != 12.5 || got.Price.Currency != catalog.CurrencyUSD {
		t.Errorf("unexpected price: %+v", got.Price)
	}
	if got.Score != nil {
		t.Errorf("get_card should not report a score, got %v", *got.Score)
	}
}

func TestServer_GetCardNotFound(t *testing.T) {
	srv, _ := testServer()

	result := callTool(t, srv, "get_card", map[string]any{"id": "nope"})
	if !result.IsError {
		t.Fatal("expected error result")
	}
	if text := textFromContent(t, result); !strings.Contains(text, "card not found: nope") {
		t.Errorf("unexpected error text: %s", text)
	}
}

func TestServer_ScanCard(t *testing.T) {
	identifier := &fakeIdentifier{}
	cards := testCards()
	market := 12.5
	scanner := &fakeScanner{result: service.ScanResult{
		Card:  cards["base1-4"],
		Score: 0.93,
		Price: &catalog.Price{Amount: market, Currency: "USD", Source: "tcgplayer"},
	}}
	srv := NewServer(identifier, cards, WithScanner(scanner))

	result := callTool(t, srv, "scan_card", map[string]any{"source": "/scans/card.jpg"})
	if result.IsError {
		t.Fatalf("expected success, got error: %s", textFromContent(t, result))
	}

	var got cardResult
	if err := json.Unmarshal([]byte(textFromContent(t, result)), &got); err != nil {
		t.Fatalf("unmarshal card: %v", err)
	}
	if got.Card.ID != "base1-4" {
		t.Errorf("expected base1-4, got %s", got.Card.ID)
	}
	if got.Score == nil || *got.Score != 0.93 {
		t.Errorf("unexpected score: %v", got.Score)
	}
	if got.Price == nil || got.Price.Amount != market {
		t.Errorf("unexpected price: %v", got.Price)
	}
	if scanner.lastSrc.Kind() != service.SourcePath || scanner.lastSrc.Location() != "/scans/card.jpg" {
		t.Errorf("unexpected source: %v", scanner.lastSrc)
	}
	if identifier.lastK != 0 {
		t.Errorf("scan_card should not rank candidates itself, got k=%d", identifier.lastK)
	}
}

func TestServer_NoCardDatabase(t *testing.T) {
	identifier := &fakeIdentifier{results: []match.Result{match.NewResult("base1-4", 0.9)}}
	srv := NewServer(identifier, nil)

	result := callTool(t, srv, "get_card", map[string]any{"id": "base1-4"})
	if !result.IsError {
		t.Error("expected error without a card database")
	}

	result = callTool(t, srv, "identify_card", map[string]any{"source": "/x.png"})
	if result.IsError {
		t.Fatalf("identify should work without a card database: %s", textFromContent(t, result))
	}
}

func TestServer_ScanCardErrors(t *testing.T) {
	scanner := &fakeScanner{err: errors.New("encoder unavailable")}
	srv := NewServer(&fakeIdentifier{}, testCards(), WithScanner(scanner))

	result := callTool(t, srv, "scan_card", map[string]any{"source": "/x.png"})
	if !result.IsError {
		t.Fatal("expected error result")
	}

	scanner.err = fmt.Errorf("identify: %w", service.ErrNoMatch)
	result = callTool(t, srv, "scan_card", map[string]any{"source": "/x.png"})
	if !result.IsError {
		t.Fatal("expected no-match error")
	}
	if text := textFromContent(t, result); text != service.ErrNoMatch.Error() {
		t.Errorf("unexpected error text: %s", text)
	}

	result = callTool(t, NewServer(&fakeIdentifier{}, nil), "scan_card", map[string]any{"source": "/x.png"})
	if !result.IsError {
		t.Error("expected error without a scanner")
	}
}

// Ensure fakes satisfy interfaces at compile time.
var (
	_ Identifier  = (*fakeIdentifier)(nil)
	_ CardLookup  = fakeCards(nil)
	_ CardScanner = (*fakeScanner)(nil)
)
