package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	_ "image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yksoni-monk/poke/internal/testcatalog"
)

// fakeServices serves card images under /images and a CLIP-style
// /vectorize endpoint that embeds images by mean colour.
func fakeServices(t *testing.T) *httptest.Server {
	t.Helper()
	images := map[string][]byte{
		"/images/red.png":   testcatalog.SolidPNG(t, testcatalog.Red),
		"/images/green.png": testcatalog.SolidPNG(t, testcatalog.Green),
	}
	encoder := &testcatalog.Encoder{}

	mux := http.NewServeMux()
	mux.HandleFunc("/images/", func(w http.ResponseWriter, r *http.Request) {
		body, ok := images[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(body)
	})
	mux.HandleFunc("/vectorize", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Images []string `json:"images"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		vectors := make([][]float32, 0, len(req.Images))
		for _, b64 := range req.Images {
			raw, err := base64.StdEncoding.DecodeString(b64)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			img, _, err := image.Decode(bytes.NewReader(raw))
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			v, _ := encoder.Encode(r.Context(), img)
			vectors = append(vectors, v)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"imageVectors": vectors})
	})
	mux.HandleFunc("/.well-known/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func setupEnv(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("DB_URL", "")
	t.Setenv("INDEX_DIR", "")
	t.Setenv("CACHE_DIR", "")
	t.Setenv("ENCODER_BASE_URL", srv.URL)
	t.Setenv("ENCODER_MAX_RETRIES", "0")
	t.Setenv("LOG_LEVEL", "ERROR")
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCLI_BuildSearchCompareScan(t *testing.T) {
	srv := fakeServices(t)
	dir := setupEnv(t, srv)

	csvPath := filepath.Join(dir, "cards.csv")
	csv := "card name,card id,card number,card image url\n" +
		"Charizard,base1-4,4," + srv.URL + "/images/red.png\n" +
		"Bulbasaur,base1-44,44," + srv.URL + "/images/green.png\n" +
		"Missing,base1-99,99," + srv.URL + "/images/missing.png\n"
	require.NoError(t, os.WriteFile(csvPath, []byte(csv), 0o644))

	out, err := run(t, "build-index", csvPath, "--parallelism", "2")
	require.NoError(t, err)
	var report struct {
		Rows    int `json:"rows"`
		Entries int `json:"entries"`
		Failed  int `json:"failed"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report), out)
	assert.Equal(t, 3, report.Rows)
	assert.Equal(t, 2, report.Entries)
	assert.Equal(t, 1, report.Failed)

	query := filepath.Join(dir, "photo.png")
	require.NoError(t, os.WriteFile(query, testcatalog.SolidPNG(t, testcatalog.Red), 0o644))

	out, err = run(t, "search", query, "--top-k", "1")
	require.NoError(t, err)
	var candidates []candidate
	require.NoError(t, json.Unmarshal([]byte(out), &candidates), out)
	require.Len(t, candidates, 1)
	assert.Equal(t, "base1-4", candidates[0].ID)
	assert.InDelta(t, 1.0, candidates[0].Score, 1e-6)

	out, err = run(t, "search", query, "--ids")
	require.NoError(t, err)
	var ids []string
	require.NoError(t, json.Unmarshal([]byte(out), &ids), out)
	assert.Equal(t, []string{"base1-4", "base1-44"}, ids)

	out, err = run(t, "compare", query, srv.URL+"/images/green.png")
	require.NoError(t, err)
	assert.Equal(t, "0.000000", strings.TrimSpace(out))

	cardsPath := filepath.Join(dir, "cards.json")
	raw, err := json.Marshal(testcatalog.Cards())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(cardsPath, raw, 0o644))

	out, err = run(t, "import-cards", cardsPath)
	require.NoError(t, err)
	assert.JSONEq(t, `{"imported":2}`, out)

	out, err = run(t, "scan", query)
	require.NoError(t, err)
	var scan struct {
		Card struct {
			Name string `json:"name"`
		} `json:"card"`
		Price struct {
			Amount float64 `json:"amount"`
		} `json:"price"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &scan), out)
	assert.Equal(t, "Charizard", scan.Card.Name)
	assert.Equal(t, 321.0, scan.Price.Amount)
}

func TestCLI_SearchWithoutIndex(t *testing.T) {
	srv := fakeServices(t)
	dir := setupEnv(t, srv)

	query := filepath.Join(dir, "photo.png")
	require.NoError(t, os.WriteFile(query, testcatalog.SolidPNG(t, testcatalog.Red), 0o644))

	_, err := run(t, "search", query)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index")
}

func TestCLI_ArgsValidation(t *testing.T) {
	_, err := run(t, "compare", "only-one.png")
	assert.Error(t, err)

	_, err = run(t, "build-index")
	assert.Error(t, err)
}

func TestCLI_Version(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "poke version dev")
	assert.Contains(t, out, "commit: unknown")
}

func TestServeOverrides(t *testing.T) {
	assert.Empty(t, serveOverrides("", 0))
	assert.Len(t, serveOverrides("127.0.0.1", 0), 1)
	assert.Len(t, serveOverrides("127.0.0.1", 9090), 2)
}

func TestReadyHandler(t *testing.T) {
	srv := fakeServices(t)
	setupEnv(t, srv)

	client, _, logger, err := openClient(rootCmd())
	require.NoError(t, err)
	defer closeClient(client, logger)

	w := httptest.NewRecorder()
	readyHandler(client)(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "no index")
}
