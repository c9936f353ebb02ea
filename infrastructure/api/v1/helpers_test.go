package v1_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/yksoni-monk/poke"
	"github.com/yksoni-monk/poke/infrastructure/api/jsonapi"
	"github.com/yksoni-monk/poke/internal/testcatalog"
)

// newTestClient creates a client over the test catalog with the index
// built. withCards adds a SQLite card database seeded with the fixture's
// card metadata.
func newTestClient(t *testing.T, withCards bool) *poke.Client {
	t.Helper()
	dir := t.TempDir()
	fetcher, rows := testcatalog.New(t)

	opts := []poke.Option{
		poke.WithDataDir(dir),
		poke.WithEncoder(&testcatalog.Encoder{}),
		poke.WithFetcher(fetcher),
	}
	if withCards {
		opts = append(opts, poke.WithSQLite(filepath.Join(dir, "poke.db")))
	}
	client, err := poke.New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	_, err = client.BuildIndex(ctx, rows)
	require.NoError(t, err)
	if withCards {
		_, err = client.ImportCards(ctx, testcatalog.Cards())
		require.NoError(t, err)
	}
	return client
}

func serve(t *testing.T, router chi.Router, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func multipartBody(t *testing.T, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for field, data := range files {
		part, err := mw.CreateFormFile(field, field+".png")
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func decodeDocument(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var doc map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc), "body: %s", w.Body.String())
	return doc
}

func firstError(t *testing.T, w *httptest.ResponseRecorder) jsonapi.Error {
	t.Helper()
	var doc jsonapi.Document
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc), "body: %s", w.Body.String())
	require.NotEmpty(t, doc.Errors)
	return doc.Errors[0]
}
