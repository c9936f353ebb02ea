// Package v1 implements the version 1 HTTP API routes.
package v1

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/yksoni-monk/poke"
	"github.com/yksoni-monk/poke/domain/match"
	"github.com/yksoni-monk/poke/infrastructure/api/jsonapi"
	"github.com/yksoni-monk/poke/infrastructure/api/middleware"
)

// MaxTopK caps the top_k query parameter.
const MaxTopK = 100

// ScanRouter handles image identification endpoints.
type ScanRouter struct {
	client     *poke.Client
	serializer *jsonapi.Serializer
	logger     *slog.Logger
}

// NewScanRouter creates a new ScanRouter.
func NewScanRouter(client *poke.Client) *ScanRouter {
	return &ScanRouter{
		client:     client,
		serializer: jsonapi.NewSerializer(),
		logger:     client.Logger(),
	}
}

// Routes returns the chi router for identification endpoints. They are
// mounted at the API root so each keeps its own path.
func (r *ScanRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/scan", r.Scan)
	router.Post("/similar", r.Similar)
	router.Post("/compare", r.Compare)

	return router
}

// Scan handles POST /api/v1/scan. The body is an image, raw or in the
// "image" multipart field. The response holds the best matching card and
// its reference price, with the ranked candidates included.
func (r *ScanRouter) Scan(w http.ResponseWriter, req *http.Request) {
	src, err := readImage(w, req, "image")
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	result, err := r.client.Scan(req.Context(), src)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	middleware.WriteDocument(w, http.StatusOK, r.serializer.ScanDocument(result))
}

// Similar handles POST /api/v1/similar?top_k=N. It returns up to N ranked
// candidates, best first. Without top_k the configured default applies.
func (r *ScanRouter) Similar(w http.ResponseWriter, req *http.Request) {
	topK, err := parseTopK(req)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	src, err := readImage(w, req, "image")
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	var results []match.Result
	if topK > 0 {
		results, err = r.client.IdentifyK(req.Context(), src, topK)
	} else {
		results, err = r.client.Identify(req.Context(), src)
	}
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	doc := jsonapi.NewListResponseWithMeta(r.serializer.CandidateResources(results), jsonapi.Meta{"count": len(results)})
	middleware.WriteDocument(w, http.StatusOK, doc)
}

// CompareResponse is the result of comparing two images.
type CompareResponse struct {
	Score float64 `json:"score"`
}

// Compare handles POST /api/v1/compare. The multipart body carries two
// images in the "a" and "b" fields.
func (r *ScanRouter) Compare(w http.ResponseWriter, req *http.Request) {
	req.Body = http.MaxBytesReader(w, req.Body, 2*MaxImageBytes)
	if err := req.ParseMultipartForm(MaxImageBytes); err != nil {
		middleware.WriteError(w, req, readError(err), r.logger)
		return
	}

	a, err := readFormImage(req, "a")
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	b, err := readFormImage(req, "b")
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	score, err := r.client.Compare(req.Context(), a, b)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, CompareResponse{Score: score})
}

func parseTopK(req *http.Request) (int, error) {
	raw := req.URL.Query().Get("top_k")
	if raw == "" {
		return 0, nil
	}
	k, err := strconv.Atoi(raw)
	if err != nil || k < 1 || k > MaxTopK {
		return 0, middleware.NewAPIError(http.StatusBadRequest, "top_k must be an integer between 1 and "+strconv.Itoa(MaxTopK), nil)
	}
	return k, nil
}
