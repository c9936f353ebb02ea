package v1

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yksoni-monk/poke"
	"github.com/yksoni-monk/poke/infrastructure/api/jsonapi"
	"github.com/yksoni-monk/poke/infrastructure/api/middleware"
	"github.com/yksoni-monk/poke/infrastructure/ingest"
)

// MaxImportBytes caps a card import body.
const MaxImportBytes = 64 << 20

// CardsRouter handles card metadata endpoints.
type CardsRouter struct {
	client     *poke.Client
	serializer *jsonapi.Serializer
	logger     *slog.Logger
}

// NewCardsRouter creates a new CardsRouter.
func NewCardsRouter(client *poke.Client) *CardsRouter {
	return &CardsRouter{
		client:     client,
		serializer: jsonapi.NewSerializer(),
		logger:     client.Logger(),
	}
}

// Routes returns the chi router for card endpoints.
func (r *CardsRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/", r.Import)
	router.Get("/{id}", r.Get)

	return router
}

// Get handles GET /api/v1/cards/{id}.
func (r *CardsRouter) Get(w http.ResponseWriter, req *http.Request) {
	card, err := r.client.Card(req.Context(), chi.URLParam(req, "id"))
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	middleware.WriteDocument(w, http.StatusOK, jsonapi.NewSingleResponse(r.serializer.CardResource(card)))
}

// ImportResponse reports a card import.
type ImportResponse struct {
	Imported int `json:"imported"`
}

// Import handles POST /api/v1/cards. The body is a JSON array of cards or
// a page object with a "data" array; records are upserted by id.
func (r *CardsRouter) Import(w http.ResponseWriter, req *http.Request) {
	req.Body = http.MaxBytesReader(w, req.Body, MaxImportBytes)

	cards, err := ingest.ReadCards(req.Body)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	n, err := r.client.ImportCards(req.Context(), cards)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, ImportResponse{Imported: n})
}
