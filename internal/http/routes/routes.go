package routes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/hlog"

	"github.com/mobilekkm/contractproxy/barcode"
	"github.com/mobilekkm/contractproxy/internal/contract"
	appmw "github.com/mobilekkm/contractproxy/internal/http/middleware"
	"github.com/mobilekkm/contractproxy/mkkm"
)

const DefaultContractPath = "/ticket/{ticketID}/contract"

// Resolver is the pipeline the contract handler drives.
type Resolver interface {
	Resolve(ctx context.Context, ticketID, credential string) (*contract.Contract, error)
}

type Server struct {
	Router   *chi.Mux
	Resolver Resolver
}

type ServerOptions struct {
	Resolver     Resolver
	ContractPath string // defaults to DefaultContractPath
}

func New(opts ServerOptions) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	s := &Server{Router: r, Resolver: opts.Resolver}

	contractPath := opts.ContractPath
	if contractPath == "" {
		contractPath = DefaultContractPath
	}

	r.Group(func(pr chi.Router) {
		pr.Use(appmw.RequireAuthorization)
		pr.Get(contractPath, s.handleContract)
	})

	r.Get("/healthcheck", s.handleHealthcheck)
	r.Head("/healthcheck", s.handleHealthcheck)
	r.Get("/docs/", s.handleDocs)

	return s
}

type errorResponse struct {
	Message string `json:"message"`
}

func (s *Server) handleContract(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "ticketID")
	credential, _ := r.Context().Value(appmw.CredentialKey).(string)

	c, err := s.Resolver.Resolve(r.Context(), ticketID, credential)
	if err != nil {
		s.writeResolveError(w, r, ticketID, err)
		return
	}

	writeJSON(w, r, http.StatusOK, c)
}

func (s *Server) writeResolveError(w http.ResponseWriter, r *http.Request, ticketID string, err error) {
	var apiErr *mkkm.APIError
	switch {
	case errors.As(err, &apiErr):
		// upstream status and message pass through untouched
		writeJSON(w, r, apiErr.StatusCode, errorResponse{Message: apiErr.Message})
	case errors.Is(err, barcode.ErrDecode):
		hlog.FromRequest(r).Error().Err(err).Str("ticket", ticketID).Msg("barcode decode failed")
		writeJSON(w, r, http.StatusInternalServerError, errorResponse{Message: "Could not decode barcode from image."})
	default:
		hlog.FromRequest(r).Error().Err(err).Str("ticket", ticketID).Msg("contract resolution failed")
		writeJSON(w, r, http.StatusInternalServerError, errorResponse{Message: "internal server error"})
	}
}

func (s *Server) handleHealthcheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"success": true,
		"message": "healthy",
	})
}

func (s *Server) handleDocs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"title":       "Ticket Contract Proxy",
		"description": "A microservice to decode AZTEC codes from mKKM to save bandwidth.",
		"version":     "1.0",
		"endpoints": []string{
			"GET /ticket/{ticketID}/contract",
			"GET /healthcheck",
		},
	})
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("write response failed")
	}
}
