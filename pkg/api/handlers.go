package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	oracledomain "github.com/r0zar/amm-price-engine/business/oracle/domain"
	"github.com/r0zar/amm-price-engine/business/pricing/domain"
	"github.com/r0zar/amm-price-engine/internal/apperror"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type priceResponse struct {
	domain.DiscoveredPrice
	Priced bool `json:"priced"`
}

type pathsResponse struct {
	Token common.Address     `json:"token"`
	Paths []domain.PricePath `json:"paths"`
}

type oracleResponse struct {
	Price   *oracledomain.AnchorPrice   `json:"price,omitempty"`
	Health  oracledomain.Health         `json:"health"`
	Sources []oracledomain.SourceStatus `json:"sources"`
}

func (s *Server) handleGetPrice(w http.ResponseWriter, r *http.Request) {
	id, ok := parseTokenParam(w, r)
	if !ok {
		return
	}

	price, priced, err := s.engine.GetPrice(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !priced {
		writeJSON(w, http.StatusNotFound, priceResponse{
			DiscoveredPrice: domain.DiscoveredPrice{TokenID: id},
			Priced:          false,
		})
		return
	}
	writeJSON(w, http.StatusOK, priceResponse{DiscoveredPrice: price, Priced: true})
}

func (s *Server) handleGetPaths(w http.ResponseWriter, r *http.Request) {
	id, ok := parseTokenParam(w, r)
	if !ok {
		return
	}

	maxDepth := 0
	if raw := r.URL.Query().Get("maxDepth"); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil || d < 1 {
			writeJSON(w, http.StatusBadRequest, errorResponse{
				Error: "maxDepth must be a positive integer",
				Code:  string(apperror.CodeInvalidInput),
			})
			return
		}
		maxDepth = d
	}

	paths, err := s.engine.GetPaths(r.Context(), id, maxDepth)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pathsResponse{Token: id, Paths: paths})
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.GetStats(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleGetOracle(w http.ResponseWriter, r *http.Request) {
	resp := oracleResponse{
		Health:  s.oracle.Health(),
		Sources: s.oracle.SourceStatuses(),
	}
	if price, err := s.oracle.AnchorPrice(r.Context()); err == nil {
		resp.Price = &price
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.ForceRebuild(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	stats, err := s.engine.GetStats(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleOracleRefresh(w http.ResponseWriter, r *http.Request) {
	price, err := s.engine.RefreshOracle(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, price)
}

func parseTokenParam(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	raw := chi.URLParam(r, "token")
	if !common.IsHexAddress(raw) {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: "token must be a hex address",
			Code:  string(apperror.CodeInvalidFormat),
		})
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperror.CodeOf(err)
	status := statusForCode(code)
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Code: string(code)})
}

func statusForCode(code apperror.Code) int {
	switch code {
	case apperror.CodeInvalidInput, apperror.CodeInvalidFormat, apperror.CodeRequiredField:
		return http.StatusBadRequest
	case apperror.CodeNotFound, apperror.CodeTokenNotPriced, apperror.CodeNoPathFound:
		return http.StatusNotFound
	case apperror.CodeOracleUnavailable, apperror.CodeCircuitOpen, apperror.CodeServiceUnavailable, apperror.CodeGraphNotReady:
		return http.StatusServiceUnavailable
	case apperror.CodePoolFetchFailed, apperror.CodeExternalServiceError, apperror.CodeOracleSourceError:
		return http.StatusBadGateway
	case apperror.CodeServiceTimeout:
		return http.StatusGatewayTimeout
	case apperror.CodeRateLimitExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
