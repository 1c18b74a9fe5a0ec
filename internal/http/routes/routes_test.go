package routes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mobilekkm/contractproxy/barcode"
	"github.com/mobilekkm/contractproxy/internal/contract"
	"github.com/mobilekkm/contractproxy/mkkm"
)

type stubResolver struct {
	contract      *contract.Contract
	err           error
	gotTicket     string
	gotCredential string
	calls         int
}

func (s *stubResolver) Resolve(ctx context.Context, ticketID, credential string) (*contract.Contract, error) {
	s.calls++
	s.gotTicket = ticketID
	s.gotCredential = credential
	if s.err != nil {
		return nil, s.err
	}
	return s.contract, nil
}

func doRequest(t *testing.T, s *Server, method, target, authorization string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	s.Router.ServeHTTP(rec, req)
	return rec
}

func TestContractSuccess(t *testing.T) {
	resolver := &stubResolver{contract: &contract.Contract{
		Aztec:     "HELLO",
		ValidFrom: time.Date(2024, 5, 4, 12, 0, 0, 0, time.UTC),
	}}
	s := New(ServerOptions{Resolver: resolver})

	rec := doRequest(t, s, http.MethodGet, "/ticket/abc-123/contract", "Bearer tok")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	var body struct {
		Aztec     string `json:"aztec"`
		ValidFrom string `json:"validFrom"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "HELLO", body.Aztec)
	assert.Equal(t, "2024-05-04T12:00:00Z", body.ValidFrom)

	assert.Equal(t, "abc-123", resolver.gotTicket)
	assert.Equal(t, "Bearer tok", resolver.gotCredential)
}

func TestContractMissingAuthorization(t *testing.T) {
	resolver := &stubResolver{}
	s := New(ServerOptions{Resolver: resolver})

	rec := doRequest(t, s, http.MethodGet, "/ticket/abc-123/contract", "")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Authorization header is required.", body["message"])
	assert.Equal(t, 0, resolver.calls, "resolver must not run without a credential")
}

func TestContractErrorMapping(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantMessage string
	}{
		{
			name:        "upstream status and message pass through",
			err:         &mkkm.APIError{StatusCode: http.StatusForbidden, Message: "Forbidden"},
			wantStatus:  http.StatusForbidden,
			wantMessage: "Forbidden",
		},
		{
			name:        "upstream bad request",
			err:         &mkkm.APIError{StatusCode: http.StatusBadRequest, Message: "Invalid ticket."},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Invalid ticket.",
		},
		{
			name:        "decode failure gets the fixed message",
			err:         fmt.Errorf("%w: image is 3x3", barcode.ErrDecode),
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "Could not decode barcode from image.",
		},
		{
			name:        "infra failure stays generic",
			err:         errors.New("redis: connection refused"),
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(ServerOptions{Resolver: &stubResolver{err: tt.err}})
			rec := doRequest(t, s, http.MethodGet, "/ticket/abc-123/contract", "Bearer tok")

			require.Equal(t, tt.wantStatus, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantMessage, body["message"])
		})
	}
}

func TestContractCustomMountPath(t *testing.T) {
	resolver := &stubResolver{contract: &contract.Contract{Aztec: "HELLO", ValidFrom: time.Now().UTC()}}
	s := New(ServerOptions{Resolver: resolver, ContractPath: "/api/tickets/{ticketID}"})

	rec := doRequest(t, s, http.MethodGet, "/api/tickets/xyz", "Bearer tok")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "xyz", resolver.gotTicket)

	rec = doRequest(t, s, http.MethodGet, "/ticket/xyz/contract", "Bearer tok")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthcheck(t *testing.T) {
	s := New(ServerOptions{Resolver: &stubResolver{}})

	for _, method := range []string{http.MethodGet, http.MethodHead} {
		rec := doRequest(t, s, method, "/healthcheck", "")
		assert.Equal(t, http.StatusOK, rec.Code, method)
	}

	rec := doRequest(t, s, http.MethodGet, "/healthcheck", "")
	var body struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "healthy", body.Message)
}

func TestDocs(t *testing.T) {
	s := New(ServerOptions{Resolver: &stubResolver{}})
	rec := doRequest(t, s, http.MethodGet, "/docs/", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Ticket Contract Proxy", body["title"])
}
