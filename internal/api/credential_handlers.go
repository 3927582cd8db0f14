package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/works-s/postsmith/internal/credential"
)

// apiKeyHeader carries a per-request credential override.
const apiKeyHeader = "X-API-Key"

func (s *Server) registerCredentialRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getCredential",
		Method:      http.MethodGet,
		Path:        "/api/v1/credential",
		Summary:     "Get credential status",
		Description: "Reports whether an API key is configured and its fingerprint",
		Tags:        []string{"Credential"},
	}, s.handleGetCredential)

	huma.Register(s.api, huma.Operation{
		OperationID: "saveCredential",
		Method:      http.MethodPut,
		Path:        "/api/v1/credential",
		Summary:     "Save credential",
		Description: "Stores the API key encrypted at rest",
		Tags:        []string{"Credential"},
	}, s.handleSaveCredential)

	huma.Register(s.api, huma.Operation{
		OperationID: "clearCredential",
		Method:      http.MethodDelete,
		Path:        "/api/v1/credential",
		Summary:     "Clear credential",
		Description: "Removes the stored API key. An environment key, if set, stays in effect",
		Tags:        []string{"Credential"},
	}, s.handleClearCredential)
}

// CredentialOutput wraps the credential status for Huma.
type CredentialOutput struct {
	Body credential.Status
}

// SaveCredentialRequest is the request body for saving the API key.
type SaveCredentialRequest struct {
	APIKey string `json:"api_key" doc:"Anthropic API key" writeOnly:"true"`
}

// SaveCredentialInput wraps the save request for Huma.
type SaveCredentialInput struct {
	Body SaveCredentialRequest
}

func (s *Server) handleGetCredential(ctx context.Context, _ *struct{}) (*CredentialOutput, error) {
	st, err := s.services.Credential.Status(ctx)
	if err != nil {
		return nil, err
	}
	return &CredentialOutput{Body: st}, nil
}

func (s *Server) handleSaveCredential(ctx context.Context, input *SaveCredentialInput) (*CredentialOutput, error) {
	st, err := s.services.Credential.Save(ctx, input.Body.APIKey)
	if err != nil {
		return nil, err
	}
	return &CredentialOutput{Body: st}, nil
}

func (s *Server) handleClearCredential(ctx context.Context, _ *struct{}) (*CredentialOutput, error) {
	st, err := s.services.Credential.Clear(ctx)
	if err != nil {
		return nil, err
	}
	return &CredentialOutput{Body: st}, nil
}
