package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/works-s/postsmith/internal/llm"
)

func (s *Server) registerProxyRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "generateProxy",
		Method:      http.MethodPost,
		Path:        "/api/generate",
		Summary:     "Generate text",
		Description: "Forwards one prompt pair to the text generation capability and returns its content blocks",
		Tags:        []string{"Generation"},
		Middlewares: huma.Middlewares{s.rateLimited},
	}, s.handleGenerateProxy)
}

// GenerateProxyRequest is the browser's raw generation request.
type GenerateProxyRequest struct {
	APIKey       string `json:"apiKey,omitempty" doc:"API key; the stored key is used when empty" writeOnly:"true"`
	SystemPrompt string `json:"systemPrompt,omitempty" doc:"System prompt"`
	UserPrompt   string `json:"userPrompt" minLength:"1" doc:"User prompt"`
	Mode         string `json:"mode" enum:"post,image" doc:"Selects the output budget"`
}

// GenerateProxyInput wraps the proxy request for Huma.
type GenerateProxyInput struct {
	Body GenerateProxyRequest
}

// GenerateProxyOutput wraps the capability response for Huma.
type GenerateProxyOutput struct {
	Body llm.Response
}

func (s *Server) handleGenerateProxy(ctx context.Context, input *GenerateProxyInput) (*GenerateProxyOutput, error) {
	resp, err := s.services.Generation.Proxy(ctx, llm.Request{
		Credential:   input.Body.APIKey,
		SystemPrompt: input.Body.SystemPrompt,
		UserPrompt:   input.Body.UserPrompt,
		Mode:         llm.Mode(input.Body.Mode),
	})
	if err != nil {
		return nil, err
	}
	return &GenerateProxyOutput{Body: *resp}, nil
}
