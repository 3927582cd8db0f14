package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/works-s/postsmith/internal/catalog"
	"github.com/works-s/postsmith/internal/hashtag"
)

func (s *Server) registerCatalogRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getCatalog",
		Method:      http.MethodGet,
		Path:        "/api/v1/catalog",
		Summary:     "Get catalog",
		Description: "Returns the seasons, purposes and tones in display order, plus the current season",
		Tags:        []string{"Catalog"},
	}, s.handleGetCatalog)

	huma.Register(s.api, huma.Operation{
		OperationID: "getHashtags",
		Method:      http.MethodGet,
		Path:        "/api/v1/hashtags",
		Summary:     "Get hashtags",
		Description: "Returns the recommended hashtags for a season and purpose",
		Tags:        []string{"Catalog"},
	}, s.handleGetHashtags)
}

// CatalogResponse lists every selectable category.
type CatalogResponse struct {
	Seasons       []catalog.Entry `json:"seasons" doc:"Seasons"`
	Purposes      []catalog.Entry `json:"purposes" doc:"Post purposes"`
	Tones         []catalog.Entry `json:"tones" doc:"Tones"`
	CurrentSeason string          `json:"current_season" doc:"Season of today's date"`
}

// CatalogOutput wraps the catalog response for Huma.
type CatalogOutput struct {
	Body CatalogResponse
}

func (s *Server) handleGetCatalog(_ context.Context, _ *struct{}) (*CatalogOutput, error) {
	return &CatalogOutput{
		Body: CatalogResponse{
			Seasons:       catalog.Seasons(),
			Purposes:      catalog.Purposes(),
			Tones:         catalog.Tones(),
			CurrentSeason: catalog.CurrentSeason(time.Now()),
		},
	}, nil
}

// HashtagsInput selects the categories to derive tags for.
type HashtagsInput struct {
	Season  string `query:"season" enum:"spring,summer,autumn,winter" doc:"Season id"`
	Purpose string `query:"purpose" enum:"booking,trust,local,value,service" doc:"Purpose id"`
}

// HashtagsResponse contains derived hashtags.
type HashtagsResponse struct {
	Hashtags []string `json:"hashtags" doc:"Hashtags in recommended order"`
	Line     string   `json:"line" doc:"Hashtags joined by spaces"`
}

// HashtagsOutput wraps the hashtags response for Huma.
type HashtagsOutput struct {
	Body HashtagsResponse
}

func (s *Server) handleGetHashtags(_ context.Context, input *HashtagsInput) (*HashtagsOutput, error) {
	tags := hashtag.Derive(input.Season, input.Purpose)
	return &HashtagsOutput{
		Body: HashtagsResponse{Hashtags: tags, Line: hashtag.Line(tags)},
	}, nil
}
