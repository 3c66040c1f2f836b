// Package search is the CRM search engine module: it fans free-text and
// filtered searches out over every entity table and serves the merged,
// ranked results over HTTP.
package search

import (
	"context"

	apphttp "crm_search_backend/internal/http"
	"crm_search_backend/internal/search/filters"
	"crm_search_backend/internal/search/handler"
	"crm_search_backend/internal/search/ports"
	"crm_search_backend/internal/search/service"
	"crm_search_backend/internal/search/transport"
	"crm_search_backend/platform/config"
	"crm_search_backend/platform/logger"
	"crm_search_backend/platform/validator"
)

type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule wires the search stack on top of a ready record store.
func NewModule(store ports.RecordStore, notifier ports.Notifier, cfg config.SearchConfig, val *validator.Validator, log *logger.Logger) (*Module, error) {
	filterConfig, err := filters.Load(cfg.GetSearchFiltersFile())
	if err != nil {
		return nil, err
	}
	if err := transport.RegisterValidations(val); err != nil {
		return nil, err
	}

	searcher := service.NewSearcher(store, service.Limits{
		Default: cfg.GetSearchDefaultLimit(),
		Max:     cfg.GetSearchMaxLimit(),
	}, log)
	svc := service.New(searcher, notifier, cfg.GetSearchSessionTTL(), log)
	h := handler.New(svc, filterConfig, val)

	return &Module{handler: h, service: svc}, nil
}

func (m *Module) Name() string {
	return "search"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/search")
	m.handler.RegisterRoutes(group)
}

// Run evicts idle search sessions until ctx is done.
func (m *Module) Run(ctx context.Context) {
	m.service.Run(ctx)
}

var _ apphttp.Module = (*Module)(nil)
