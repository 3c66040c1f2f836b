package handler

import (
	"net/http"

	"crm_search_backend/internal/search/domain"
	"crm_search_backend/internal/search/filters"
	"crm_search_backend/internal/search/service"
	"crm_search_backend/internal/search/transport"
	"crm_search_backend/platform/httpkit"
	"crm_search_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidSession   = "invalid session id"
)

type Handler struct {
	svc     *service.Service
	filters *filters.Config
	val     *validator.Validator
}

func New(svc *service.Service, filterConfig *filters.Config, val *validator.Validator) *Handler {
	return &Handler{svc: svc, filters: filterConfig, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.Search)
	rg.GET("/filters", h.ListFilters)
	rg.GET("/filters/:type", h.GetEntityFilters)

	sessions := rg.Group("/sessions")
	sessions.POST("", h.CreateSession)
	sessions.GET("/:id", h.GetSession)
	sessions.POST("/:id/search", h.SessionSearch)
	sessions.POST("/:id/load-more", h.LoadMore)
	sessions.POST("/:id/refetch", h.Refetch)
	sessions.DELETE("/:id/results", h.ClearResults)
	sessions.DELETE("/:id", h.DeleteSession)
}

func (h *Handler) Search(c *gin.Context) {
	var req transport.SearchQuery
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	req.Normalize()
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}
	opts, err := req.Options()
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, "filters must be a JSON object")
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	out, err := h.svc.SearchOnce(requestContext(c, ""), identity.UserID(), identity.TenantID(), opts)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.SearchResponse{
		Results:    out.Page,
		TotalCount: out.TotalCount,
		HasMore:    out.HasMore,
	})
}

func (h *Handler) ListFilters(c *gin.Context) {
	httpkit.OK(c, transport.FiltersResponse{Entities: h.filters.All()})
}

func (h *Handler) GetEntityFilters(c *gin.Context) {
	entityType, err := domain.ParseEntityType(c.Param("type"))
	if err != nil {
		httpkit.Error(c, http.StatusNotFound, "unknown entity type", nil)
		return
	}
	fields := h.filters.Fields(entityType)
	if fields == nil {
		fields = []filters.FilterField{}
	}
	httpkit.OK(c, transport.EntityFiltersResponse{Type: entityType, Fields: fields})
}

func (h *Handler) CreateSession(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	id, state := h.svc.CreateSession(identity.UserID(), identity.TenantID())
	httpkit.Created(c, transport.SessionResponse{SessionID: id.String(), State: state})
}

func (h *Handler) GetSession(c *gin.Context) {
	identity, id, ok := h.sessionTarget(c)
	if !ok {
		return
	}
	state, err := h.svc.GetState(identity.UserID(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.SessionResponse{SessionID: id.String(), State: state})
}

func (h *Handler) SessionSearch(c *gin.Context) {
	identity, id, ok := h.sessionTarget(c)
	if !ok {
		return
	}

	var req transport.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	state, err := h.svc.Search(requestContext(c, id.String()), identity.UserID(), id, req.Options())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.SessionResponse{SessionID: id.String(), State: state})
}

func (h *Handler) LoadMore(c *gin.Context) {
	identity, id, ok := h.sessionTarget(c)
	if !ok {
		return
	}
	state, err := h.svc.LoadMore(requestContext(c, id.String()), identity.UserID(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.SessionResponse{SessionID: id.String(), State: state})
}

func (h *Handler) Refetch(c *gin.Context) {
	identity, id, ok := h.sessionTarget(c)
	if !ok {
		return
	}
	state, err := h.svc.Refetch(requestContext(c, id.String()), identity.UserID(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.SessionResponse{SessionID: id.String(), State: state})
}

func (h *Handler) ClearResults(c *gin.Context) {
	identity, id, ok := h.sessionTarget(c)
	if !ok {
		return
	}
	state, err := h.svc.ClearResults(identity.UserID(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.SessionResponse{SessionID: id.String(), State: state})
}

func (h *Handler) DeleteSession(c *gin.Context) {
	identity, id, ok := h.sessionTarget(c)
	if !ok {
		return
	}
	if httpkit.HandleError(c, h.svc.DeleteSession(identity.UserID(), id)) {
		return
	}
	httpkit.NoContent(c)
}

func (h *Handler) sessionTarget(c *gin.Context) (httpkit.Identity, uuid.UUID, bool) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return nil, uuid.Nil, false
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidSession, nil)
		return nil, uuid.Nil, false
	}
	return identity, id, true
}
