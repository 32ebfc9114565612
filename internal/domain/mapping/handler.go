package mapping

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers mapping administration endpoints.
//
//	POST   /mappings
//	GET    /mappings?analyzer=<id>
//	GET    /mappings/:id
//	PUT    /mappings/:id
//	POST   /mappings/:id/deactivate
//	POST   /dictionary-entries
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/mappings", h.Create)
	g.GET("/mappings", h.List)
	g.GET("/mappings/:id", h.Get)
	g.PUT("/mappings/:id", h.Update)
	g.POST("/mappings/:id/deactivate", h.Deactivate)
	g.POST("/dictionary-entries", h.AddDictionaryEntry)
}

func (h *Handler) Create(c echo.Context) error {
	m := &FieldMapping{}
	if err := c.Bind(m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.Create(c.Request().Context(), m); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid mapping id")
	}
	m, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "mapping not found")
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) List(c echo.Context) error {
	analyzerID, err := uuid.Parse(c.QueryParam("analyzer"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "analyzer query parameter is required")
	}
	limit, offset := pagination(c)
	items, total, err := h.svc.ListByAnalyzer(c.Request().Context(), analyzerID, limit, offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "list mappings failed")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"items": items,
		"total": total,
	})
}

func (h *Handler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid mapping id")
	}
	in := &FieldMapping{}
	if err := c.Bind(in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	m, err := h.svc.Update(c.Request().Context(), id, in)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "mapping not found")
		}
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) Deactivate(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid mapping id")
	}
	m, err := h.svc.Deactivate(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "mapping not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "deactivate mapping failed")
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) AddDictionaryEntry(c echo.Context) error {
	e := &DictionaryEntry{}
	if err := c.Bind(e); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.AddDictionaryEntry(c.Request().Context(), e); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusCreated, e)
}

func pagination(c echo.Context) (limit, offset int) {
	limit = 50
	offset = 0
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	if v := c.QueryParam("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
