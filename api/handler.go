package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/getwarden/warden/acl"
	"github.com/labstack/echo/v4"
)

// Handler exposes the ACL manager over HTTP. The engine itself is
// transport-agnostic; this is the reference transport.
type Handler struct {
	manager *acl.Manager
}

// NewHandler creates an HTTP handler around a manager.
func NewHandler(manager *acl.Manager) *Handler {
	return &Handler{manager: manager}
}

// RegisterRoutes mounts the API on an echo group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/strategies", h.HandleCreateStrategy)
	g.GET("/strategies/:type", h.HandleGetStrategy)

	g.POST("/principals", h.HandleCreatePrincipal)
	g.DELETE("/principals/:name", h.HandleDeletePrincipal)
	g.GET("/principals/:name/entries", h.HandlePrincipalEntries)

	g.POST("/acls", h.HandleCreateAcl)
	g.GET("/acls/:type", h.HandleListAcls)
	g.GET("/acls/:type/:id", h.HandleGetAcl)
	g.PUT("/acls/:type/:id", h.HandleUpdateAcl)
	g.DELETE("/acls/:type/:id", h.HandleDeleteAcl)

	g.POST("/acls/:type/:id/entries", h.HandleCreateEntries)
	g.DELETE("/acls/:type/:id/entries", h.HandleDeleteEntries)
	g.GET("/acls/:type/:id/entries", h.HandleListEntries)

	g.GET("/decisions", h.HandleIsAccessible)
	g.POST("/decisions/assert", h.HandleAccessible)

	g.GET("/healthz", h.HandleHealth)
}

func (h *Handler) HandleCreateStrategy(c echo.Context) error {
	var body struct {
		ResourceType string `json:"resource_type"`
		Expression   string `json:"expression"`
	}
	if err := c.Bind(&body); err != nil {
		return h.Error(c, http.StatusBadRequest, "Invalid request body", err)
	}

	s, err := h.manager.CreateStrategy(c.Request().Context(), body.ResourceType, body.Expression)
	if err != nil {
		return h.mapError(c, err)
	}
	return c.JSON(http.StatusCreated, s)
}

func (h *Handler) HandleGetStrategy(c echo.Context) error {
	s, err := h.manager.GetStrategy(c.Request().Context(), c.Param("type"))
	if err != nil {
		return h.mapError(c, err)
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) HandleCreatePrincipal(c echo.Context) error {
	var body struct {
		Name string `json:"name"`
		Tag  string `json:"tag"`
	}
	if err := c.Bind(&body); err != nil {
		return h.Error(c, http.StatusBadRequest, "Invalid request body", err)
	}

	p, err := h.manager.CreatePrincipal(c.Request().Context(), body.Name, body.Tag)
	if err != nil {
		return h.mapError(c, err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) HandleDeletePrincipal(c echo.Context) error {
	if err := h.manager.DeletePrincipal(c.Request().Context(), c.Param("name")); err != nil {
		return h.mapError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) HandlePrincipalEntries(c echo.Context) error {
	page, err := h.manager.ListPrincipalEntries(
		c.Request().Context(),
		c.Param("name"),
		c.QueryParam("type"),
		c.QueryParam("permission"),
		pageRequest(c),
	)
	if err != nil {
		return h.mapError(c, err)
	}
	return c.JSON(http.StatusOK, page)
}

func (h *Handler) HandleCreateAcl(c echo.Context) error {
	var body acl.Resource
	if err := c.Bind(&body); err != nil {
		return h.Error(c, http.StatusBadRequest, "Invalid request body", err)
	}

	a, err := h.manager.CreateAcl(c.Request().Context(), body)
	if err != nil {
		return h.mapError(c, err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) HandleGetAcl(c echo.Context) error {
	a, err := h.manager.GetAcl(c.Request().Context(), resourceParam(c))
	if err != nil {
		return h.mapError(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) HandleListAcls(c echo.Context) error {
	page, err := h.manager.ListAcls(c.Request().Context(), c.Param("type"), pageRequest(c))
	if err != nil {
		return h.mapError(c, err)
	}
	return c.JSON(http.StatusOK, page)
}

func (h *Handler) HandleUpdateAcl(c echo.Context) error {
	var body struct {
		Tag   string `json:"tag"`
		Owner string `json:"owner"`
	}
	if err := c.Bind(&body); err != nil {
		return h.Error(c, http.StatusBadRequest, "Invalid request body", err)
	}

	resource := resourceParam(c)
	resource.Tag = body.Tag
	resource.Owner = body.Owner
	if err := h.manager.UpdateAcl(c.Request().Context(), resource); err != nil {
		return h.mapError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) HandleDeleteAcl(c echo.Context) error {
	if err := h.manager.DeleteAcl(c.Request().Context(), resourceParam(c)); err != nil {
		return h.mapError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) HandleCreateEntries(c echo.Context) error {
	var body struct {
		Principal   string   `json:"principal"`
		Permissions []string `json:"permissions"`
	}
	if err := c.Bind(&body); err != nil {
		return h.Error(c, http.StatusBadRequest, "Invalid request body", err)
	}

	err := h.manager.CreateEntries(c.Request().Context(), resourceParam(c), body.Principal, body.Permissions...)
	if err != nil {
		return h.mapError(c, err)
	}
	return c.NoContent(http.StatusCreated)
}

func (h *Handler) HandleDeleteEntries(c echo.Context) error {
	var body struct {
		Principal   string   `json:"principal"`
		Permissions []string `json:"permissions"`
	}
	if err := c.Bind(&body); err != nil {
		return h.Error(c, http.StatusBadRequest, "Invalid request body", err)
	}

	err := h.manager.DeleteEntries(c.Request().Context(), resourceParam(c), body.Principal, body.Permissions...)
	if err != nil {
		return h.mapError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) HandleListEntries(c echo.Context) error {
	page, err := h.manager.ListEntries(
		c.Request().Context(),
		resourceParam(c),
		c.QueryParam("principal"),
		pageRequest(c),
	)
	if err != nil {
		return h.mapError(c, err)
	}
	return c.JSON(http.StatusOK, page)
}

func (h *Handler) HandleIsAccessible(c echo.Context) error {
	resource := acl.NewResource(c.QueryParam("type"), c.QueryParam("id"))
	allowed, err := h.manager.IsAccessible(
		c.Request().Context(),
		resource,
		c.QueryParam("principal"),
		c.QueryParam("permission"),
	)
	if err != nil {
		return h.mapError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"accessible": allowed})
}

func (h *Handler) HandleAccessible(c echo.Context) error {
	var body struct {
		Type       string `json:"type"`
		ID         string `json:"id"`
		Principal  string `json:"principal"`
		Permission string `json:"permission"`
	}
	if err := c.Bind(&body); err != nil {
		return h.Error(c, http.StatusBadRequest, "Invalid request body", err)
	}

	err := h.manager.Accessible(
		c.Request().Context(),
		acl.NewResource(body.Type, body.ID),
		body.Principal,
		body.Permission,
	)
	if err != nil {
		return h.mapError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func resourceParam(c echo.Context) acl.Resource {
	return acl.NewResource(c.Param("type"), c.Param("id"))
}

func pageRequest(c echo.Context) acl.PageRequest {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("size"))
	return acl.PageRequest{Page: page, Size: size}
}

// mapError translates the engine's error taxonomy to HTTP statuses:
// validation 400, conflicts 409, not-found 404, denied 403.
func (h *Handler) mapError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, acl.ErrBadStrategyFormat):
		return h.Error(c, http.StatusBadRequest, "Invalid strategy expression", err)
	case errors.Is(err, acl.ErrStrategyExists),
		errors.Is(err, acl.ErrPrincipalExists),
		errors.Is(err, acl.ErrAclExists),
		errors.Is(err, acl.ErrPrincipalInUse):
		return h.Error(c, http.StatusConflict, "Already exists", err)
	case errors.Is(err, acl.ErrStrategyNotFound),
		errors.Is(err, acl.ErrPrincipalNotFound),
		errors.Is(err, acl.ErrResourceNotFound),
		errors.Is(err, acl.ErrUnknownResourceType):
		return h.Error(c, http.StatusNotFound, "Not found", err)
	case errors.Is(err, acl.ErrAccessDenied):
		return h.Error(c, http.StatusForbidden, "Access denied", err)
	default:
		return h.Error(c, http.StatusInternalServerError, "Internal server error", err)
	}
}

// Error writes a uniform JSON error response.
func (h *Handler) Error(c echo.Context, code int, message string, err error) error {
	resp := map[string]any{
		"status": message,
		"code":   code,
	}
	if err != nil {
		resp["error"] = err.Error()
	}
	return c.JSON(code, resp)
}
