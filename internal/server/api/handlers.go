package api

import (
	"errors"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/labstack/echo/v4"

	"stash/internal/server/auth"
	"stash/internal/server/database"
	"stash/internal/server/service"
)

// Handler contains the HTTP handlers for the stash API.
type Handler struct {
	files    *service.FileService
	users    *service.UserService
	gateway  *auth.Gateway
	metadata database.Store
	sessions auth.SessionStore
}

// NewHandler creates a new handler with the given dependencies.
func NewHandler(files *service.FileService, users *service.UserService, gateway *auth.Gateway, metadata database.Store, sessions auth.SessionStore) *Handler {
	return &Handler{
		files:    files,
		users:    users,
		gateway:  gateway,
		metadata: metadata,
		sessions: sessions,
	}
}

// fileResponse is the wire shape of a file record. LocalPath never leaves
// the server.
type fileResponse struct {
	ID       string `json:"id"`
	UserID   string `json:"userId"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	IsPublic bool   `json:"isPublic"`
	ParentID string `json:"parentId"`
}

func toFileResponse(f *database.File) fileResponse {
	return fileResponse{
		ID:       f.ID,
		UserID:   f.OwnerID,
		Name:     f.Name,
		Type:     string(f.Type),
		IsPublic: f.IsPublic,
		ParentID: f.ParentID.String(),
	}
}

// HandleStatus handles GET /status.
// Reports liveness of the session and metadata stores.
func (h *Handler) HandleStatus(c echo.Context) error {
	ctx := c.Request().Context()
	return c.JSON(http.StatusOK, echo.Map{
		"redis": h.sessions.Ping(ctx) == nil,
		"db":    h.metadata.Ping(ctx) == nil,
	})
}

// HandleStats handles GET /stats.
// Returns aggregate user and file counts.
func (h *Handler) HandleStats(c echo.Context) error {
	stats, err := h.users.Counts(c.Request().Context())
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

// HandleRegister handles POST /users.
func (h *Handler) HandleRegister(c echo.Context) error {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	user, err := h.users.Register(c.Request().Context(), body.Email, body.Password)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"id":    user.ID,
		"email": user.Email,
	})
}

// HandleMe handles GET /users/me.
func (h *Handler) HandleMe(c echo.Context) error {
	user, err := h.users.Me(c.Request().Context(), callerID(c))
	if err != nil {
		// A session without a backing user row means the account is gone;
		// the stale token gets the same answer as a bad one.
		if errors.Is(err, service.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
		}
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"id":    user.ID,
		"email": user.Email,
	})
}

// HandleConnect handles GET /connect.
// Exchanges Basic credentials for a fresh session token.
func (h *Handler) HandleConnect(c echo.Context) error {
	email, password, ok := c.Request().BasicAuth()
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	token, err := h.gateway.Login(c.Request().Context(), email, password)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"token": token})
}

// HandleDisconnect handles GET /disconnect.
// Invalidates the presented session token.
func (h *Handler) HandleDisconnect(c echo.Context) error {
	token := c.Request().Header.Get(TokenHeader)

	if err := h.gateway.Logout(c.Request().Context(), token); err != nil {
		return mapServiceError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}

// HandleUpload handles POST /files.
// Creates a folder, or a file/image from a base64 payload.
func (h *Handler) HandleUpload(c echo.Context) error {
	var body struct {
		Name     string `json:"name"`
		Type     string `json:"type"`
		ParentID string `json:"parentId"`
		IsPublic bool   `json:"isPublic"`
		Data     string `json:"data"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	file, err := h.files.Create(c.Request().Context(), callerID(c), service.CreateFileInput{
		Name:     body.Name,
		Type:     body.Type,
		ParentID: body.ParentID,
		IsPublic: body.IsPublic,
		Data:     body.Data,
	})
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusCreated, toFileResponse(file))
}

// HandleShow handles GET /files/:id.
func (h *Handler) HandleShow(c echo.Context) error {
	file, err := h.files.Get(c.Request().Context(), callerID(c), c.Param("id"))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toFileResponse(file))
}

// HandleIndex handles GET /files.
// Lists the caller's records under parentId, 20 per page.
func (h *Handler) HandleIndex(c echo.Context) error {
	page := 0
	if p := c.QueryParam("page"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			page = n
		}
	}

	files, err := h.files.List(c.Request().Context(), callerID(c), c.QueryParam("parentId"), page)
	if err != nil {
		return mapServiceError(c, err)
	}

	out := make([]fileResponse, 0, len(files))
	for _, f := range files {
		out = append(out, toFileResponse(f))
	}
	return c.JSON(http.StatusOK, out)
}

// HandlePublish handles PUT /files/:id/publish.
func (h *Handler) HandlePublish(c echo.Context) error {
	return h.setVisibility(c, true)
}

// HandleUnpublish handles PUT /files/:id/unpublish.
func (h *Handler) HandleUnpublish(c echo.Context) error {
	return h.setVisibility(c, false)
}

func (h *Handler) setVisibility(c echo.Context, public bool) error {
	file, err := h.files.SetVisibility(c.Request().Context(), callerID(c), c.Param("id"), public)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toFileResponse(file))
}

// HandleContent handles GET /files/:id/data.
// The only route open to anonymous callers; private files are served to
// their owner only. An optional size query selects a thumbnail width.
func (h *Handler) HandleContent(c echo.Context) error {
	size := 0
	if s := c.QueryParam("size"); s != "" {
		// An explicit size must name one of the generated widths; 0 is only
		// the internal marker for "no size given".
		n, err := strconv.Atoi(s)
		if err != nil || n == 0 {
			return mapServiceError(c, service.ErrInvalidSize)
		}
		size = n
	}

	data, name, err := h.files.Content(c.Request().Context(), c.Param("id"), callerID(c), size)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.Blob(http.StatusOK, contentTypeFor(name), data)
}

// contentTypeFor infers a MIME type from the file name extension,
// defaulting to a generic binary type.
func contentTypeFor(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// mapServiceError translates service-layer errors into appropriate HTTP responses.
func mapServiceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	case errors.Is(err, service.ErrMissingName),
		errors.Is(err, service.ErrMissingType),
		errors.Is(err, service.ErrMissingData),
		errors.Is(err, service.ErrInvalidData),
		errors.Is(err, service.ErrParentNotFound),
		errors.Is(err, service.ErrParentNotFolder),
		errors.Is(err, service.ErrFolderContent),
		errors.Is(err, service.ErrInvalidSize),
		errors.Is(err, service.ErrMissingEmail),
		errors.Is(err, service.ErrMissingPassword),
		errors.Is(err, service.ErrEmailExists):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
}
