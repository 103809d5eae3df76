package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/matheus3301/relay/internal/phone"
	"github.com/matheus3301/relay/internal/user"
)

// UserDirectory reads and writes registered users.
type UserDirectory interface {
	Lookup(ctx context.Context, id string) (user.User, bool, error)
	Put(ctx context.Context, u user.User) error
}

// UsersHandler serves user profile registration.
type UsersHandler struct {
	dir UserDirectory
}

// NewUsersHandler creates a users handler.
func NewUsersHandler(dir UserDirectory) *UsersHandler {
	return &UsersHandler{dir: dir}
}

// Register mounts the user routes.
func (h *UsersHandler) Register(e *echo.Echo) {
	e.PUT("/users/:user_id", h.Put)
	e.GET("/users/:user_id", h.Get)
}

type userRequest struct {
	Phone  *phone.Number `json:"phone"`
	Photo  string        `json:"photo"`
	Tokens []string      `json:"tokens"`
}

// Put creates or replaces a user's phone, photo and push tokens.
func (h *UsersHandler) Put(c echo.Context) error {
	id := strings.TrimSpace(c.Param("user_id"))
	if id == "" {
		return badRequest("user id is required")
	}

	data, err := readData(c)
	if err != nil {
		return err
	}
	var req userRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return badRequest("Invalid user data format")
	}
	if req.Phone == nil || req.Phone.Value == "" {
		return badRequest("Missing 'phone' in request JSON data")
	}

	tokens := make([]string, 0, len(req.Tokens))
	for _, t := range req.Tokens {
		if t = strings.TrimSpace(t); t != "" {
			tokens = append(tokens, t)
		}
	}

	u := user.User{ID: id, Phone: *req.Phone, Photo: req.Photo, Tokens: tokens}
	if err := h.dir.Put(c.Request().Context(), u); err != nil {
		return err
	}
	return respond(c, http.StatusOK, u)
}

// Get returns a registered user.
func (h *UsersHandler) Get(c echo.Context) error {
	id := strings.TrimSpace(c.Param("user_id"))
	u, ok, err := h.dir.Lookup(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "user "+id+" not found")
	}
	return respond(c, http.StatusOK, u)
}
