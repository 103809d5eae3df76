package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/matheus3301/relay/internal/message"
	"github.com/matheus3301/relay/internal/store"
)

// MessageStore is the record store subset used for client message writes.
type MessageStore interface {
	Get(ctx context.Context, path string) (store.Record, bool, error)
	Create(ctx context.Context, path string, rec store.Record) error
	UpdateIf(ctx context.Context, path string, apply func(current store.Record) (store.Record, error)) error
}

// MessagesHandler serves message creation and read receipts.
type MessagesHandler struct {
	store  MessageStore
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

// NewMessagesHandler creates a messages handler.
func NewMessagesHandler(s MessageStore, logger *zap.Logger) *MessagesHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MessagesHandler{
		store:  s,
		logger: logger.With(zap.String("handler", "messages")),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Register mounts the message routes.
func (h *MessagesHandler) Register(e *echo.Echo) {
	group := e.Group("/users/:user_id/chats/:chat_id/messages")
	group.POST("", h.Create)
	group.PATCH("/:message_id/status", h.UpdateStatus)
	group.PATCH("/:message_id/media", h.CompleteUpload)
}

// Create writes a new message to the sender's copy of the chat. Missing id,
// sender, receiver, status and timeSent are filled in; the write triggers
// delivery to the receiver.
func (h *MessagesHandler) Create(c echo.Context) error {
	userID := strings.TrimSpace(c.Param("user_id"))
	chatID := strings.TrimSpace(c.Param("chat_id"))
	if userID == "" || chatID == "" {
		return badRequest("user id and chat id are required")
	}

	data, err := readData(c)
	if err != nil {
		return err
	}
	var rec map[string]any
	if err := json.Unmarshal(data, &rec); err != nil || rec == nil {
		return badRequest("message must be a JSON object")
	}

	if err := h.fillDefaults(rec, userID, chatID); err != nil {
		return err
	}
	m, err := message.Decode(rec)
	if err != nil {
		return badRequest(err.Error())
	}

	path := store.MessagePath(userID, chatID, m.ID)
	encoded := m.Encode()
	if err := h.store.Create(c.Request().Context(), path, encoded); err != nil {
		if errors.Is(err, store.ErrExists) {
			return echo.NewHTTPError(http.StatusConflict, fmt.Sprintf("message %s already exists", m.ID))
		}
		return err
	}

	h.logger.Info("message created",
		zap.String("message_id", m.ID),
		zap.String("sender", m.Sender),
		zap.String("receiver", m.Receiver),
		zap.String("type", string(m.Type())),
	)
	return respond(c, http.StatusCreated, encoded)
}

func (h *MessagesHandler) fillDefaults(rec map[string]any, userID, chatID string) error {
	if id, _ := rec["id"].(string); id == "" {
		rec["id"] = h.newID()
	}
	if _, ok := rec["sender"]; !ok {
		rec["sender"] = userID
	}
	if _, ok := rec["receiver"]; !ok {
		rec["receiver"] = chatID
	}
	if rec["sender"] != userID {
		return badRequest("sender must match the user in the path")
	}
	if rec["receiver"] != chatID {
		return badRequest("receiver must match the chat in the path")
	}
	if userID == chatID {
		return badRequest("sender and receiver must differ")
	}

	status, ok := message.StatusOf(rec)
	if !ok {
		rec["status"] = string(message.StatusNone)
	} else if status != string(message.StatusNone) {
		return badRequest("new messages must have status none")
	}
	if v, ok := rec["timeSent"]; !ok {
		rec["timeSent"] = h.now().UTC().Format(message.TimeLayout)
	} else {
		ts, err := message.CanonicalTime(v)
		if err != nil {
			return badRequest(err.Error())
		}
		rec["timeSent"] = ts
	}
	message.DropEmptyCaption(rec)
	return nil
}

type statusRequest struct {
	Status string `json:"status"`
}

type statusResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// UpdateStatus applies a read receipt to one copy of a message. Only
// forward transitions are accepted.
func (h *MessagesHandler) UpdateStatus(c echo.Context) error {
	path := store.MessagePath(c.Param("user_id"), c.Param("chat_id"), c.Param("message_id"))
	params, ok := store.ParseMessagePath(path)
	if !ok {
		return badRequest("invalid message path")
	}

	data, err := readData(c)
	if err != nil {
		return err
	}
	var req statusRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return badRequest("Invalid status data format")
	}
	next, err := message.ParseStatus(req.Status)
	if err != nil {
		return badRequest(err.Error())
	}

	err = h.store.UpdateIf(c.Request().Context(), path, func(current store.Record) (store.Record, error) {
		raw, _ := message.StatusOf(current)
		status, err := message.ParseStatus(raw)
		if err != nil {
			return nil, err
		}
		if _, err := status.Transition(next); err != nil {
			return nil, err
		}
		return store.Record{"status": string(next)}, nil
	})
	switch {
	case errors.Is(err, store.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("message %s not found", params.MessageID))
	case errors.Is(err, message.ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case err != nil:
		return err
	}
	return respond(c, http.StatusOK, statusResponse{ID: params.MessageID, Status: string(next)})
}

var errUploadClosed = errors.New("upload closed")

type mediaRequest struct {
	URI     string  `json:"uri"`
	Caption *string `json:"caption"`
}

type mediaResponse struct {
	ID  string `json:"id"`
	URI string `json:"uri"`
}

// CompleteUpload sets the media URI of an image or video message on the
// sender's copy once its upload has finished. The message must still be at
// status none; the write triggers delivery to the receiver.
func (h *MessagesHandler) CompleteUpload(c echo.Context) error {
	path := store.MessagePath(c.Param("user_id"), c.Param("chat_id"), c.Param("message_id"))
	params, ok := store.ParseMessagePath(path)
	if !ok {
		return badRequest("invalid message path")
	}

	data, err := readData(c)
	if err != nil {
		return err
	}
	var req mediaRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return badRequest("Invalid media data format")
	}
	if !isHTTPURL(req.URI) {
		return badRequest("uri must be an http(s) url")
	}

	err = h.store.UpdateIf(c.Request().Context(), path, func(current store.Record) (store.Record, error) {
		if status, _ := message.StatusOf(current); status != string(message.StatusNone) {
			return nil, fmt.Errorf("%w: message has status %q", errUploadClosed, status)
		}
		var key string
		switch tag, _ := current["type"].(string); message.Type(tag) {
		case message.TypeImage:
			key = "imageUri"
		case message.TypeVideo:
			key = "videoUri"
		default:
			return nil, fmt.Errorf("%w: %q messages carry no upload", errUploadClosed, tag)
		}
		fields := store.Record{key: req.URI}
		if req.Caption != nil && *req.Caption != "" {
			fields["text"] = *req.Caption
		}
		return fields, nil
	})
	switch {
	case errors.Is(err, store.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("message %s not found", params.MessageID))
	case errors.Is(err, errUploadClosed):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case err != nil:
		return err
	}
	return respond(c, http.StatusOK, mediaResponse{ID: params.MessageID, URI: req.URI})
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
