package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/matheus3301/relay/internal/contact"
)

// ContactMatcher resolves submitted contacts to registered users.
type ContactMatcher interface {
	Registered(ctx context.Context, contacts []contact.Contact) ([]contact.MatchedContact, error)
}

// ContactsHandler serves contact sync.
type ContactsHandler struct {
	matcher ContactMatcher
	logger  *zap.Logger
}

// NewContactsHandler creates a contacts handler.
func NewContactsHandler(m ContactMatcher, logger *zap.Logger) *ContactsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContactsHandler{matcher: m, logger: logger.With(zap.String("handler", "contacts"))}
}

// Register mounts the contact sync endpoint on every method so that
// non-POST requests get an enveloped 405.
func (h *ContactsHandler) Register(e *echo.Echo) {
	e.Any("/registeredContacts", h.Registered)
	e.Any("/request_registered_contacts", h.Registered)
}

type contactsRequest struct {
	Contacts []json.RawMessage `json:"contacts"`
}

type contactsResponse struct {
	RegisteredContacts []string `json:"registeredContacts"`
}

// Registered answers {"data":{"contacts":[...]}} with the submitted contacts
// that belong to registered users. Each contact may be an object or a JSON
// string; each result is a JSON-encoded string.
func (h *ContactsHandler) Registered(c echo.Context) error {
	method := c.Request().Method
	if method != http.MethodPost {
		return echo.NewHTTPError(http.StatusMethodNotAllowed,
			fmt.Sprintf("Invalid request method: %s. Expected POST", method))
	}

	data, err := readData(c)
	if err != nil {
		return err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return badRequest("Invalid contacts data format")
	}
	rawContacts, ok := fields["contacts"]
	if !ok || isNull(rawContacts) {
		return badRequest("Missing 'contacts' in request JSON data")
	}

	var req contactsRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return badRequest("Invalid contacts data format")
	}
	contacts, err := contact.DecodeAll(req.Contacts)
	if err != nil {
		h.logger.Info("rejected contacts", zap.Error(err))
		return badRequest("Invalid contacts data format")
	}

	matched, err := h.matcher.Registered(c.Request().Context(), contacts)
	if err != nil {
		return err
	}

	out := contactsResponse{RegisteredContacts: make([]string, 0, len(matched))}
	for _, m := range matched {
		s, err := m.JSON()
		if err != nil {
			return err
		}
		out.RegisteredContacts = append(out.RegisteredContacts, s)
	}
	return respond(c, http.StatusOK, out)
}
