package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
)

const internalErrorMessage = "Internal server error"

// maxBodyBytes bounds request bodies read by the handlers.
const maxBodyBytes = 4 << 20

// Envelope wraps every request and response body.
type Envelope struct {
	Data any `json:"data"`
}

// ErrorBody is the payload of failed responses.
type ErrorBody struct {
	Error string `json:"error"`
}

func respond(c echo.Context, code int, data any) error {
	return c.JSON(code, Envelope{Data: data})
}

func badRequest(msg string) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusBadRequest, msg)
}

// readData reads a {"data": ...} request body and returns the raw data
// member. A body that is not a non-empty JSON object, or that lacks data,
// is a 400.
func readData(c echo.Context) (json.RawMessage, error) {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes))
	if err != nil {
		return nil, badRequest("Invalid or missing JSON in request body")
	}

	var req map[string]json.RawMessage
	if err := json.Unmarshal(body, &req); err != nil || len(req) == 0 {
		return nil, badRequest("Invalid or missing JSON in request body")
	}
	data, ok := req["data"]
	if !ok || isNull(data) {
		return nil, badRequest("Missing 'data' in request JSON")
	}
	return data, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
