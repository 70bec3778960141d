package airtable

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/iliyamo/partner-portal/internal/recordstore"
)

// APIError is a non-2xx response.  errors.Is matches it against the
// recordstore sentinels through Unwrap.
type APIError struct {
	Status  int
	Type    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("status %d %s: %s", e.Status, e.Type, e.Message)
	}
	return fmt.Sprintf("status %d %s", e.Status, e.Type)
}

// Unwrap maps the response to the matching recordstore sentinel, or nil.
func (e *APIError) Unwrap() error {
	switch {
	case e.Status == http.StatusUnauthorized:
		return recordstore.ErrUnauthorized
	case e.Type == "INVALID_PERMISSIONS_OR_MODEL_NOT_FOUND", e.Type == "TABLE_NOT_FOUND":
		return recordstore.ErrTableNotFound
	case e.Status == http.StatusNotFound:
		if strings.Contains(strings.ToLower(e.Message), "table") {
			return recordstore.ErrTableNotFound
		}
		return recordstore.ErrNotFound
	case e.Type == "UNKNOWN_FIELD_NAME", e.Type == "INVALID_FILTER_BY_FORMULA", e.Type == "INVALID_SORT":
		return recordstore.ErrUnknownField
	case e.Status == http.StatusForbidden:
		return recordstore.ErrUnauthorized
	}
	return nil
}

// parseAPIError decodes both error envelopes the API uses:
// {"error": "NOT_FOUND"} and {"error": {"type": "...", "message": "..."}}.
func parseAPIError(status int, body []byte) error {
	e := &APIError{Status: status}
	var env struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err == nil && len(env.Error) > 0 {
		var s string
		if err := json.Unmarshal(env.Error, &s); err == nil {
			e.Type = s
			return e
		}
		var obj struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(env.Error, &obj); err == nil {
			e.Type = obj.Type
			e.Message = obj.Message
			return e
		}
	}
	e.Message = strings.TrimSpace(string(body))
	return e
}
