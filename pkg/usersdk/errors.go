package usersdk

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// APIError is a non-2xx answer from the service, decoded from the uniform
// error body when one was present.
type APIError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("userd: %s (%s), HTTP %d", e.Code, e.Description, e.StatusCode)
	}
	return fmt.Sprintf("userd: HTTP %d", e.StatusCode)
}

// decodeError drains the response and builds an APIError from it.
func decodeError(resp *http.Response) error {
	defer resp.Body.Close()

	apiErr := &APIError{StatusCode: resp.StatusCode}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err == nil && len(body) > 0 {
		var parsed ErrorResponse
		if json.Unmarshal(body, &parsed) == nil {
			apiErr.Code = parsed.Error
			apiErr.Description = parsed.ErrorDescription
		}
	}

	return apiErr
}

// decodeJSON decodes a successful response body into out and closes it.
func decodeJSON(resp *http.Response, out any) error {
	defer resp.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
