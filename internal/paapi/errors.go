package paapi

import "fmt"

// StatusError captures non-2xx HTTP responses from the Product Advertising API.
// Code and Message come from the first entry of the response's Errors list.
type StatusError struct {
	Operation  string
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *StatusError) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch {
	case e.Code != "" && e.Message != "":
		return fmt.Sprintf("%s request failed: status %d: %s: %s", e.Operation, e.StatusCode, e.Code, e.Message)
	case e.Body != "":
		return fmt.Sprintf("%s request failed: status %d: %s", e.Operation, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s request failed: status %d", e.Operation, e.StatusCode)
}

// Throttled reports whether the API rejected the call for exceeding the request rate.
func (e *StatusError) Throttled() bool {
	return e != nil && (e.StatusCode == 429 || e.Code == "TooManyRequests")
}
