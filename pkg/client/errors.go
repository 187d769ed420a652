package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrorClass represents a classification of HTTP errors.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 responses from Bitbucket's rate limiter.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// maxErrorBody caps how much of a failing response body is kept.
const maxErrorBody = 4096

// APIError is returned for transport failures and non-2xx responses.
type APIError struct {
	StatusCode int
	ErrorClass ErrorClass
	Method     string
	Endpoint   string
	Message    string
	Body       string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("atlassian %s error on %s %s: %s: %v",
			e.ErrorClass, e.Method, e.Endpoint, e.Message, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("atlassian %s error (status %d) on %s %s: %s: %v",
			e.ErrorClass, e.StatusCode, e.Method, e.Endpoint, e.Message, e.Err)
	}
	return fmt.Sprintf("atlassian %s error (status %d) on %s %s: %s",
		e.ErrorClass, e.StatusCode, e.Method, e.Endpoint, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is an APIError carrying a 404.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// StatusCode extracts the HTTP status from err, or 0 if there is none.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// ClassifyStatus maps an HTTP status code onto an ErrorClass.
// Successful and redirect statuses have no class.
func ClassifyStatus(statusCode int) ErrorClass {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case statusCode >= 400 && statusCode < 500:
		return ErrorClassClient
	case statusCode >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// errorResponse covers both error bodies Atlassian servers send:
// Bitbucket's {"errors":[{"message":...}]} and Bamboo's {"message":...}.
type errorResponse struct {
	Message string `json:"message"`
	Errors  []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// CheckStatus returns nil for 2xx responses. Otherwise it consumes the
// body and returns an *APIError describing the failure.
func CheckStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		ErrorClass: ClassifyStatus(resp.StatusCode),
		Message:    resp.Status,
	}
	if resp.Request != nil {
		apiErr.Method = resp.Request.Method
		apiErr.Endpoint = resp.Request.URL.Path
	}
	if apiErr.ErrorClass == "" {
		apiErr.ErrorClass = ErrorClassClient
	}

	if resp.Body != nil {
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if err != nil {
			apiErr.Err = fmt.Errorf("read error body: %w", err)
			return apiErr
		}
		apiErr.Body = string(bytes.TrimSpace(body))

		var decoded errorResponse
		if json.Unmarshal(body, &decoded) == nil {
			msgs := make([]string, 0, len(decoded.Errors)+1)
			if decoded.Message != "" {
				msgs = append(msgs, decoded.Message)
			}
			for _, e := range decoded.Errors {
				if e.Message != "" {
					msgs = append(msgs, e.Message)
				}
			}
			if len(msgs) > 0 {
				apiErr.Message = strings.Join(msgs, "; ")
			}
		}
	}

	return apiErr
}

// DecodeJSON checks the response status, decodes a JSON body into out
// (skipped when out is nil or the response has no content) and closes
// the body.
func DecodeJSON(resp *http.Response, out any) error {
	defer resp.Body.Close()

	if err := CheckStatus(resp); err != nil {
		return err
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", requestPath(resp), err)
	}
	return nil
}

func requestPath(resp *http.Response) string {
	if resp.Request == nil || resp.Request.URL == nil {
		return "unknown"
	}
	return resp.Request.URL.Path
}
