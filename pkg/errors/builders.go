// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
)

// WrapError converts a generic error into a structured AgentError
func WrapError(err error) *AgentError {
	if err == nil {
		return nil
	}

	var agentErr *AgentError
	if stderrors.As(err, &agentErr) {
		return agentErr
	}

	if stderrors.Is(err, context.Canceled) {
		return NewAgentErrorWithCause(ErrorCodeContextCanceled, "operation was canceled", err)
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return NewAgentErrorWithCause(ErrorCodeDeadlineExceeded, "operation timed out", err)
	}

	if netErr := classifyNetworkError(err); netErr != nil {
		return netErr
	}

	var urlErr *url.Error
	if stderrors.As(err, &urlErr) {
		return classifyURLError(urlErr)
	}

	return NewAgentErrorWithCause(ErrorCodeUnknown, err.Error(), err)
}

// WrapHTTPError converts an HTTP response from the controller into a
// structured AgentError. The controller's error envelope is a plain
// {"error": "..."} object or a bare text body; no per-resource error
// catalog exists, so this always falls back to status-code mapping.
func WrapHTTPError(statusCode int, body []byte) *AgentError {
	code := mapHTTPStatusToErrorCode(statusCode)
	message := fmt.Sprintf("controller returned HTTP %d: %s", statusCode, http.StatusText(statusCode))

	agentErr := NewAgentError(code, message)
	if len(body) > 0 && len(body) < 1000 {
		agentErr.Details = string(body)
	}
	return agentErr
}

// classifyNetworkError identifies and wraps network-related errors
func classifyNetworkError(err error) *AgentError {
	if err == nil {
		return nil
	}

	if stderrors.Is(err, context.Canceled) {
		return NewAgentErrorWithCause(ErrorCodeContextCanceled, "operation was canceled", err)
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return NewAgentErrorWithCause(ErrorCodeDeadlineExceeded, "operation deadline exceeded", err)
	}

	errStr := err.Error()

	var netErr net.Error
	if stderrors.As(err, &netErr) {
		if netErr.Timeout() {
			return NewAgentErrorWithCause(ErrorCodeNetworkTimeout, "network operation timed out", err)
		}
		if strings.Contains(errStr, "connection reset") ||
			strings.Contains(errStr, "broken pipe") ||
			strings.Contains(errStr, "temporary") {
			return NewAgentErrorWithCause(ErrorCodeConnectionRefused, "temporary network failure", err)
		}
	}

	switch {
	case strings.Contains(errStr, "connection refused"):
		return NewAgentErrorWithCause(ErrorCodeConnectionRefused, "connection refused by controller", err)
	case strings.Contains(errStr, "no such host"):
		return NewAgentErrorWithCause(ErrorCodeDNSResolution, "DNS resolution failed", err)
	case strings.Contains(errStr, "timeout"):
		return NewAgentErrorWithCause(ErrorCodeNetworkTimeout, "network timeout", err)
	case strings.Contains(errStr, "tls"):
		return NewAgentErrorWithCause(ErrorCodeTLSHandshake, "TLS handshake failed", err)
	case strings.Contains(errStr, "certificate"):
		return NewAgentErrorWithCause(ErrorCodeTLSHandshake, "TLS certificate error", err)
	}

	var opErr *net.OpError
	if stderrors.As(err, &opErr) {
		var dnsErr *net.DNSError
		if stderrors.As(opErr.Err, &dnsErr) {
			return NewAgentErrorWithCause(ErrorCodeDNSResolution, "DNS lookup failed", dnsErr)
		}
		var syscallErr syscall.Errno
		if stderrors.As(opErr.Err, &syscallErr) {
			switch syscallErr {
			case syscall.ECONNREFUSED:
				return NewAgentErrorWithCause(ErrorCodeConnectionRefused, "connection refused", err)
			case syscall.ETIMEDOUT:
				return NewAgentErrorWithCause(ErrorCodeNetworkTimeout, "connection timeout", err)
			case syscall.ENETUNREACH:
				return NewAgentErrorWithCause(ErrorCodeDNSResolution, "network unreachable", err)
			}
		}
	}

	return nil
}

// classifyURLError handles URL-specific errors
func classifyURLError(urlErr *url.Error) *AgentError {
	var host string
	if u, err := url.Parse(urlErr.URL); err == nil {
		host = u.Hostname()
	}

	if stderrors.Is(urlErr.Err, context.Canceled) {
		return NewAgentErrorWithCause(ErrorCodeContextCanceled, "operation was canceled", urlErr)
	}
	if stderrors.Is(urlErr.Err, context.DeadlineExceeded) {
		return NewAgentErrorWithCause(ErrorCodeDeadlineExceeded, "operation deadline exceeded", urlErr)
	}

	if netErr := classifyNetworkError(urlErr.Err); netErr != nil {
		if host != "" {
			transportErr := &TransportError{AgentError: netErr, Host: host}
			return transportErr.AgentError
		}
		return netErr
	}

	return NewAgentErrorWithCause(ErrorCodeNetworkTimeout, "URL error: "+urlErr.Op, urlErr)
}

// NewClientError creates errors for client-side issues
func NewClientError(code ErrorCode, message string, details ...string) *AgentError {
	err := NewAgentError(code, message)
	if len(details) > 0 {
		err.Details = strings.Join(details, "; ")
	}
	return err
}

// NewValidationErrorf creates a validation error with a formatted message
func NewValidationErrorf(field string, value interface{}, format string, args ...interface{}) *ValidationError {
	message := fmt.Sprintf(format, args...)
	return NewValidationError(message, field, value)
}

// IsRetryableError checks if an error is retryable
func IsRetryableError(err error) bool {
	var agentErr *AgentError
	if stderrors.As(err, &agentErr) {
		return agentErr.IsRetryable()
	}

	if err != nil {
		errStr := err.Error()
		return strings.Contains(errStr, "timeout") ||
			strings.Contains(errStr, "connection refused") ||
			strings.Contains(errStr, "temporary failure") ||
			strings.Contains(errStr, "service unavailable")
	}

	return false
}

// IsTemporaryError checks if an error is temporary
func IsTemporaryError(err error) bool {
	if err == nil {
		return false
	}

	var agentErr *AgentError
	if stderrors.As(err, &agentErr) {
		return agentErr.IsTemporary()
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) {
		if netErr.Timeout() {
			return true
		}
	}

	errorStr := err.Error()
	if strings.Contains(errorStr, "connection reset") ||
		strings.Contains(errorStr, "broken pipe") ||
		strings.Contains(errorStr, "network is unreachable") ||
		strings.Contains(errorStr, "temporary") {
		return true
	}

	return false
}

// GetErrorCode extracts the error code from any error
func GetErrorCode(err error) ErrorCode {
	var agentErr *AgentError
	if stderrors.As(err, &agentErr) {
		return agentErr.Code
	}
	return ErrorCodeUnknown
}

// GetErrorCategory extracts the error category from any error
func GetErrorCategory(err error) ErrorCategory {
	var agentErr *AgentError
	if stderrors.As(err, &agentErr) {
		return agentErr.Category
	}
	return CategoryUnknown
}

// IsNetworkError checks if an error is a transport-related error
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}

	var agentErr *AgentError
	if stderrors.As(err, &agentErr) {
		return agentErr.Category == CategoryTransport
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) {
		return true
	}

	var urlErr *url.Error
	if stderrors.As(err, &urlErr) {
		return true
	}

	errMsg := strings.ToLower(err.Error())
	networkPatterns := []string{
		"connection refused",
		"connection reset",
		"no such host",
		"network unreachable",
		"timeout",
		"tls handshake",
		"dns",
	}

	for _, pattern := range networkPatterns {
		if strings.Contains(errMsg, pattern) {
			return true
		}
	}

	return false
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var valErr *ValidationError
	if stderrors.As(err, &valErr) {
		return true
	}
	var agentErr *AgentError
	if stderrors.As(err, &agentErr) {
		return agentErr.Category == CategoryValidation
	}
	return false
}

// IsFatalError checks if an error should terminate the agent rather than
// be logged and retried.
func IsFatalError(err error) bool {
	var agentErr *AgentError
	if stderrors.As(err, &agentErr) {
		return agentErr.Category == CategoryFatal
	}
	return false
}
