package apierrors

import (
	"fmt"
	"sort"
	"strings"
)

const (
	maxMessageLen   = 512
	maxDetails      = 32
	maxDetailKeyLen = 64
	maxDetailValLen = 256
)

// Error is a code-carrying error. Handlers type-assert on it to decide
// ack/retry/DLQ routing without re-deriving the failure taxonomy.
type Error struct {
	Code    Code
	Message string
	Details map[string]string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Retryable reports whether the runtime should reclaim-and-retry rather
// than route straight to the DLQ.
func (e *Error) Retryable() bool {
	if e == nil {
		return false
	}
	return Retryable(e.Code)
}

// New builds a bounded Error with the given code, message, and details.
func New(code Code, msg string, details map[string]string) *Error {
	if !Known(code) {
		code = Internal
	}
	e := &Error{Code: code, Message: sanitize(msg, maxMessageLen)}
	if len(details) == 0 {
		return e
	}
	keys := make([]string, 0, len(details))
	for k := range details {
		if strings.TrimSpace(k) != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := make(map[string]string, len(keys))
	for i, k := range keys {
		if i >= maxDetails || len(k) > maxDetailKeyLen {
			continue
		}
		out[k] = sanitize(details[k], maxDetailValLen)
	}
	e.Details = out
	return e
}

// Wrap attaches a code to an underlying error, preserving its message.
func Wrap(code Code, err error) *Error {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), nil)
}

func sanitize(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) > max {
		s = s[:max]
	}
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			continue
		}
		out = append(out, r)
	}
	return string(out)
}
