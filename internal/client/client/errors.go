package client

import (
	"fmt"

	"github.com/dmitrijs2005/otaverifier/internal/common"
)

// ErrUnavailable is returned when the backend cannot be reached at all.
var ErrUnavailable = common.ErrUnavailable

// APIError is a non-2xx response. Detail holds the body's "detail" field
// when present, otherwise the trimmed body or the status text.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Detail)
}
