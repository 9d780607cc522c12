package api

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrSymbolNotFound      = errors.New("symbol not found")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrInsufficientHistory = errors.New("insufficient price history")
)

// CheckStatus maps a non 2xx provider response onto the error taxonomy
func CheckStatus(res *http.Response, symbol string) error {
	switch {
	case res.StatusCode >= 200 && res.StatusCode < 300:
		return nil
	case res.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
	default:
		return fmt.Errorf("%w: status %d requesting %s", ErrProviderUnavailable, res.StatusCode, symbol)
	}
}
