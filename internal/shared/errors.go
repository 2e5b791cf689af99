package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthorizationRequired = fmt.Errorf("manual authorization required")
	ErrNotAuthenticated      = fmt.Errorf("not authenticated")
	ErrRefreshFailed         = fmt.Errorf("token refresh failed")

	// API and service errors
	ErrAPIRequest    = fmt.Errorf("API request failed")
	ErrTrackNotFound = fmt.Errorf("track not found")
	ErrScrapeFailed  = fmt.Errorf("scrape failed")

	// Persistence errors
	ErrCachePersist = fmt.Errorf("cache persistence failed")
	ErrValueStore   = fmt.Errorf("persistent value store failed")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
)
