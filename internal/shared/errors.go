package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrLockHeld           = fmt.Errorf("another scheduler holds the store lock")

	// Crawl errors, recoverable at the job level
	ErrNavigation = fmt.Errorf("page navigation failed")
	ErrExtraction = fmt.Errorf("required page data not found")
	ErrNoTracks   = fmt.Errorf("no track list found")
	ErrTimeout    = fmt.Errorf("operation timed out")

	// ErrResolution is absorbed per track and never fails a job.
	ErrResolution = fmt.Errorf("track resolution failed")

	// Persistence errors
	ErrRepository  = fmt.Errorf("repository operation failed")
	ErrJobNotFound = fmt.Errorf("job not found")
	ErrPassLevel   = fmt.Errorf("reconciliation pass failed")

	// Search provider errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
