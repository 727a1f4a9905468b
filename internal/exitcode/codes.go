package exitcode

// Exit codes for the himawari CLI.
// Schedulers can use these to decide retry strategy.
const (
	// Success - every requested composite was built
	Success = 0

	// ConfigError - missing or invalid configuration
	// Don't retry: fix the config first
	ConfigError = 1

	// NetworkError - the latest-date endpoint could not be reached or parsed
	// Retry with backoff
	NetworkError = 2

	// APIError - a tile exhausted its retries, so the composite was abandoned
	// The image may not be published yet; retry later
	APIError = 3

	// StorageError - failed to write the composite or its catalog record
	// Retry with backoff
	StorageError = 4

	// DataError - invalid request: unparseable date, reversed range,
	// unsupported level, band or scale
	// Don't retry: fix the arguments
	DataError = 5

	// ApplicationError - anything else, including bad command-line usage
	ApplicationError = 6
)
