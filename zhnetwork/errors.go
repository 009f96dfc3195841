package zhnetwork

import "errors"

// Error taxonomy. The host API returns these directly; transport and
// logical-timeout errors stay internal and surface only through the
// ON_SEND{FAIL} event.
var (
	// ErrInvalidConfig is returned by Validate when an init option is out
	// of range; nothing is allocated.
	ErrInvalidConfig = errors.New("zhnetwork: invalid config")

	// ErrNotInitialized is returned by Send/Stop when the engine has not
	// been started.
	ErrNotInitialized = errors.New("zhnetwork: not initialized")

	// ErrAlreadyInitialized is returned by Start when called twice.
	ErrAlreadyInitialized = errors.New("zhnetwork: already initialized")

	// ErrInvalidArgument is returned by Send for a nil payload, len == 0,
	// or len > PayloadCap.
	ErrInvalidArgument = errors.New("zhnetwork: invalid argument")

	// ErrQueueBusy is returned by Send when free queue slots are below
	// half capacity.
	ErrQueueBusy = errors.New("zhnetwork: queue busy")
)
