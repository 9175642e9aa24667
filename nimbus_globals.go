package nimbus

const (
	// ClientVersion is the version of the SDK reported in the
	// User-Agent string of every outgoing request.
	ClientVersion = "0.4.0"

	// DefaultAPIVersion is sent as the api-version query parameter
	// when a client does not override it.
	DefaultAPIVersion = "2026-06-01"

	ClientRequestIDHeader = "x-nim-client-request-id"
	RequestIDHeader       = "x-nim-request-id"
	ErrorCodeHeader       = "x-nim-error-code"
	DateHeader            = "x-nim-date"
	ContentCRC64Header    = "x-nim-content-crc64"
	NextMarkerHeader      = "x-nim-next-marker"
	MetadataHeaderPrefix  = "x-nim-meta-"
	CanonicalHeaderPrefix = "x-nim-"

	ContentTypeHeader = "Content-Type"
	ContentTypeJSON   = "application/json"
	ContentTypeOctet  = "application/octet-stream"

	// DefaultConfigFile is the name of the CLI settings file, looked up
	// in the user's home directory and next to the binary.
	DefaultConfigFile = ".nimbus.yml"

	// DefaultIdentityEndpoint is the token endpoint used by credential
	// implementations unless one is configured explicitly.
	DefaultIdentityEndpoint = "https://login.nimbus.cloud"
)

// OperationStatus values reported by long-running operation status
// monitors.
const (
	OperationStatusNotStarted = "NotStarted"
	OperationStatusInProgress = "InProgress"
	OperationStatusSucceeded  = "Succeeded"
	OperationStatusFailed     = "Failed"
	OperationStatusCanceled   = "Canceled"
)

// OperationLocationHeader points a client at the status monitor for a
// long-running operation accepted with a 201 or 202 response.
const OperationLocationHeader = "Operation-Location"
