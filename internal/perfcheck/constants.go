package perfcheck

// Request shaping defaults.
const (
	DefaultChunkSize        = 500
	WorkerChannelMultiplier = 2
)

// Report file permissions.
const (
	directoryPermission = 0750
	filePermission      = 0600
)
