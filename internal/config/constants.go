package config

// Default paths and limits
const (
	// DefaultDatabasePath is the default path for the application database
	DefaultDatabasePath = "./libreria.db"

	// DefaultUploadsDir is where primary payloads are written in disk mode
	DefaultUploadsDir = "./uploads"

	// DefaultMaxUploadBytes caps a whole multipart upload request (100 MiB)
	DefaultMaxUploadBytes = 100 << 20
)
