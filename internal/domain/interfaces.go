package domain

// SnapshotSource hands out immutable snapshots of the study collection.
// Implementations must bump Snapshot.Version on every mutation.
type SnapshotSource interface {
	Snapshot() Snapshot
}

// StudyStore is the mutable study collection owned by the host.
type StudyStore interface {
	SnapshotSource
	Add(study Study) (Study, error)
	Update(id string, status StudyStatus, findings *Findings) (Study, error)
	Get(id string) (Study, error)
	Version() uint64
}

// ChangeNotifier lets a host learn when the store has moved to a new version.
// The returned cancel func must be called to release the subscription.
type ChangeNotifier interface {
	Subscribe() (<-chan uint64, func())
	Version() uint64
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetEngineConfig() *EngineConfig
	GetLoggingConfig() *LoggingConfig
	Reload() error
	Validate() error
	IsProduction() bool
	IsDevelopment() bool
}
