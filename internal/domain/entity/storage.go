package entity

import "time"

// StorageStatus baza hajmi holati
type StorageStatus string

const (
	StorageOK       StorageStatus = "ok"
	StorageWarning  StorageStatus = "warning"
	StorageCritical StorageStatus = "critical"
)

// StorageSize measurement against the capacity ceiling.
type StorageSize struct {
	Bytes          int64   `json:"bytes"`
	LimitBytes     int64   `json:"limit_bytes"`
	PercentOfLimit float64 `json:"percent_of_limit"`
}

// DeleteCriteria describes one cleanup delete.
//
// Table alone deletes every row. OlderThan restricts to rows not updated since
// then. KeepRecentProducts on the products table deletes every product outside
// the N most recently updated ones (children cascade); on other tables it
// exempts rows that belong to those N products.
type DeleteCriteria struct {
	Table              string
	OlderThan          time.Time
	KeepRecentProducts int
}

// CleanupOptions tozalash parametrlari
type CleanupOptions struct {
	DeleteImages           bool
	RetentionDays          int
	KeepRecentProducts     int
	TruncateDescriptionsTo int
}

// CleanupResult tozalash natijasi
type CleanupResult struct {
	DeletedRows           map[string]int64 `json:"deleted_rows"`
	TruncatedDescriptions int64            `json:"truncated_descriptions"`
	Vacuumed              bool             `json:"vacuumed"`
}

// StorageReport guard hisobot
type StorageReport struct {
	Before        StorageSize    `json:"before"`
	After         *StorageSize   `json:"after,omitempty"`
	BytesFreed    int64          `json:"bytes_freed"`
	PercentFreed  float64        `json:"percent_freed"`
	Cleanup       *CleanupResult `json:"cleanup,omitempty"`
	BackupPath    string         `json:"backup_path,omitempty"`
	BackupRemote  string         `json:"backup_remote,omitempty"`
	Errors        []string       `json:"errors,omitempty"`
	CheckedAt     time.Time      `json:"checked_at"`
	ElapsedMillis int64          `json:"elapsed_ms"`
}

// GuardResult checkAndManageStorage natijasi
type GuardResult struct {
	CanProceed       bool          `json:"can_proceed"`
	Status           StorageStatus `json:"status"`
	CleanupPerformed bool          `json:"cleanup_performed"`
	Report           StorageReport `json:"report"`
}

// RestoreResult snapshotdan tiklash natijasi
type RestoreResult struct {
	Inserted map[string]int64 `json:"inserted"`
	Skipped  map[string]int64 `json:"skipped"`
}
