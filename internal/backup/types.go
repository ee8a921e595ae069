// Package backup takes verified point-in-time copies of the sqlite store and
// prunes old copies by age tier.
package backup

import "time"

// FilePrefix starts the name of every backup file.
const FilePrefix = "kinstory-backup-"

// Config holds backup settings.
type Config struct {
	// DBPath is the sqlite database file to copy.
	DBPath string

	// Dir receives the backup files.
	Dir string

	// Interval between scheduled backups (default: 1h).
	Interval time.Duration

	Retention RetentionPolicy

	// Verify runs an integrity check on every new backup.
	Verify bool
}

// RetentionPolicy is how many backups to keep in each age tier:
// hourly (< 24h), daily (< 7d), weekly (< 30d) and monthly (< 365d).
// Older backups are always removed.
type RetentionPolicy struct {
	Hourly  int `yaml:"hourly"`  // default: 24
	Daily   int `yaml:"daily"`   // default: 7
	Weekly  int `yaml:"weekly"`  // default: 4
	Monthly int `yaml:"monthly"` // default: 12
}

func (p RetentionPolicy) withDefaults() RetentionPolicy {
	if p.Hourly <= 0 {
		p.Hourly = 24
	}
	if p.Daily <= 0 {
		p.Daily = 7
	}
	if p.Weekly <= 0 {
		p.Weekly = 4
	}
	if p.Monthly <= 0 {
		p.Monthly = 12
	}
	return p
}

// Info describes one backup file.
type Info struct {
	Path      string
	Timestamp time.Time
	Size      int64
}

// Result describes a finished backup.
type Result struct {
	Path     string
	Duration time.Duration
	Size     int64
	Verified bool
}
