package model

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Lifecycle names the state of an audio file record. A purged record no
// longer exists in the database; the tag is reported by the deletion path.
type Lifecycle string

const (
	LifecycleActive   Lifecycle = "active"
	LifecycleInactive Lifecycle = "inactive"
	LifecyclePurged   Lifecycle = "purged"
)

// allowedExtensions is the upload allow-list for audio binaries.
var allowedExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".ogg":  true,
	".m4a":  true,
	".flac": true,
}

// ExtensionAllowed reports whether the filename carries an accepted
// audio extension. Matching is case-insensitive.
func ExtensionAllowed(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return allowedExtensions[ext]
}

// AllowedExtensions returns the accepted extensions without the leading dot,
// for use in error messages.
func AllowedExtensions() []string {
	return []string{"mp3", "wav", "ogg", "m4a", "flac"}
}

// AudioFile represents an uploaded audio binary and its metadata.
// FilePath is the object path inside the binary store; FileSize is derived
// from the stored object on every attach or replacement and is never set
// by API callers.
type AudioFile struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      int64     `gorm:"index;not null" json:"user_id"`
	Title       string    `gorm:"size:200;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	FilePath    string    `gorm:"size:512;not null" json:"file_path"`
	Duration    float64   `json:"duration"`
	FileSize    int64     `json:"file_size"`
	IsActive    bool      `gorm:"default:true" json:"is_active"`
	UploadedAt  time.Time `gorm:"autoCreateTime" json:"uploaded_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// State reports the lifecycle tag for an existing record.
func (a *AudioFile) State() Lifecycle {
	if a.IsActive {
		return LifecycleActive
	}
	return LifecycleInactive
}

// FileSizeDisplay returns a human-readable size string. An unset size
// renders as "Unknown"; sizes below one megabyte render in KB, otherwise MB,
// both with two decimal places.
func (a *AudioFile) FileSizeDisplay() string {
	if a.FileSize <= 0 {
		return "Unknown"
	}
	sizeMB := float64(a.FileSize) / (1024 * 1024)
	if sizeMB < 1 {
		return fmt.Sprintf("%.2f KB", float64(a.FileSize)/1024)
	}
	return fmt.Sprintf("%.2f MB", sizeMB)
}

// AudioFileCounts summarizes record states for the admin tooling.
type AudioFileCounts struct {
	Total    int64
	Active   int64
	Inactive int64
}
