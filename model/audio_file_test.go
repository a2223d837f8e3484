package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFileSizeDisplay(t *testing.T) {
	tests := []struct {
		name     string
		fileSize int64
		expected string
	}{
		{
			name:     "unset size",
			fileSize: 0,
			expected: "Unknown",
		},
		{
			name:     "small file in KB",
			fileSize: 500,
			expected: "0.49 KB",
		},
		{
			name:     "just under one MB",
			fileSize: 1024*1024 - 1,
			expected: "1024.00 KB",
		},
		{
			name:     "exactly one MB",
			fileSize: 1024 * 1024,
			expected: "1.00 MB",
		},
		{
			name:     "two MB",
			fileSize: 2097152,
			expected: "2.00 MB",
		},
		{
			name:     "large file",
			fileSize: 52428800,
			expected: "50.00 MB",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &AudioFile{FileSize: tt.fileSize}
			assert.Equal(t, tt.expected, f.FileSizeDisplay())
		})
	}
}

func TestExtensionAllowed(t *testing.T) {
	tests := []struct {
		filename string
		allowed  bool
	}{
		{"song.mp3", true},
		{"song.wav", true},
		{"song.ogg", true},
		{"song.m4a", true},
		{"song.flac", true},
		{"SONG.MP3", true},
		{"archive.with.dots.flac", true},
		{"song.aac", false},
		{"song.exe", false},
		{"song", false},
		{"song.mp3.txt", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.allowed, ExtensionAllowed(tt.filename))
		})
	}
}

func TestLifecycleState(t *testing.T) {
	active := &AudioFile{IsActive: true}
	assert.Equal(t, LifecycleActive, active.State())

	inactive := &AudioFile{IsActive: false}
	assert.Equal(t, LifecycleInactive, inactive.State())
}
