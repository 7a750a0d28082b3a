package models

import "time"

// ArchiveFormatVersion is written into every backup manifest.
const ArchiveFormatVersion = "1"

// ArchiveManifest describes a backup archive. It is stored unencrypted
// alongside the document inside the tarball.
type ArchiveManifest struct {
	Version      string `json:"version"`
	ExportedAt   int64  `json:"exportedAt"`
	BlockCount   int    `json:"blockCount"`
	ChannelCount int    `json:"channelCount"`
	Checksum     string `json:"checksum"` // SHA-256 of data.json
	Encrypted    bool   `json:"encrypted"`
}

// ExportedAtTime returns ExportedAt as time.Time.
func (m *ArchiveManifest) ExportedAtTime() time.Time {
	return time.UnixMilli(m.ExportedAt)
}
