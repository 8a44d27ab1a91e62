package domain

import "time"

// FileMetadata describes a stored file.
type FileMetadata struct {
	Filename     string
	ContentType  string
	Size         int64
	LastModified *time.Time
}

// UploadOptions carries optional caller-supplied details for an upload.
type UploadOptions struct {
	Filename    string
	ContentType string

	// Size is the declared content length, or -1 when unknown.
	Size int64
}

// UploadResult is returned once a file has been stored.
type UploadResult struct {
	URL      string
	Key      string
	Metadata FileMetadata
}
