// Copyright (C) The Ocean Data Platform Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package odp

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// FileMetadata describes one file stored in a dataset's raw storage.
// It is created when the file is registered and, apart from the
// server-maintained status fields, never mutated.
type FileMetadata struct {
	// File name, unique within the dataset.
	Name string `json:"name"`

	MimeType string `json:"mime_type,omitempty"`

	// Content size in bytes. Zero until content has been
	// uploaded.
	SizeBytes int64 `json:"size_bytes,omitempty"`

	// UUID of the dataset the file belongs to.
	Dataset *uuid.UUID `json:"dataset,omitempty"`

	// Free-form caller-supplied metadata.
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// Optional GeoJSON geometry locating the file contents.
	GeoLocation map[string]interface{} `json:"geo_location,omitempty"`

	CreatedTime  *time.Time `json:"created_time,omitempty"`
	UploadedTime *time.Time `json:"uploaded_time,omitempty"`
	DeletedTime  *time.Time `json:"deleted_time,omitempty"`
}

func (f FileMetadata) String() string {
	return fmt.Sprintf("%s (%s, %s)", f.Name, f.MimeType, humanize.Bytes(uint64(f.SizeBytes)))
}

// Uploaded reports whether content has been uploaded for the file,
// as opposed to a bare metadata registration.
func (f *FileMetadata) Uploaded() bool {
	return f.UploadedTime != nil
}

// fileList is one page of a raw storage listing.
type fileList struct {
	Results []FileMetadata `json:"results"`
	Next    string         `json:"next"`
}

// resourceList is one page of a catalog listing.
type resourceList struct {
	Results []Resource `json:"results"`
	Next    string     `json:"next"`
}

// rowList is one page of a tabular select.
type rowList struct {
	Results []Row  `json:"results"`
	Next    string `json:"next"`
}
