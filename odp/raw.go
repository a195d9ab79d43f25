// Copyright (C) The Ocean Data Platform Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package odp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"

	"github.com/oceandatahub/odp-go/ctxlog"
)

// RawClient accesses a dataset's raw file storage.
type RawClient struct {
	client   *Client
	endpoint string
}

// FileCommitState reports how far a CreateFile call got.
type FileCommitState int

const (
	// FileCommitted: metadata registered and content uploaded.
	FileCommitted FileCommitState = iota

	// FileFailed: the operation failed and left nothing behind
	// (either metadata registration failed, or the upload failed
	// and the registration was rolled back successfully).
	FileFailed

	// FileMetadataOrphaned: the upload failed and the rollback of
	// the metadata registration also failed, so an orphaned
	// metadata entry remains in the dataset. The caller should
	// reconcile by deleting or re-uploading the file.
	FileMetadataOrphaned
)

func (s FileCommitState) String() string {
	switch s {
	case FileCommitted:
		return "committed"
	case FileFailed:
		return "failed"
	case FileMetadataOrphaned:
		return "metadata-orphaned"
	default:
		return fmt.Sprintf("FileCommitState(%d)", int(s))
	}
}

func (c *RawClient) filePath(dataset, name string) string {
	return c.endpoint + "/" + escapePath(dataset) + "/" + escapePath(name)
}

// CreateFile registers file metadata in the dataset and uploads the
// contents as one logical action. If the upload fails, the metadata
// registration is rolled back; the returned FileCommitState
// distinguishes a clean failure from an orphaned registration (in
// which case both the upload error and the rollback error are
// reported, joined).
//
// A nil contents reader registers metadata only; the content can be
// uploaded later with Upload.
func (c *RawClient) CreateFile(ctx context.Context, dataset string, meta FileMetadata, contents io.Reader) (*FileMetadata, FileCommitState, error) {
	if meta.Name == "" {
		return nil, FileFailed, newValidationError("file metadata is missing required field \"name\"")
	}
	var created FileMetadata
	err := c.client.RequestAndDecode(ctx, &created, "POST", c.filePath(dataset, meta.Name), nil, meta)
	if err != nil {
		return nil, FileFailed, err
	}
	if contents == nil {
		return &created, FileCommitted, nil
	}
	if err := c.Upload(ctx, dataset, meta.Name, contents); err != nil {
		if rberr := c.DeleteFile(ctx, dataset, meta.Name); rberr != nil {
			ctxlog.FromContext(ctx).WithError(rberr).WithField("file", meta.Name).Warn("rollback of file metadata failed, metadata orphaned")
			return &created, FileMetadataOrphaned, errors.Join(err, rberr)
		}
		return nil, FileFailed, err
	}
	final, err := c.GetFileMetadata(ctx, dataset, meta.Name)
	if err != nil {
		return &created, FileCommitted, nil
	}
	return final, FileCommitted, nil
}

// Upload replaces the contents of an already-registered file.
func (c *RawClient) Upload(ctx context.Context, dataset, name string, contents io.Reader) error {
	return c.client.RequestAndDecode(ctx, nil, "POST", c.filePath(dataset, name), nil, contents)
}

// GetFileMetadata fetches the metadata of one file. An absent file
// is a *NotFoundError.
func (c *RawClient) GetFileMetadata(ctx context.Context, dataset, name string) (*FileMetadata, error) {
	var meta FileMetadata
	err := c.client.RequestAndDecode(ctx, &meta, "GET", c.filePath(dataset, name)+"/metadata", nil, nil)
	if err != nil {
		return nil, err
	}
	return &meta, nil
}

// Download returns a stream of the file's contents. The caller must
// close it.
func (c *RawClient) Download(ctx context.Context, dataset, name string) (io.ReadCloser, error) {
	resp, err := c.client.Request(ctx, "GET", c.filePath(dataset, name), nil, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// DownloadFile streams the file's contents to the given local path.
func (c *RawClient) DownloadFile(ctx context.Context, dataset, name, path string) error {
	body, err := c.Download(ctx, dataset, name)
	if err != nil {
		return err
	}
	defer body.Close()
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// DeleteFile removes a file and its metadata from the dataset. An
// absent file is a *NotFoundError.
func (c *RawClient) DeleteFile(ctx context.Context, dataset, name string) error {
	return c.client.RequestAndDecode(ctx, nil, "DELETE", c.filePath(dataset, name), nil, nil)
}

// ListPage fetches one page of the dataset's files. The filter (may
// be zero) matches on metadata fields. An empty returned cursor
// means the listing is exhausted.
func (c *RawClient) ListPage(ctx context.Context, dataset string, filter FileMetadata, cursor string, limit int) ([]FileMetadata, string, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	query := url.Values{"limit": {strconv.Itoa(limit)}}
	if cursor != "" {
		query.Set("page", cursor)
	}
	var page fileList
	err := c.client.RequestAndDecode(ctx, &page, "POST", c.endpoint+"/"+escapePath(dataset)+"/list", query, filter)
	if err != nil {
		return nil, "", err
	}
	return page.Results, page.Next, nil
}

// List returns an iterator over the dataset's files. A dataset with
// no files yields an empty sequence, not an error.
func (c *RawClient) List(ctx context.Context, dataset string, filter FileMetadata) *FileIterator {
	return &FileIterator{ctx: ctx, raw: c, dataset: dataset, filter: filter}
}

// FileIterator pages through a raw storage listing.
type FileIterator struct {
	ctx     context.Context
	raw     *RawClient
	dataset string
	filter  FileMetadata

	page    []FileMetadata
	cursor  string
	started bool
	cur     FileMetadata
	err     error
}

// Next advances to the next file, fetching the next page when the
// current one is exhausted. It returns false at the end of the
// listing or on error.
func (it *FileIterator) Next() bool {
	if it.err != nil {
		return false
	}
	for len(it.page) == 0 {
		if it.started && it.cursor == "" {
			return false
		}
		it.page, it.cursor, it.err = it.raw.ListPage(it.ctx, it.dataset, it.filter, it.cursor, 0)
		it.started = true
		if it.err != nil {
			return false
		}
		if len(it.page) == 0 && it.cursor == "" {
			return false
		}
	}
	it.cur = it.page[0]
	it.page = it.page[1:]
	return true
}

// File returns the file metadata the iterator is positioned on.
func (it *FileIterator) File() FileMetadata { return it.cur }

// Err returns the error that stopped iteration, if any.
func (it *FileIterator) Err() error { return it.err }
