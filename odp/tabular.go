// Copyright (C) The Ocean Data Platform Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package odp

import (
	"context"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/oceandatahub/odp-go/oqs"
)

// TabularClient accesses a dataset's tabular storage. A table schema
// must exist before any row operation.
type TabularClient struct {
	client   *Client
	endpoint string
}

func (c *TabularClient) tablePath(dataset string) string {
	return c.endpoint + "/" + escapePath(dataset)
}

func (c *TabularClient) schemaPath(dataset string) string {
	return c.tablePath(dataset) + "/schema"
}

func (c *TabularClient) stagePath(dataset string) string {
	return c.tablePath(dataset) + "/stage"
}

// CreateSchema declares the table schema for a dataset. A schema
// that already exists is a *ConflictError.
func (c *TabularClient) CreateSchema(ctx context.Context, dataset string, spec TableSpec) (*TableSpec, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	var created TableSpec
	err := c.client.RequestAndDecode(ctx, &created, "POST", c.schemaPath(dataset), nil, spec)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// GetSchema fetches the dataset's table schema. An absent schema is
// a *NotFoundError.
func (c *TabularClient) GetSchema(ctx context.Context, dataset string) (*TableSpec, error) {
	var spec TableSpec
	err := c.client.RequestAndDecode(ctx, &spec, "GET", c.schemaPath(dataset), nil, nil)
	if err != nil {
		return nil, err
	}
	return &spec, nil
}

// DeleteSchema removes the dataset's table schema. With deleteData,
// the stored rows are removed as well.
func (c *TabularClient) DeleteSchema(ctx context.Context, dataset string, deleteData bool) error {
	query := url.Values{"delete_data": {strconv.FormatBool(deleteData)}}
	return c.client.RequestAndDecode(ctx, nil, "DELETE", c.schemaPath(dataset), query, nil)
}

// stageRequest is the body of stage lifecycle requests.
type stageRequest struct {
	Action  string     `json:"action"`
	StageID *uuid.UUID `json:"stage_id,omitempty"`
}

// CreateStage opens a staging area for bulk writes to the dataset.
func (c *TabularClient) CreateStage(ctx context.Context, dataset string) (*TableStage, error) {
	var stage TableStage
	err := c.client.RequestAndDecode(ctx, &stage, "POST", c.stagePath(dataset), nil, stageRequest{Action: "create"})
	if err != nil {
		return nil, err
	}
	return &stage, nil
}

// CommitStage makes the rows written to the stage visible
// atomically. Committing a stage that is not active (or retrying a
// failed commit) is a *ValidationError.
func (c *TabularClient) CommitStage(ctx context.Context, dataset string, stage *TableStage) error {
	if !stage.CanCommit() {
		return newValidationError("cannot commit stage %s with status %q", stage.ID, stage.Status)
	}
	id := stage.ID
	return c.client.RequestAndDecode(ctx, nil, "POST", c.stagePath(dataset), nil, stageRequest{Action: "commit", StageID: &id})
}

// GetStage fetches the current state of one stage.
func (c *TabularClient) GetStage(ctx context.Context, dataset string, id uuid.UUID) (*TableStage, error) {
	var stage TableStage
	err := c.client.RequestAndDecode(ctx, &stage, "GET", c.stagePath(dataset)+"/"+id.String(), nil, nil)
	if err != nil {
		return nil, err
	}
	return &stage, nil
}

// ListStages lists the dataset's stages.
func (c *TabularClient) ListStages(ctx context.Context, dataset string) ([]TableStage, error) {
	var stages []TableStage
	err := c.client.RequestAndDecode(ctx, &stages, "GET", c.stagePath(dataset), nil, nil)
	if err != nil {
		return nil, err
	}
	return stages, nil
}

// DeleteStage abandons a stage and its uncommitted rows. Deleting a
// committed stage requires force.
func (c *TabularClient) DeleteStage(ctx context.Context, dataset string, stage *TableStage, force bool) error {
	if stage.Status == StageCommit && !force {
		return newValidationError("cannot delete committed stage %s without force", stage.ID)
	}
	query := url.Values{"force_delete": {strconv.FormatBool(force)}}
	return c.client.RequestAndDecode(ctx, nil, "DELETE", c.stagePath(dataset)+"/"+stage.ID.String(), query, nil)
}

// writeRequest is the body of row insert requests.
type writeRequest struct {
	Data    []Row      `json:"data"`
	StageID *uuid.UUID `json:"stage_id,omitempty"`
}

// Write appends rows to the dataset's table. The schema must exist;
// writing without one is a *NotFoundError.
func (c *TabularClient) Write(ctx context.Context, dataset string, rows []Row) error {
	return c.client.RequestAndDecode(ctx, nil, "POST", c.tablePath(dataset), nil, writeRequest{Data: rows})
}

// WriteStage appends rows to an open stage; the rows become visible
// when the stage is committed.
func (c *TabularClient) WriteStage(ctx context.Context, dataset string, stage *TableStage, rows []Row) error {
	if stage.Status != StageActive {
		return newValidationError("cannot write to stage %s with status %q", stage.ID, stage.Status)
	}
	id := stage.ID
	return c.client.RequestAndDecode(ctx, nil, "POST", c.tablePath(dataset), nil, writeRequest{Data: rows, StageID: &id})
}

// SelectPage fetches one page of rows matching the filter (nil
// matches everything). An empty returned cursor means the result set
// is exhausted.
func (c *TabularClient) SelectPage(ctx context.Context, dataset string, filter *oqs.Predicate, cursor string, limit int) ([]Row, string, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	query := url.Values{"page_size": {strconv.Itoa(limit)}}
	if cursor != "" {
		query.Set("page", cursor)
	}
	var body interface{}
	if filter != nil {
		body = filter
	}
	var page rowList
	err := c.client.RequestAndDecode(ctx, &page, "POST", c.tablePath(dataset)+"/list", query, body)
	if err != nil {
		return nil, "", err
	}
	return page.Results, page.Next, nil
}

// Select returns an iterator over the rows matching the filter,
// fetching pages transparently.
func (c *TabularClient) Select(ctx context.Context, dataset string, filter *oqs.Predicate) *RowIterator {
	return &RowIterator{ctx: ctx, tab: c, dataset: dataset, filter: filter}
}

// SelectAsList materializes all rows matching the filter.
func (c *TabularClient) SelectAsList(ctx context.Context, dataset string, filter *oqs.Predicate) ([]Row, error) {
	var rows []Row
	iter := c.Select(ctx, dataset, filter)
	for iter.Next() {
		rows = append(rows, iter.Row())
	}
	return rows, iter.Err()
}

// updateRequest is the body of row update requests.
type updateRequest struct {
	UpdateFilters *oqs.Predicate `json:"update_filters"`
	Data          []Row          `json:"data"`
}

// Update replaces the rows matched by the filter with the given
// rows, positionally, in server-determined order. The server rejects
// the call with a *ValidationError unless len(rows) equals the
// matched count.
//
// The positional pairing is not guaranteed stable across calls: the
// server does not define a row order, so under concurrent writers
// the same filter may match rows in a different order (or match a
// different set). Callers needing deterministic replacement should
// filter down to single rows by key.
func (c *TabularClient) Update(ctx context.Context, dataset string, rows []Row, filter *oqs.Predicate) error {
	if filter == nil {
		return newValidationError("update requires a filter")
	}
	return c.client.RequestAndDecode(ctx, nil, "PATCH", c.tablePath(dataset), nil, updateRequest{UpdateFilters: filter, Data: rows})
}

// deleteRequest is the body of row delete requests.
type deleteRequest struct {
	DeleteFilters *oqs.Predicate `json:"delete_filters"`
}

// Delete removes the rows matched by the filter. A nil filter is
// rejected client-side; deleting all rows is spelled DeleteSchema
// with deleteData, or an explicit always-true filter.
func (c *TabularClient) Delete(ctx context.Context, dataset string, filter *oqs.Predicate) error {
	if filter == nil {
		return newValidationError("delete requires a filter")
	}
	return c.client.RequestAndDecode(ctx, nil, "POST", c.tablePath(dataset)+"/delete", nil, deleteRequest{DeleteFilters: filter})
}

// RowIterator pages through a tabular select.
type RowIterator struct {
	ctx     context.Context
	tab     *TabularClient
	dataset string
	filter  *oqs.Predicate

	page    []Row
	cursor  string
	started bool
	cur     Row
	err     error
}

// Next advances to the next row, fetching the next page when the
// current one is exhausted. It returns false at the end of the
// result set or on error.
func (it *RowIterator) Next() bool {
	if it.err != nil {
		return false
	}
	for len(it.page) == 0 {
		if it.started && it.cursor == "" {
			return false
		}
		it.page, it.cursor, it.err = it.tab.SelectPage(it.ctx, it.dataset, it.filter, it.cursor, 0)
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

// Row returns the row the iterator is positioned on.
func (it *RowIterator) Row() Row { return it.cur }

// Err returns the error that stopped iteration, if any.
func (it *RowIterator) Err() error { return it.err }
