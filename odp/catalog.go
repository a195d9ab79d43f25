// Copyright (C) The Ocean Data Platform Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package odp

import (
	"context"
	"net/url"
	"strconv"

	"github.com/oceandatahub/odp-go/oqs"
)

// defaultPageSize is the page size used by the listing iterators.
const defaultPageSize = 1000

// CatalogClient accesses the resource catalog: typed manifests for
// datasets, collections and other resource kinds.
type CatalogClient struct {
	client   *Client
	endpoint string
}

// Create registers a new resource from a manifest. The returned
// manifest is populated with the server-assigned UUID and status. A
// name collision within the owner's scope is a *ConflictError.
func (c *CatalogClient) Create(ctx context.Context, manifest *Resource) (*Resource, error) {
	if err := manifest.Validate(); err != nil {
		return nil, err
	}
	var created Resource
	err := c.client.RequestAndDecode(ctx, &created, "POST", c.endpoint, nil, manifest)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// Get fetches a resource manifest by reference: either a UUID or a
// kind-qualified name such as "catalog.hubocean.io/dataset/my-data".
func (c *CatalogClient) Get(ctx context.Context, ref string) (*Resource, error) {
	var manifest Resource
	err := c.client.RequestAndDecode(ctx, &manifest, "GET", c.endpoint+"/"+escapePath(ref), nil, nil)
	if err != nil {
		return nil, err
	}
	return &manifest, nil
}

// Update applies a manifest update to an existing resource and
// returns the updated manifest.
func (c *CatalogClient) Update(ctx context.Context, manifest *Resource) (*Resource, error) {
	if err := manifest.Validate(); err != nil {
		return nil, err
	}
	query := url.Values{"either_id": {manifest.Ref()}}
	var updated Resource
	err := c.client.RequestAndDecode(ctx, &updated, "PATCH", c.endpoint, query, manifest)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Delete removes a resource by reference. Deleting a resource that
// does not exist (including one already deleted) is a
// *NotFoundError.
func (c *CatalogClient) Delete(ctx context.Context, ref string) error {
	return c.client.RequestAndDecode(ctx, nil, "DELETE", c.endpoint+"/"+escapePath(ref), nil, nil)
}

// ListPage fetches one page of resources matching the filter (nil
// matches everything). It returns the page and the cursor for the
// next one; an empty cursor means the listing is exhausted.
func (c *CatalogClient) ListPage(ctx context.Context, filter *oqs.Predicate, cursor string, limit int) ([]Resource, string, error) {
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
	var page resourceList
	err := c.client.RequestAndDecode(ctx, &page, "POST", c.endpoint+"/list", query, body)
	if err != nil {
		return nil, "", err
	}
	return page.Results, page.Next, nil
}

// List returns an iterator over all resources matching the filter,
// fetching pages transparently:
//
//	iter := client.Catalog().List(ctx, nil)
//	for iter.Next() {
//		fmt.Println(iter.Resource().Metadata.Name)
//	}
//	if err := iter.Err(); err != nil { ... }
func (c *CatalogClient) List(ctx context.Context, filter *oqs.Predicate) *ResourceIterator {
	return &ResourceIterator{ctx: ctx, catalog: c, filter: filter}
}

// ResourceIterator pages through a catalog listing.
type ResourceIterator struct {
	ctx     context.Context
	catalog *CatalogClient
	filter  *oqs.Predicate

	page    []Resource
	cursor  string
	started bool
	cur     Resource
	err     error
}

// Next advances to the next resource, fetching the next page when
// the current one is exhausted. It returns false at the end of the
// listing or on error.
func (it *ResourceIterator) Next() bool {
	if it.err != nil {
		return false
	}
	for len(it.page) == 0 {
		if it.started && it.cursor == "" {
			return false
		}
		it.page, it.cursor, it.err = it.catalog.ListPage(it.ctx, it.filter, it.cursor, 0)
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

// Resource returns the resource the iterator is positioned on.
func (it *ResourceIterator) Resource() Resource { return it.cur }

// Err returns the error that stopped iteration, if any.
func (it *ResourceIterator) Err() error { return it.err }
