// Copyright (C) The Ocean Data Platform Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

// Package odp is a client SDK for the Ocean Data Platform: typed
// access to the resource catalog, raw file storage, and tabular
// storage over the platform's HTTPS/JSON API.
//
// A Client carries the endpoint, credentials and transport; the
// Catalog, Raw and Tabular sub-clients expose the domain operations:
//
//	client, err := odp.NewClientFromEnv()
//	if err != nil {
//		log.Fatal(err)
//	}
//	ds, err := client.Catalog().Get(ctx, "catalog.hubocean.io/dataset/my-data")
//	if err != nil {
//		log.Fatal(err)
//	}
//	iter := client.Raw().List(ctx, ds.Ref(), odp.FileMetadata{})
//	for iter.Next() {
//		fmt.Println(iter.File())
//	}
//
// Failed API transactions are returned as typed errors (AuthError,
// NotFoundError, ConflictError, ValidationError, ServiceError,
// NetworkError), all carrying the HTTP status and the server's
// message; match them with errors.As.
package odp
