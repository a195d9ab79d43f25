// Copyright (C) The Ocean Data Platform Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package odp

import (
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	check "gopkg.in/check.v1"
)

var _ = check.Suite(&ResourceSuite{})

type ResourceSuite struct{}

const manifestJSON = `{
	"kind": "catalog.hubocean.io/dataset",
	"version": "v1alpha3",
	"metadata": {
		"name": "sdk-test-data",
		"display_name": "SDK test data",
		"labels": {"env": "test"},
		"novel_metadata_field": [1, 2, 3]
	},
	"spec": {
		"storage_controller": "registry.hubocean.io/storageController/storage-raw-cdffs",
		"maintainer": {"contact": "Test User <test@example.com>"}
	},
	"status": {
		"num_updates": 2,
		"created_time": "2024-05-01T10:00:00Z",
		"created_by": "9fc47b1c-2a42-4f5a-a6f4-0a5a1d0a8375",
		"updated_time": "2024-05-02T10:00:00Z",
		"updated_by": "9fc47b1c-2a42-4f5a-a6f4-0a5a1d0a8375",
		"novel_status_field": "whatever"
	},
	"novel_top_level_field": {"a": true}
}`

func (s *ResourceSuite) TestUnmarshal(c *check.C) {
	var r Resource
	err := json.Unmarshal([]byte(manifestJSON), &r)
	c.Assert(err, check.IsNil)
	c.Check(r.Kind, check.Equals, DatasetKind)
	c.Check(r.Version, check.Equals, "v1alpha3")
	c.Check(r.Metadata.Name, check.Equals, "sdk-test-data")
	c.Check(r.Metadata.DisplayName, check.Equals, "SDK test data")
	c.Check(r.Metadata.Labels["env"], check.Equals, "test")
	c.Check(r.Spec["storage_controller"], check.Equals, "registry.hubocean.io/storageController/storage-raw-cdffs")
	c.Assert(r.Status, check.NotNil)
	c.Check(r.Status.NumUpdates, check.Equals, 2)
	c.Check(r.Status.Deleted(), check.Equals, false)

	raw, ok := r.Extra("novel_top_level_field")
	c.Check(ok, check.Equals, true)
	c.Check(string(raw), check.Equals, `{"a": true}`)
	raw, ok = r.Metadata.Extra("novel_metadata_field")
	c.Check(ok, check.Equals, true)
	c.Check(string(raw), check.Equals, `[1, 2, 3]`)
	_, ok = r.Extra("kind")
	c.Check(ok, check.Equals, false)
}

func (s *ResourceSuite) TestUnknownFieldsSurviveRoundTrip(c *check.C) {
	var r Resource
	c.Assert(json.Unmarshal([]byte(manifestJSON), &r), check.IsNil)
	buf, err := json.Marshal(r)
	c.Assert(err, check.IsNil)

	var got, want map[string]interface{}
	c.Assert(json.Unmarshal(buf, &got), check.IsNil)
	c.Assert(json.Unmarshal([]byte(manifestJSON), &want), check.IsNil)
	c.Check(got, check.DeepEquals, want)
}

func (s *ResourceSuite) TestMarshalReproducible(c *check.C) {
	var r Resource
	c.Assert(json.Unmarshal([]byte(manifestJSON), &r), check.IsNil)
	first, err := json.Marshal(r)
	c.Assert(err, check.IsNil)
	second, err := json.Marshal(r)
	c.Assert(err, check.IsNil)
	c.Check(string(second), check.Equals, string(first))
}

func (s *ResourceSuite) TestValidate(c *check.C) {
	for _, trial := range []struct {
		r       Resource
		message string
	}{
		{Resource{Version: "v1", Metadata: Metadata{Name: "x"}}, `.*"kind".*`},
		{Resource{Kind: DatasetKind, Metadata: Metadata{Name: "x"}}, `.*"version".*`},
		{Resource{Kind: DatasetKind, Version: "v1"}, `.*"metadata.name".*`},
		{Resource{Kind: DatasetKind, Version: "v1", Metadata: Metadata{Name: "-leading-dash"}}, `invalid resource name.*`},
		{Resource{Kind: DatasetKind, Version: "v1", Metadata: Metadata{Name: "has space"}}, `invalid resource name.*`},
	} {
		err := trial.r.Validate()
		var verr *ValidationError
		c.Assert(errors.As(err, &verr), check.Equals, true)
		c.Check(verr.Message, check.Matches, trial.message)
		c.Check(verr.StatusCode, check.Equals, 0)
	}
	ok := Resource{Kind: DatasetKind, Version: "v1", Metadata: Metadata{Name: "valid_name-1"}}
	c.Check(ok.Validate(), check.IsNil)
}

func (s *ResourceSuite) TestUnmarshalRejectsInvalidManifest(c *check.C) {
	var r Resource
	err := json.Unmarshal([]byte(`{"version": "v1", "metadata": {"name": "x"}}`), &r)
	var verr *ValidationError
	c.Check(errors.As(err, &verr), check.Equals, true)
}

func (s *ResourceSuite) TestRef(c *check.C) {
	r := Resource{Kind: DatasetKind, Version: "v1", Metadata: Metadata{Name: "my-data"}}
	c.Check(r.Ref(), check.Equals, "catalog.hubocean.io/dataset/my-data")

	id := uuid.MustParse("9fc47b1c-2a42-4f5a-a6f4-0a5a1d0a8375")
	r.Metadata.UUID = &id
	c.Check(r.Ref(), check.Equals, "9fc47b1c-2a42-4f5a-a6f4-0a5a1d0a8375")
}

func (s *ResourceSuite) TestFileMetadata(c *check.C) {
	var f FileMetadata
	err := json.Unmarshal([]byte(`{"name": "test.zip", "mime_type": "application/zip", "size_bytes": 1024, "uploaded_time": "2024-05-01T10:00:00Z"}`), &f)
	c.Assert(err, check.IsNil)
	c.Check(f.Uploaded(), check.Equals, true)
	c.Check(f.String(), check.Matches, `test\.zip \(application/zip, .*B\)`)
	c.Check(FileMetadata{Name: "empty.bin"}.String(), check.Matches, `empty\.bin \(, 0 B\)`)
}
