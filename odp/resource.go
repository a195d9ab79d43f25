// Copyright (C) The Ocean Data Platform Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package odp

import (
	"encoding/json"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// DatasetKind is the qualified kind of dataset resources in the
// catalog.
const DatasetKind = "catalog.hubocean.io/dataset"

var nameRegexp = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// Metadata is the common metadata section of a resource manifest.
// The UUID is assigned by the server on creation and is immutable
// thereafter.
type Metadata struct {
	Name        string
	DisplayName string
	Description string
	UUID        *uuid.UUID
	Labels      map[string]interface{}
	Owner       *uuid.UUID

	extra map[string]json.RawMessage
}

type metadataFields struct {
	Name        string                 `json:"name"`
	DisplayName string                 `json:"display_name,omitempty"`
	Description string                 `json:"description,omitempty"`
	UUID        *uuid.UUID             `json:"uuid,omitempty"`
	Labels      map[string]interface{} `json:"labels,omitempty"`
	Owner       *uuid.UUID             `json:"owner,omitempty"`
}

func (m *Metadata) UnmarshalJSON(data []byte) error {
	var f metadataFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*m = Metadata{
		Name:        f.Name,
		DisplayName: f.DisplayName,
		Description: f.Description,
		UUID:        f.UUID,
		Labels:      f.Labels,
		Owner:       f.Owner,
	}
	m.extra = unknownFields(data, "name", "display_name", "description", "uuid", "labels", "owner")
	return nil
}

func (m Metadata) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(metadataFields{
		Name:        m.Name,
		DisplayName: m.DisplayName,
		Description: m.Description,
		UUID:        m.UUID,
		Labels:      m.Labels,
		Owner:       m.Owner,
	}, m.extra)
}

// Extra returns the verbatim JSON of a field the client does not
// model, as received from the server.
func (m *Metadata) Extra(key string) (json.RawMessage, bool) {
	raw, ok := m.extra[key]
	return raw, ok
}

// ResourceStatus is the server-maintained status section of a
// resource manifest. A non-nil DeletedTime marks a soft-deleted
// resource.
type ResourceStatus struct {
	NumUpdates  int
	CreatedTime time.Time
	CreatedBy   uuid.UUID
	UpdatedTime time.Time
	UpdatedBy   uuid.UUID
	DeletedTime *time.Time
	DeletedBy   *uuid.UUID

	extra map[string]json.RawMessage
}

type resourceStatusFields struct {
	NumUpdates  int        `json:"num_updates"`
	CreatedTime time.Time  `json:"created_time"`
	CreatedBy   uuid.UUID  `json:"created_by"`
	UpdatedTime time.Time  `json:"updated_time"`
	UpdatedBy   uuid.UUID  `json:"updated_by"`
	DeletedTime *time.Time `json:"deleted_time,omitempty"`
	DeletedBy   *uuid.UUID `json:"deleted_by,omitempty"`
}

func (s *ResourceStatus) UnmarshalJSON(data []byte) error {
	var f resourceStatusFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*s = ResourceStatus{
		NumUpdates:  f.NumUpdates,
		CreatedTime: f.CreatedTime,
		CreatedBy:   f.CreatedBy,
		UpdatedTime: f.UpdatedTime,
		UpdatedBy:   f.UpdatedBy,
		DeletedTime: f.DeletedTime,
		DeletedBy:   f.DeletedBy,
	}
	s.extra = unknownFields(data, "num_updates", "created_time", "created_by", "updated_time", "updated_by", "deleted_time", "deleted_by")
	return nil
}

func (s ResourceStatus) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(resourceStatusFields{
		NumUpdates:  s.NumUpdates,
		CreatedTime: s.CreatedTime,
		CreatedBy:   s.CreatedBy,
		UpdatedTime: s.UpdatedTime,
		UpdatedBy:   s.UpdatedBy,
		DeletedTime: s.DeletedTime,
		DeletedBy:   s.DeletedBy,
	}, s.extra)
}

// Deleted reports whether the resource carries a soft-delete marker.
func (s *ResourceStatus) Deleted() bool {
	return s != nil && s.DeletedTime != nil
}

// Resource is a typed manifest for a catalog resource (dataset,
// collection, ...). Kind and Version identify the manifest schema,
// Spec holds the kind-specific fields, and Status is maintained by
// the server.
//
// Fields the client does not model are preserved verbatim across an
// unmarshal/marshal round trip, so manifests written by newer servers
// survive being read and resubmitted by older clients.
type Resource struct {
	Kind     string
	Version  string
	Metadata Metadata
	Spec     map[string]interface{}
	Status   *ResourceStatus

	extra map[string]json.RawMessage
}

type resourceFields struct {
	Kind     string                 `json:"kind"`
	Version  string                 `json:"version"`
	Metadata Metadata               `json:"metadata"`
	Spec     map[string]interface{} `json:"spec"`
	Status   *ResourceStatus        `json:"status,omitempty"`
}

func (r *Resource) UnmarshalJSON(data []byte) error {
	var f resourceFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*r = Resource{
		Kind:     f.Kind,
		Version:  f.Version,
		Metadata: f.Metadata,
		Spec:     f.Spec,
		Status:   f.Status,
	}
	r.extra = unknownFields(data, "kind", "version", "metadata", "spec", "status")
	return r.Validate()
}

func (r Resource) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(resourceFields{
		Kind:     r.Kind,
		Version:  r.Version,
		Metadata: r.Metadata,
		Spec:     r.Spec,
		Status:   r.Status,
	}, r.extra)
}

// Extra returns the verbatim JSON of a top-level manifest field the
// client does not model.
func (r *Resource) Extra(key string) (json.RawMessage, bool) {
	raw, ok := r.extra[key]
	return raw, ok
}

// Validate checks the fields every manifest must carry. It returns a
// *ValidationError describing the first problem found.
func (r *Resource) Validate() error {
	if r.Kind == "" {
		return newValidationError("resource manifest is missing required field \"kind\"")
	}
	if r.Version == "" {
		return newValidationError("resource manifest is missing required field \"version\"")
	}
	if r.Metadata.Name == "" {
		return newValidationError("resource manifest is missing required field \"metadata.name\"")
	}
	if !nameRegexp.MatchString(r.Metadata.Name) {
		return newValidationError("invalid resource name %q: must be alphanumeric characters, dashes or underscores, starting with an alphanumeric character", r.Metadata.Name)
	}
	return nil
}

// Ref returns the reference used to address the resource in API
// paths: its UUID if assigned, otherwise kind-qualified name.
func (r *Resource) Ref() string {
	if r.Metadata.UUID != nil {
		return r.Metadata.UUID.String()
	}
	return r.Kind + "/" + r.Metadata.Name
}

// unknownFields returns the members of data whose keys are not in
// known, or nil if there are none.
func unknownFields(data []byte, known ...string) map[string]json.RawMessage {
	var raw map[string]json.RawMessage
	if json.Unmarshal(data, &raw) != nil {
		return nil
	}
	for _, k := range known {
		delete(raw, k)
	}
	if len(raw) == 0 {
		return nil
	}
	return raw
}

// marshalWithExtra marshals the modeled fields, then splices in any
// preserved unknown fields. Output keys are sorted by
// encoding/json's map ordering, so serialization is reproducible.
func marshalWithExtra(fields interface{}, extra map[string]json.RawMessage) ([]byte, error) {
	buf, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(buf, &merged); err != nil {
		return nil, err
	}
	for k, v := range extra {
		if _, ok := merged[k]; !ok {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}
