// Copyright (C) The Ocean Data Platform Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package odp

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Row is one tabular record, keyed by column name.
type Row map[string]interface{}

// simpleColumnTypes is the set of unparameterized column types the
// platform accepts.
var simpleColumnTypes = map[string]bool{
	"bool":     true,
	"int":      true,
	"int32":    true,
	"long":     true,
	"int64":    true,
	"double":   true,
	"date":     true,
	"date64":   true,
	"string":   true,
	"binary":   true,
	"geometry": true,
}

// parameterized type prefixes, e.g. "timestamp<ms>", "list<item: int>".
var parameterizedColumnTypes = []string{"timestamp<", "time<", "date<", "list<", "map<"}

// Column declares the type of one column in a table schema.
type Column struct {
	Type     string            `json:"type"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Nullable bool              `json:"nullable"`
}

// Validate checks that the declared type is one the platform
// accepts.
func (c Column) Validate() error {
	if simpleColumnTypes[c.Type] {
		return nil
	}
	if strings.HasSuffix(c.Type, ">") {
		for _, prefix := range parameterizedColumnTypes {
			if strings.HasPrefix(c.Type, prefix) {
				return nil
			}
		}
	}
	return newValidationError("invalid column type %q", c.Type)
}

// TablePartitioning declares how one or more columns partition the
// stored table.
type TablePartitioning struct {
	Columns         []string      `json:"columns"`
	TransformerName string        `json:"transformer_name"`
	Args            []interface{} `json:"args,omitempty"`
}

// TableSpec declares the schema of a tabular dataset: a column name
// to type mapping, plus optional partitioning. Exactly one schema
// exists per tabular dataset and it must be created before any row
// operation.
type TableSpec struct {
	Columns      map[string]Column   `json:"table_schema"`
	Partitioning []TablePartitioning `json:"partitioning,omitempty"`
}

// Validate checks every declared column type.
func (s TableSpec) Validate() error {
	if len(s.Columns) == 0 {
		return newValidationError("table spec declares no columns")
	}
	for name, col := range s.Columns {
		if err := col.Validate(); err != nil {
			return newValidationError("column %q: %v", name, err.(*ValidationError).Message)
		}
	}
	return nil
}

// Stage lifecycle states.
const (
	StageActive       = "active"
	StageCommit       = "commit"
	StageCommitFailed = "commit-failed"
	StageDelete       = "delete"
)

// TableStage is a staging area for bulk tabular writes. Rows written
// to a stage become visible atomically when the stage is committed.
type TableStage struct {
	ID          uuid.UUID  `json:"stage_id"`
	Status      string     `json:"status"`
	CreatedTime time.Time  `json:"created_time"`
	ExpiryTime  time.Time  `json:"expiry_time"`
	UpdatedTime *time.Time `json:"updated_time,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// CanCommit reports whether the stage is in a state that accepts a
// commit request.
func (s *TableStage) CanCommit() bool {
	return s.Status == StageActive || s.Status == StageCommitFailed
}
