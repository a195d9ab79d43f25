// Copyright (C) The Ocean Data Platform Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package odp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/oceandatahub/odp-go/oqs"
	check "gopkg.in/check.v1"
)

var _ = check.Suite(&TabularSuite{})

type TabularSuite struct{}

var testSpec = TableSpec{
	Columns: map[string]Column{
		"location": {Type: "string", Nullable: false},
		"depth":    {Type: "double", Nullable: true},
		"measured": {Type: "timestamp<ms>", Nullable: true},
	},
}

func (s *TabularSuite) TestCreateSchema(c *check.C) {
	stub := &stubTransport{respond: func(call stubCall) (*http.Response, error) {
		return stubResponse(200, string(call.Body))
	}}
	client := newTestClient(stub)
	created, err := client.Tabular().CreateSchema(context.Background(), "ds", testSpec)
	c.Assert(err, check.IsNil)
	c.Check(created.Columns["location"].Type, check.Equals, "string")
	c.Check(stub.call(0).Method, check.Equals, "POST")
	c.Check(stub.call(0).Path, check.Equals, "/data/ds/schema")
}

func (s *TabularSuite) TestCreateSchemaInvalidColumnType(c *check.C) {
	stub := &stubTransport{respond: func(call stubCall) (*http.Response, error) {
		return stubResponse(200, `{}`)
	}}
	client := newTestClient(stub)
	bad := TableSpec{Columns: map[string]Column{"x": {Type: "varchar"}}}
	_, err := client.Tabular().CreateSchema(context.Background(), "ds", bad)
	var verr *ValidationError
	c.Assert(errors.As(err, &verr), check.Equals, true)
	c.Check(verr.Message, check.Matches, `column "x".*invalid column type "varchar"`)
	c.Check(stub.count(), check.Equals, 0)
}

func (s *TabularSuite) TestColumnTypes(c *check.C) {
	for _, typ := range []string{"bool", "int64", "double", "string", "geometry", "timestamp<ms>", "list<item: int32>", "map<string, int>"} {
		c.Check(Column{Type: typ}.Validate(), check.IsNil)
	}
	for _, typ := range []string{"", "varchar", "timestamp", "list<unterminated"} {
		c.Check(Column{Type: typ}.Validate(), check.NotNil)
	}
}

func (s *TabularSuite) TestDeleteSchemaWithData(c *check.C) {
	stub := &stubTransport{respond: func(call stubCall) (*http.Response, error) {
		return stubResponse(200, ``)
	}}
	client := newTestClient(stub)
	err := client.Tabular().DeleteSchema(context.Background(), "ds", true)
	c.Assert(err, check.IsNil)
	c.Check(stub.call(0).Method, check.Equals, "DELETE")
	c.Check(stub.call(0).Query.Get("delete_data"), check.Equals, "true")
}

func (s *TabularSuite) TestStageLifecycle(c *check.C) {
	stageID := uuid.MustParse("11111111-2222-3333-4444-555555555555")
	stub := &stubTransport{respond: func(call stubCall) (*http.Response, error) {
		return stubResponse(200, `{"stage_id": "`+stageID.String()+`", "status": "active", "created_time": "2024-05-01T10:00:00Z", "expiry_time": "2024-05-02T10:00:00Z"}`)
	}}
	client := newTestClient(stub)
	ctx := context.Background()

	stage, err := client.Tabular().CreateStage(ctx, "ds")
	c.Assert(err, check.IsNil)
	c.Check(stage.ID, check.Equals, stageID)
	c.Check(string(stub.call(0).Body), check.Equals, `{"action":"create"}`)

	err = client.Tabular().WriteStage(ctx, "ds", stage, []Row{{"location": "oslo"}})
	c.Assert(err, check.IsNil)
	var wrote struct {
		Data    []Row      `json:"data"`
		StageID *uuid.UUID `json:"stage_id"`
	}
	c.Assert(json.Unmarshal(stub.call(1).Body, &wrote), check.IsNil)
	c.Assert(wrote.StageID, check.NotNil)
	c.Check(*wrote.StageID, check.Equals, stageID)

	err = client.Tabular().CommitStage(ctx, "ds", stage)
	c.Assert(err, check.IsNil)
	c.Check(string(stub.call(2).Body), check.Equals, `{"action":"commit","stage_id":"`+stageID.String()+`"}`)
}

func (s *TabularSuite) TestStageGuards(c *check.C) {
	stub := &stubTransport{respond: func(call stubCall) (*http.Response, error) {
		return stubResponse(200, ``)
	}}
	client := newTestClient(stub)
	ctx := context.Background()
	var verr *ValidationError

	committed := &TableStage{ID: uuid.New(), Status: StageCommit}
	c.Check(errors.As(client.Tabular().CommitStage(ctx, "ds", committed), &verr), check.Equals, true)
	c.Check(errors.As(client.Tabular().WriteStage(ctx, "ds", committed, nil), &verr), check.Equals, true)
	c.Check(errors.As(client.Tabular().DeleteStage(ctx, "ds", committed, false), &verr), check.Equals, true)
	c.Check(stub.count(), check.Equals, 0)

	// A failed commit may be retried, a committed stage force-deleted.
	c.Check((&TableStage{Status: StageCommitFailed}).CanCommit(), check.Equals, true)
	c.Check(client.Tabular().DeleteStage(ctx, "ds", committed, true), check.IsNil)
	c.Check(stub.call(0).Query.Get("force_delete"), check.Equals, "true")
}

func (s *TabularSuite) TestWrite(c *check.C) {
	stub := &stubTransport{respond: func(call stubCall) (*http.Response, error) {
		return stubResponse(200, ``)
	}}
	client := newTestClient(stub)
	err := client.Tabular().Write(context.Background(), "ds", []Row{{"location": "oslo", "depth": 120.5}})
	c.Assert(err, check.IsNil)
	c.Check(stub.call(0).Path, check.Equals, "/data/ds")
	c.Check(string(stub.call(0).Body), check.Equals, `{"data":[{"depth":120.5,"location":"oslo"}]}`)
}

func (s *TabularSuite) TestWriteWithoutSchema(c *check.C) {
	stub := &stubTransport{respond: func(call stubCall) (*http.Response, error) {
		return stubResponse(404, `{"error": "no schema for dataset"}`)
	}}
	client := newTestClient(stub)
	err := client.Tabular().Write(context.Background(), "ds", []Row{{"x": 1}})
	var notFound *NotFoundError
	c.Check(errors.As(err, &notFound), check.Equals, true)
}

func (s *TabularSuite) TestSelectPagination(c *check.C) {
	stub := &stubTransport{}
	stub.respond = func(call stubCall) (*http.Response, error) {
		if call.Query.Get("page") == "" {
			return stubResponse(200, `{"results": [{"n": 1}, {"n": 2}], "next": "c2"}`)
		}
		return stubResponse(200, `{"results": [{"n": 3}], "next": ""}`)
	}
	client := newTestClient(stub)
	rows, err := client.Tabular().SelectAsList(context.Background(), "ds", oqs.Gt(oqs.Ref("n"), oqs.Lit(0)))
	c.Assert(err, check.IsNil)
	c.Check(rows, check.HasLen, 3)
	c.Check(rows[2]["n"], check.Equals, float64(3))
	c.Check(stub.count(), check.Equals, 2)
	c.Check(stub.call(0).Path, check.Equals, "/data/ds/list")
}

func (s *TabularSuite) TestSelectEmpty(c *check.C) {
	stub := &stubTransport{respond: func(call stubCall) (*http.Response, error) {
		return stubResponse(200, `{"results": [], "next": ""}`)
	}}
	client := newTestClient(stub)
	rows, err := client.Tabular().SelectAsList(context.Background(), "ds", nil)
	c.Check(err, check.IsNil)
	c.Check(rows, check.HasLen, 0)
}

func (s *TabularSuite) TestUpdate(c *check.C) {
	stub := &stubTransport{respond: func(call stubCall) (*http.Response, error) {
		return stubResponse(200, ``)
	}}
	client := newTestClient(stub)
	filter := oqs.Eq(oqs.Ref("location"), oqs.Lit("oslo"))
	err := client.Tabular().Update(context.Background(), "ds", []Row{{"location": "oslo", "depth": 99.0}}, filter)
	c.Assert(err, check.IsNil)
	c.Check(stub.call(0).Method, check.Equals, "PATCH")
	var body struct {
		UpdateFilters json.RawMessage `json:"update_filters"`
		Data          []Row           `json:"data"`
	}
	c.Assert(json.Unmarshal(stub.call(0).Body, &body), check.IsNil)
	c.Check(body.UpdateFilters, check.NotNil)
	c.Check(body.Data, check.HasLen, 1)
}

func (s *TabularSuite) TestUpdateCountMismatch(c *check.C) {
	stub := &stubTransport{respond: func(call stubCall) (*http.Response, error) {
		return stubResponse(400, `{"error": "number of rows does not match number of matched rows"}`)
	}}
	client := newTestClient(stub)
	filter := oqs.Eq(oqs.Ref("location"), oqs.Lit("oslo"))
	err := client.Tabular().Update(context.Background(), "ds", []Row{{"depth": 1.0}, {"depth": 2.0}}, filter)
	var verr *ValidationError
	c.Assert(errors.As(err, &verr), check.Equals, true)
	c.Check(verr.Message, check.Matches, `number of rows.*`)
}

func (s *TabularSuite) TestUpdateRequiresFilter(c *check.C) {
	stub := &stubTransport{respond: func(call stubCall) (*http.Response, error) {
		return stubResponse(200, ``)
	}}
	client := newTestClient(stub)
	err := client.Tabular().Update(context.Background(), "ds", []Row{{"x": 1}}, nil)
	var verr *ValidationError
	c.Check(errors.As(err, &verr), check.Equals, true)
	c.Check(stub.count(), check.Equals, 0)
}

func (s *TabularSuite) TestDelete(c *check.C) {
	stub := &stubTransport{respond: func(call stubCall) (*http.Response, error) {
		return stubResponse(200, ``)
	}}
	client := newTestClient(stub)
	err := client.Tabular().Delete(context.Background(), "ds", oqs.Lt(oqs.Ref("depth"), oqs.Lit(10)))
	c.Assert(err, check.IsNil)
	c.Check(stub.call(0).Method, check.Equals, "POST")
	c.Check(stub.call(0).Path, check.Equals, "/data/ds/delete")
	c.Check(string(stub.call(0).Body), check.Equals, `{"delete_filters":{"#LESS_THAN":[{"#REF":"depth"},{"#CONSTANT":10}]}}`)

	err = client.Tabular().Delete(context.Background(), "ds", nil)
	var verr *ValidationError
	c.Check(errors.As(err, &verr), check.Equals, true)
}
