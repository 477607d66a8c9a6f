/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package admin_handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/scanner"
)

// fakeScanner drives the orphan endpoints with canned data pages.
type fakeScanner struct {
	events  []*scanner.Event
	table   string
	deleted int
	err     error
}

func (f *fakeScanner) ListOrphaned(_ context.Context, _, _ string, _ *scanner.ScanParams,
	emit scanner.EmitFunc) (string, error) {
	for _, event := range f.events {
		if err := emit(event); err != nil {
			return "", err
		}
	}
	return f.table, f.err
}

func (f *fakeScanner) DeleteOrphans(_ context.Context, _, _ string, _ *scanner.DeleteParams,
	emit scanner.EmitFunc) (int, error) {
	for _, event := range f.events {
		if err := emit(event); err != nil {
			return 0, err
		}
	}
	return f.deleted, f.err
}

func streamLines(t *testing.T, body string) []map[string]any {
	t.Helper()
	var lines []map[string]any
	for _, raw := range strings.Split(strings.TrimSpace(body), "\n") {
		event := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(raw), &event))
		lines = append(lines, event)
	}
	return lines
}

func countEvents(lines []map[string]any, kind string) int {
	n := 0
	for _, line := range lines {
		if line["event"] == kind {
			n++
		}
	}
	return n
}

func TestListOrphanObjectsEmitsSingleDone(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := &Handler{scanner: &fakeScanner{
		events: []*scanner.Event{
			{Event: scanner.EventData, S3Orphans: []string{"d"}},
			{Event: scanner.EventData, DbOrphans: nil},
		},
	}}
	engine := gin.New()
	engine.GET("/admin/tenants/:tenantId/buckets/:bucketId/orphan-objects", h.ListOrphanObjects)

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest("GET", "/admin/tenants/t1/buckets/avatars/orphan-objects", nil)
	engine.ServeHTTP(recorder, request)

	assert.Equal(t, ndjsonContentType, recorder.Header().Get("Content-Type"))
	lines := streamLines(t, recorder.Body.String())
	assert.Equal(t, 2, countEvents(lines, scanner.EventData))
	assert.Equal(t, 1, countEvents(lines, scanner.EventDone))
	assert.Equal(t, scanner.EventDone, lines[len(lines)-1]["event"])
}

func TestListOrphanObjectsKeepTmpTable(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := &Handler{scanner: &fakeScanner{table: "orphan_scan_t1_avatars"}}
	engine := gin.New()
	engine.GET("/admin/tenants/:tenantId/buckets/:bucketId/orphan-objects", h.ListOrphanObjects)

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest("GET",
		"/admin/tenants/t1/buckets/avatars/orphan-objects?keepTmpTable=true", nil)
	engine.ServeHTTP(recorder, request)

	lines := streamLines(t, recorder.Body.String())
	require.Len(t, lines, 1)
	assert.Equal(t, scanner.EventDone, lines[0]["event"])
	assert.Equal(t, "orphan_scan_t1_avatars", lines[0]["tmpTable"])
}

func TestDeleteOrphanObjectsEmitsSingleDone(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := &Handler{scanner: &fakeScanner{
		events:  []*scanner.Event{{Event: scanner.EventProgress, Deleted: 2}},
		deleted: 2,
	}}
	engine := gin.New()
	engine.DELETE("/admin/tenants/:tenantId/buckets/:bucketId/orphan-objects", h.DeleteOrphanObjects)

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest("DELETE", "/admin/tenants/t1/buckets/avatars/orphan-objects",
		strings.NewReader(`{"deleteDbKeys":true,"deleteS3Keys":true}`))
	engine.ServeHTTP(recorder, request)

	lines := streamLines(t, recorder.Body.String())
	assert.Equal(t, 1, countEvents(lines, scanner.EventProgress))
	assert.Equal(t, 1, countEvents(lines, scanner.EventDone))
	assert.Equal(t, float64(2), lines[len(lines)-1]["deleted"])
}
