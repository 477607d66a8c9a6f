/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package objects

import (
	"context"
	"strings"

	sqrl "github.com/Masterminds/squirrel"

	dbclient "github.com/AMD-AIG-AIMA/PrimusStore/pkg/database/client"
	storageerrors "github.com/AMD-AIG-AIMA/PrimusStore/pkg/errors"
)

// ListParams pages a catalog listing.
type ListParams struct {
	TenantId   string
	Bucket     string
	Prefix     string
	Search     string
	Limit      int
	Offset     int
	SortColumn string
	SortOrder  string
}

var sortableColumns = map[string]bool{
	"name":             true,
	"created_at":       true,
	"updated_at":       true,
	"last_accessed_at": true,
}

// List returns the object rows visible to the caller, filtered by prefix
// and substring search.
func (m *Manager) List(ctx context.Context, identity dbclient.Identity, params *ListParams) ([]*dbclient.Object, error) {
	if params.Limit <= 0 || params.Limit > 1000 {
		params.Limit = 100
	}
	orderBy, err := buildOrder(params.SortColumn, params.SortOrder)
	if err != nil {
		return nil, err
	}
	var query sqrl.And
	if params.Prefix != "" {
		query = append(query, sqrl.Like{"name": params.Prefix + "%"})
	}
	if params.Search != "" {
		query = append(query, sqrl.Like{"name": "%" + params.Search + "%"})
	}

	client, err := m.registry.CatalogClient(params.TenantId)
	if err != nil {
		return nil, err
	}
	var rows []*dbclient.Object
	err = client.WithTransaction(ctx, identity, func(tx *dbclient.Tx) error {
		bucket, txErr := tx.GetBucket(params.Bucket)
		if txErr != nil {
			return txErr
		}
		var filter sqrl.Sqlizer
		if len(query) > 0 {
			filter = query
		}
		rows, txErr = tx.ListObjects(bucket.Id, filter, orderBy, params.Limit, params.Offset)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func buildOrder(column, order string) ([]string, error) {
	if column == "" {
		column = "name"
	}
	if !sortableColumns[column] {
		return nil, storageerrors.NewInvalidParameter("unsupported sort column " + column)
	}
	switch strings.ToLower(order) {
	case "", dbclient.ASC:
		order = "ASC"
	case dbclient.DESC:
		order = "DESC"
	default:
		return nil, storageerrors.NewInvalidParameter("unsupported sort order " + order)
	}
	return []string{column + " " + order}, nil
}
