/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package client

import (
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/database/utils"
	storageerrors "github.com/AMD-AIG-AIMA/PrimusStore/pkg/errors"
)

/*
   Orphan-scan working tables. The scan snapshot is an unlogged table of the
   catalog keys for one bucket at the cutoff; backend listing pages are
   anti-joined against it. The table outlives the transaction that built it
   so a follow-up delete call can reuse the same snapshot (keepTmpTable).
*/

// CreateOrphanTable snapshots the bucket's catalog keys older than the
// cutoff into the named working table.
func (t *Tx) CreateOrphanTable(table, bucketId string, before time.Time) error {
	quoted := pq.QuoteIdentifier(table)
	cmd := fmt.Sprintf(`CREATE UNLOGGED TABLE IF NOT EXISTS %s AS
		SELECT name, version, false AS seen FROM %s WHERE bucket_id = $1 AND created_at < $2`,
		quoted, TObject)
	if _, err := t.tx.Exec(cmd, bucketId, before); err != nil {
		return utils.NormalizeError(err)
	}
	return nil
}

// DropOrphanTable removes the working table; idempotent.
func (t *Tx) DropOrphanTable(table string) error {
	cmd := fmt.Sprintf(`DROP TABLE IF EXISTS %s`, pq.QuoteIdentifier(table))
	if _, err := t.tx.Exec(cmd); err != nil {
		return utils.NormalizeError(err)
	}
	return nil
}

// MarkOrphanSeen marks the snapshot rows present in a backend listing page
// and returns the page keys missing from the snapshot (backend orphans).
// Keys are the derived form name+separator+version, so a stale version of a
// live key still counts as a backend orphan.
func (t *Tx) MarkOrphanSeen(table, separator string, keys []string) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	quoted := pq.QuoteIdentifier(table)
	update := fmt.Sprintf(`UPDATE %s SET seen = true WHERE name || $2 || version = ANY($1)`, quoted)
	if _, err := t.tx.Exec(update, pq.Array(keys), separator); err != nil {
		return nil, utils.NormalizeError(err)
	}
	antiJoin := fmt.Sprintf(`SELECT k FROM unnest($1::text[]) AS k
		WHERE NOT EXISTS (SELECT 1 FROM %s WHERE name || $2 || version = k)`, quoted)
	var missing []string
	if err := t.tx.Select(&missing, antiJoin, pq.Array(keys), separator); err != nil {
		return nil, utils.NormalizeError(err)
	}
	return missing, nil
}

// ListUnseenOrphans pages through snapshot keys no backend listing page
// covered (catalog orphans).
func (t *Tx) ListUnseenOrphans(table string, limit, offset int) ([]ObjectNameVersion, error) {
	if limit <= 0 {
		return nil, storageerrors.NewInvalidParameter("limit must be positive")
	}
	cmd := fmt.Sprintf(`SELECT name, version FROM %s WHERE NOT seen ORDER BY name LIMIT $1 OFFSET $2`,
		pq.QuoteIdentifier(table))
	var rows []ObjectNameVersion
	if err := t.tx.Select(&rows, cmd, limit, offset); err != nil {
		return nil, utils.NormalizeError(err)
	}
	return rows, nil
}
