// Package postgres is the optional durable ReferenceStore backend. It is
// wired in only when DSS_STORE_BACKEND is "postgres"; the in-memory store in
// the parent store package remains the required reference implementation.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang/geo/s2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BenjaminPelletier/dss/internal/geo"
	"github.com/BenjaminPelletier/dss/internal/platform"
	"github.com/BenjaminPelletier/dss/internal/store"
)

// advisoryLockKey serializes every Transact call cluster-wide, giving the
// postgres backend the same single-exclusive-writer discipline the in-memory
// store gets from its mutex.
const advisoryLockKey = int64(0x445353_5343_4400) // the bytes of "DSSSCD\0"

// Store is a Postgres-backed implementation of store.Store.
type Store struct {
	pool *pgxpool.Pool
}

// Open runs pending migrations and opens a connection pool.
func Open(ctx context.Context, databaseURL, migrationsDir string) (*Store, error) {
	if err := platform.RunMigrations(databaseURL, migrationsDir); err != nil {
		return nil, err
	}
	pool, err := platform.NewPostgresPool(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Transact runs fn inside a single database transaction, holding a
// cluster-wide advisory lock for its entire duration.
func (s *Store) Transact(ctx context.Context, fn func(store.Tx) error) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquiring connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, advisoryLockKey); err != nil {
		return fmt.Errorf("acquiring advisory lock: %w", err)
	}

	pgtx := &pgTx{ctx: ctx, tx: tx}
	if err := fn(pgtx); err != nil {
		return err
	}
	if pgtx.err != nil {
		return fmt.Errorf("writing to postgres: %w", pgtx.err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	committed = true
	return nil
}

// pgTx implements store.Tx against a single pgx.Tx. It is only ever used
// while Transact's advisory lock is held. store.Tx's write methods don't
// return an error (the in-memory implementation can't fail), so a failed
// Exec or a mid-stream row-scan error is recorded on err and surfaces once
// Transact checks it after fn returns, aborting the commit.
type pgTx struct {
	ctx context.Context
	tx  pgx.Tx
	err error
}

const subscriptionColumns = `id, owner, version, notification_index, time_start, time_end,
	altitude_lo, altitude_hi, cells, uss_base_url, notify_for_operations,
	notify_for_constraints, implicit, dependent_operations`

func scanSubscription(row pgx.Row) (*store.Subscription, error) {
	var sub store.Subscription
	var cells []int64
	var dependents []uuid.UUID
	err := row.Scan(
		&sub.ID, &sub.Owner, &sub.Version, &sub.NotificationIndex,
		&sub.Vol4.TimeStart, &sub.Vol4.TimeEnd, &sub.Vol4.AltitudeLo, &sub.Vol4.AltitudeHi,
		&cells, &sub.USSBaseURL, &sub.NotifyForOperations, &sub.NotifyForConstraints,
		&sub.Implicit, &dependents,
	)
	if err != nil {
		return nil, err
	}
	sub.Vol4.Cells = cellsFromInt64(cells)
	sub.DependentOperations = make(map[uuid.UUID]struct{}, len(dependents))
	for _, id := range dependents {
		sub.DependentOperations[id] = struct{}{}
	}
	return &sub, nil
}

func (tx *pgTx) GetSubscription(id uuid.UUID) (*store.Subscription, bool) {
	row := tx.tx.QueryRow(tx.ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`, id)
	sub, err := scanSubscription(row)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) && tx.err == nil {
			tx.err = fmt.Errorf("reading subscription %s: %w", id, err)
		}
		return nil, false
	}
	return sub, true
}

func (tx *pgTx) UpsertSubscription(sub *store.Subscription) {
	dependents := make([]uuid.UUID, 0, len(sub.DependentOperations))
	for id := range sub.DependentOperations {
		dependents = append(dependents, id)
	}
	if tx.err != nil {
		return
	}
	_, err := tx.tx.Exec(tx.ctx, `
		INSERT INTO subscriptions (
			id, owner, version, notification_index, time_start, time_end,
			altitude_lo, altitude_hi, cells, uss_base_url, notify_for_operations,
			notify_for_constraints, implicit, dependent_operations
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (id) DO UPDATE SET
			owner = EXCLUDED.owner,
			version = EXCLUDED.version,
			notification_index = EXCLUDED.notification_index,
			time_start = EXCLUDED.time_start,
			time_end = EXCLUDED.time_end,
			altitude_lo = EXCLUDED.altitude_lo,
			altitude_hi = EXCLUDED.altitude_hi,
			cells = EXCLUDED.cells,
			uss_base_url = EXCLUDED.uss_base_url,
			notify_for_operations = EXCLUDED.notify_for_operations,
			notify_for_constraints = EXCLUDED.notify_for_constraints,
			implicit = EXCLUDED.implicit,
			dependent_operations = EXCLUDED.dependent_operations`,
		sub.ID, sub.Owner, sub.Version, sub.NotificationIndex,
		sub.Vol4.TimeStart, sub.Vol4.TimeEnd, sub.Vol4.AltitudeLo, sub.Vol4.AltitudeHi,
		cellsToInt64(sub.Vol4.Cells), sub.USSBaseURL, sub.NotifyForOperations,
		sub.NotifyForConstraints, sub.Implicit, dependents,
	)
	if err != nil {
		tx.err = fmt.Errorf("upserting subscription %s: %w", sub.ID, err)
	}
}

func (tx *pgTx) DeleteSubscription(id uuid.UUID) {
	if tx.err != nil {
		return
	}
	if _, err := tx.tx.Exec(tx.ctx, `DELETE FROM subscriptions WHERE id = $1`, id); err != nil {
		tx.err = fmt.Errorf("deleting subscription %s: %w", id, err)
	}
}

// FindSubscriptions returns subscriptions whose cells overlap vol4.Cells
// (postgres array overlap, `&&`), filtered in application for the time and
// altitude overlap semantics shared with the in-memory store.
func (tx *pgTx) FindSubscriptions(vol4 geo.Volume4, owner string) []*store.Subscription {
	if tx.err != nil {
		return nil
	}
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE cells && $1`
	args := []any{cellsToInt64(vol4.Cells)}
	if owner != "" {
		query += ` AND owner = $2`
		args = append(args, owner)
	}
	rows, err := tx.tx.Query(tx.ctx, query, args...)
	if err != nil {
		tx.err = fmt.Errorf("querying subscriptions: %w", err)
		return nil
	}
	defer rows.Close()

	var out []*store.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			tx.err = fmt.Errorf("scanning subscription row: %w", err)
			return nil
		}
		if !vol4.OverlapsTimeAltitude(sub.Vol4) {
			continue
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		tx.err = fmt.Errorf("iterating subscription rows: %w", err)
		return nil
	}
	return out
}

const operationColumns = `id, owner, version, ovn, time_start, time_end,
	altitude_lo, altitude_hi, cells, uss_base_url, subscription_id`

func scanOperation(row pgx.Row) (*store.Operation, error) {
	var op store.Operation
	var cells []int64
	err := row.Scan(
		&op.ID, &op.Owner, &op.Version, &op.OVN,
		&op.Vol4.TimeStart, &op.Vol4.TimeEnd, &op.Vol4.AltitudeLo, &op.Vol4.AltitudeHi,
		&cells, &op.USSBaseURL, &op.Subscription,
	)
	if err != nil {
		return nil, err
	}
	op.Vol4.Cells = cellsFromInt64(cells)
	return &op, nil
}

func (tx *pgTx) GetOperation(id uuid.UUID) (*store.Operation, bool) {
	row := tx.tx.QueryRow(tx.ctx, `SELECT `+operationColumns+` FROM operations WHERE id = $1`, id)
	op, err := scanOperation(row)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) && tx.err == nil {
			tx.err = fmt.Errorf("reading operation %s: %w", id, err)
		}
		return nil, false
	}
	return op, true
}

func (tx *pgTx) UpsertOperation(op *store.Operation) {
	if tx.err != nil {
		return
	}
	_, err := tx.tx.Exec(tx.ctx, `
		INSERT INTO operations (
			id, owner, version, ovn, time_start, time_end,
			altitude_lo, altitude_hi, cells, uss_base_url, subscription_id
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (id) DO UPDATE SET
			owner = EXCLUDED.owner,
			version = EXCLUDED.version,
			ovn = EXCLUDED.ovn,
			time_start = EXCLUDED.time_start,
			time_end = EXCLUDED.time_end,
			altitude_lo = EXCLUDED.altitude_lo,
			altitude_hi = EXCLUDED.altitude_hi,
			cells = EXCLUDED.cells,
			uss_base_url = EXCLUDED.uss_base_url,
			subscription_id = EXCLUDED.subscription_id`,
		op.ID, op.Owner, op.Version, op.OVN,
		op.Vol4.TimeStart, op.Vol4.TimeEnd, op.Vol4.AltitudeLo, op.Vol4.AltitudeHi,
		cellsToInt64(op.Vol4.Cells), op.USSBaseURL, op.Subscription,
	)
	if err != nil {
		tx.err = fmt.Errorf("upserting operation %s: %w", op.ID, err)
	}
}

func (tx *pgTx) DeleteOperation(id uuid.UUID) {
	if tx.err != nil {
		return
	}
	if _, err := tx.tx.Exec(tx.ctx, `DELETE FROM operations WHERE id = $1`, id); err != nil {
		tx.err = fmt.Errorf("deleting operation %s: %w", id, err)
	}
}

func (tx *pgTx) FindOperations(vol4 geo.Volume4) []*store.Operation {
	if tx.err != nil {
		return nil
	}
	rows, err := tx.tx.Query(tx.ctx,
		`SELECT `+operationColumns+` FROM operations WHERE cells && $1`, cellsToInt64(vol4.Cells))
	if err != nil {
		tx.err = fmt.Errorf("querying operations: %w", err)
		return nil
	}
	defer rows.Close()

	var out []*store.Operation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			tx.err = fmt.Errorf("scanning operation row: %w", err)
			return nil
		}
		if !vol4.OverlapsTimeAltitude(op.Vol4) {
			continue
		}
		out = append(out, op)
	}
	if err := rows.Err(); err != nil {
		tx.err = fmt.Errorf("iterating operation rows: %w", err)
		return nil
	}
	return out
}

// cellsToInt64 reinterprets s2.CellID (uint64) as int64 for storage in a
// bigint[] column; the round trip through cellsFromInt64 preserves the
// original bit pattern exactly.
func cellsToInt64(cells map[s2.CellID]struct{}) []int64 {
	out := make([]int64, 0, len(cells))
	for id := range cells {
		out = append(out, int64(id))
	}
	return out
}

func cellsFromInt64(ids []int64) map[s2.CellID]struct{} {
	out := make(map[s2.CellID]struct{}, len(ids))
	for _, id := range ids {
		out[s2.CellID(id)] = struct{}{}
	}
	return out
}
