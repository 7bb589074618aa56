package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"operaciones/internal/api"
	"operaciones/internal/core"
	"operaciones/internal/log"

	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339Nano

// SQLiteRepository is the storage of the reference backend. It enforces
// unique identifications and known credit types, and returns the credit
// type display name on read.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

var _ api.Repository = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &SQLiteRepository{db: db, now: time.Now}
	if err := repo.rebuildSearchKeys(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("rebuild search keys: %w", err)
	}
	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

const selectOperation = `
SELECT o.id, o.identification, o.name, COALESCE(ct.name, o.credit_type), o.amount,
       o.start_date, o.term_months, o.approved, o.end_date, o.registered_at
FROM operations o
LEFT JOIN credit_types ct ON ct.code = o.credit_type`

// searchKey is the lowered name and identification. SQLite's lower() only
// folds ASCII, so the key is built here and matched with instr().
func searchKey(name, identification string) string {
	return strings.ToLower(name) + "\x1f" + strings.ToLower(identification)
}

// List filters by case-insensitive substring of name or identification.
func (r *SQLiteRepository) List(ctx context.Context, search string) ([]core.Operation, error) {
	q := strings.ToLower(strings.TrimSpace(search))
	rows, err := r.db.QueryContext(ctx, selectOperation+`
WHERE ?1 = '' OR instr(o.search_key, ?1) > 0
ORDER BY o.id`, q)
	if err != nil {
		return nil, fmt.Errorf("list operations: %w", err)
	}
	defer rows.Close()

	out := []core.Operation{}
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("list operations: %w", err)
		}
		out = append(out, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list operations: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id int64) (core.Operation, error) {
	op, err := scanOperation(r.db.QueryRowContext(ctx, selectOperation+` WHERE o.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Operation{}, fmt.Errorf("get operation %d: %w", id, api.ErrNotFound)
	}
	if err != nil {
		return core.Operation{}, fmt.Errorf("get operation %d: %w", id, err)
	}
	return op, nil
}

func (r *SQLiteRepository) Create(ctx context.Context, op core.Operation) (core.Operation, error) {
	var id int64
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		code, err := r.prepare(ctx, tx, &op, 0)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
INSERT INTO operations (identification, name, credit_type, amount, start_date, term_months, approved, end_date, registered_at, search_key)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			op.Identification, op.Name, code, op.Amount,
			formatTime(op.StartDate), op.TermMonths, op.Approved, formatTime(op.EndDate),
			r.now().UTC().Format(timeLayout), searchKey(op.Name, op.Identification))
		if err != nil {
			return mapConstraint(err)
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return core.Operation{}, fmt.Errorf("create operation: %w", err)
	}

	log.FromContext(ctx).InfoContext(ctx, "Operation saved to SQLite",
		log.FieldOperation, log.OpCreate,
		log.FieldOperationID, id,
		log.FieldIdent, op.Identification,
		log.FieldAmount, op.Amount,
		log.FieldTermMonths, op.TermMonths)

	return r.Get(ctx, id)
}

func (r *SQLiteRepository) Update(ctx context.Context, id int64, op core.Operation) (core.Operation, error) {
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		code, err := r.prepare(ctx, tx, &op, id)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
UPDATE operations
SET identification = ?, name = ?, credit_type = ?, amount = ?, start_date = ?,
    term_months = ?, approved = ?, end_date = ?, search_key = ?
WHERE id = ?`,
			op.Identification, op.Name, code, op.Amount, formatTime(op.StartDate),
			op.TermMonths, op.Approved, formatTime(op.EndDate),
			searchKey(op.Name, op.Identification), id)
		if err != nil {
			return mapConstraint(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return api.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return core.Operation{}, fmt.Errorf("update operation %d: %w", id, err)
	}
	return r.Get(ctx, id)
}

func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM operations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete operation %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete operation %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete operation %d: %w", id, api.ErrNotFound)
	}
	log.FromContext(ctx).InfoContext(ctx, "Operation deleted from SQLite",
		log.FieldOperation, log.OpDelete,
		log.FieldOperationID, id)
	return nil
}

func (r *SQLiteRepository) ListCreditTypes(ctx context.Context) ([]core.CreditType, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT code, name FROM credit_types ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list credit types: %w", err)
	}
	defer rows.Close()

	out := []core.CreditType{}
	for rows.Next() {
		var ct core.CreditType
		if err := rows.Scan(&ct.Code, &ct.Name); err != nil {
			return nil, fmt.Errorf("list credit types: %w", err)
		}
		out = append(out, ct)
	}
	return out, rows.Err()
}

// prepare normalises op, resolves its credit type code and checks the
// identification is free for id.
func (r *SQLiteRepository) prepare(ctx context.Context, tx *sql.Tx, op *core.Operation, id int64) (string, error) {
	op.Identification = strings.TrimSpace(op.Identification)
	op.Name = strings.TrimSpace(op.Name)
	op.EndDate = core.Date{Time: core.ComputeEndDate(op.StartDate.Time, op.TermMonths)}

	var code string
	err := tx.QueryRowContext(ctx,
		`SELECT code FROM credit_types WHERE code = ?1 OR name = ?1 ORDER BY code = ?1 DESC LIMIT 1`,
		op.CreditType).Scan(&code)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("unknown credit type %q: %w", op.CreditType, api.ErrInvalid)
	}
	if err != nil {
		return "", err
	}

	var other int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM operations WHERE identification = ? AND id <> ?`, op.Identification, id).Scan(&other)
	switch {
	case err == nil:
		return "", fmt.Errorf("identification %q used by operation %d: %w", op.Identification, other, api.ErrConflict)
	case !errors.Is(err, sql.ErrNoRows):
		return "", err
	}
	return code, nil
}

// rebuildSearchKeys fills keys that are missing or stale, e.g. rows written
// before the search_key column existed.
func (r *SQLiteRepository) rebuildSearchKeys(ctx context.Context) error {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, identification, search_key FROM operations`)
	if err != nil {
		return err
	}
	stale := map[int64]string{}
	for rows.Next() {
		var (
			id                int64
			name, ident, have string
		)
		if err := rows.Scan(&id, &name, &ident, &have); err != nil {
			rows.Close()
			return err
		}
		if want := searchKey(name, ident); want != have {
			stale[id] = want
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if len(stale) == 0 {
		return nil
	}
	return r.inTx(ctx, func(tx *sql.Tx) error {
		for id, key := range stale {
			if _, err := tx.ExecContext(ctx, `UPDATE operations SET search_key = ? WHERE id = ?`, key, id); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOperation(row rowScanner) (core.Operation, error) {
	var (
		op                core.Operation
		start, registered string
		end               sql.NullString
	)
	if err := row.Scan(&op.ID, &op.Identification, &op.Name, &op.CreditType, &op.Amount,
		&start, &op.TermMonths, &op.Approved, &end, &registered); err != nil {
		return core.Operation{}, err
	}
	var err error
	if op.StartDate, err = core.ParseDate(start); err != nil {
		return core.Operation{}, fmt.Errorf("start date: %w", err)
	}
	if end.Valid && end.String != "" {
		if op.EndDate, err = core.ParseDate(end.String); err != nil {
			return core.Operation{}, fmt.Errorf("end date: %w", err)
		}
	}
	if op.RegisteredAt, err = core.ParseDate(registered); err != nil {
		return core.Operation{}, fmt.Errorf("registration date: %w", err)
	}
	return op, nil
}

func formatTime(d core.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.UTC().Format(timeLayout)
}

func mapConstraint(err error) error {
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%v: %w", err, api.ErrConflict)
	}
	return err
}
