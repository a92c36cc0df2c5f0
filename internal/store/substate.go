package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a substate does not exist.
var ErrNotFound = errors.New("substate not found")

// Substate kinds.
const (
	KindPackage       = "package"
	KindComponent     = "component"
	KindComponentInfo = "component_info"
	KindResource      = "resource"
	KindVault         = "vault"
)

// Substate is one stored entity blob.
type Substate struct {
	Address string
	Kind    string
	Data    []byte
	Version int64
}

// TransactionRecord is one entry of the committed transaction log.
type TransactionRecord struct {
	Seq          int64
	Hash         string
	Signer       string
	Nonce        uint64
	Status       string
	ErrorCode    string
	ErrorMessage string
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Tx is a write transaction. It offers the same read/write methods as Store.
type Tx struct {
	tx *sql.Tx
}

// Commit makes the transaction's writes durable.
func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Rollback discards the transaction. Safe to call after Commit.
func (t *Tx) Rollback() error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

// ReadSubstate loads the substate stored at address.
func (s *Store) ReadSubstate(ctx context.Context, address string) (Substate, error) {
	return readSubstate(ctx, s.db, address)
}

// ReadSubstate loads the substate stored at address, including writes made
// earlier in this transaction.
func (t *Tx) ReadSubstate(ctx context.Context, address string) (Substate, error) {
	return readSubstate(ctx, t.tx, address)
}

// WriteSubstate inserts or replaces a substate, bumping its version.
func (t *Tx) WriteSubstate(ctx context.Context, sub Substate) error {
	return writeSubstate(ctx, t.tx, sub)
}

// ListSubstates returns every substate of the given kind ordered by address.
func (s *Store) ListSubstates(ctx context.Context, kind string) ([]Substate, error) {
	return listSubstates(ctx, s.db, kind)
}

// ReadNonce returns the last accepted nonce for a signer, 0 when none.
func (s *Store) ReadNonce(ctx context.Context, publicKey string) (uint64, error) {
	return readNonce(ctx, s.db, publicKey)
}

// ReadNonce is the transactional variant of Store.ReadNonce.
func (t *Tx) ReadNonce(ctx context.Context, publicKey string) (uint64, error) {
	return readNonce(ctx, t.tx, publicKey)
}

// WriteNonce records nonce as the last accepted nonce for a signer.
func (t *Tx) WriteNonce(ctx context.Context, publicKey string, nonce uint64) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO nonces (public_key, nonce) VALUES (?, ?)
		ON CONFLICT(public_key) DO UPDATE SET nonce = excluded.nonce
	`, publicKey, int64(nonce))
	if err != nil {
		return fmt.Errorf("write nonce: %w", err)
	}
	return nil
}

// NextCounter increments the named counter and returns its new value.
// The first call returns 1.
func (t *Tx) NextCounter(ctx context.Context, name string) (uint64, error) {
	var value int64
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO counters (name, value) VALUES (?, 1)
		ON CONFLICT(name) DO UPDATE SET value = value + 1
		RETURNING value
	`, name).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("next counter %q: %w", name, err)
	}
	return uint64(value), nil
}

// AppendTransaction adds a record to the transaction log.
func (t *Tx) AppendTransaction(ctx context.Context, rec TransactionRecord) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO transactions
		(seq, hash, signer, nonce, status, error_code, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		rec.Seq,
		rec.Hash,
		rec.Signer,
		int64(rec.Nonce),
		rec.Status,
		rec.ErrorCode,
		rec.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("append transaction %s: %w", rec.Hash, err)
	}
	return nil
}

// ReadTransactions returns the transaction log in seq order.
func (s *Store) ReadTransactions(ctx context.Context) ([]TransactionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, hash, signer, nonce, status, error_code, error_message
		FROM transactions
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("read transactions: %w", err)
	}
	defer rows.Close()

	var out []TransactionRecord
	for rows.Next() {
		var rec TransactionRecord
		var nonce int64
		if err := rows.Scan(&rec.Seq, &rec.Hash, &rec.Signer, &nonce, &rec.Status, &rec.ErrorCode, &rec.ErrorMessage); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		rec.Nonce = uint64(nonce)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// LastSeq returns the highest logged seq, 0 for an empty log.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, "SELECT MAX(seq) FROM transactions").Scan(&seq); err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq.Int64, nil
}

func readSubstate(ctx context.Context, q querier, address string) (Substate, error) {
	sub := Substate{Address: address}
	err := q.QueryRowContext(ctx, `
		SELECT kind, data, version FROM substates WHERE address = ?
	`, address).Scan(&sub.Kind, &sub.Data, &sub.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return Substate{}, fmt.Errorf("%s: %w", address, ErrNotFound)
	}
	if err != nil {
		return Substate{}, fmt.Errorf("read substate %s: %w", address, err)
	}
	return sub, nil
}

func writeSubstate(ctx context.Context, q querier, sub Substate) error {
	if sub.Address == "" || sub.Kind == "" {
		return fmt.Errorf("write substate: address and kind are required")
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO substates (address, kind, data, version) VALUES (?, ?, ?, 1)
		ON CONFLICT(address) DO UPDATE SET
			kind = excluded.kind,
			data = excluded.data,
			version = substates.version + 1
	`, sub.Address, sub.Kind, sub.Data)
	if err != nil {
		return fmt.Errorf("write substate %s: %w", sub.Address, err)
	}
	return nil
}

func listSubstates(ctx context.Context, q querier, kind string) ([]Substate, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT address, kind, data, version FROM substates
		WHERE kind = ?
		ORDER BY address ASC
	`, kind)
	if err != nil {
		return nil, fmt.Errorf("list substates: %w", err)
	}
	defer rows.Close()

	var out []Substate
	for rows.Next() {
		var sub Substate
		if err := rows.Scan(&sub.Address, &sub.Kind, &sub.Data, &sub.Version); err != nil {
			return nil, fmt.Errorf("scan substate: %w", err)
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func readNonce(ctx context.Context, q querier, publicKey string) (uint64, error) {
	var nonce int64
	err := q.QueryRowContext(ctx, "SELECT nonce FROM nonces WHERE public_key = ?", publicKey).Scan(&nonce)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read nonce: %w", err)
	}
	return uint64(nonce), nil
}
