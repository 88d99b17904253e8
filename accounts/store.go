package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"
)

type (
	Store struct {
		db        *sql.DB
		writeable bool
		now       func() time.Time
	}

	scanner interface {
		Scan(...interface{}) error
	}
)

var (
	errReadOnly = errors.New("account store was opened as read-only")
)

const accountColumns = `account_id, email, password, google_id, facebook_id, display_name, secret, created_at, updated_at`

func openDatabase(ctx context.Context, file string, readwrite bool) (*sql.DB, error) {
	if readwrite {
		err := os.MkdirAll(filepath.Dir(file), 0755)
		if err != nil {
			return nil, fmt.Errorf("unable to create directory to store %v, cause %w", file, err)
		}
	}
	var connstr string
	if readwrite {
		connstr = fmt.Sprintf("file:%v?_journal=wal&_busy_timeout=5000&_txlock=immediate&mode=rwc", file)
	} else {
		connstr = fmt.Sprintf("file:%v?_busy_timeout=5000&mode=ro", file)
	}
	conn, err := sql.Open("sqlite3", connstr)
	if err != nil {
		return nil, fmt.Errorf("unable to open %v, cause %w", file, err)
	}
	err = conn.PingContext(ctx)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("unable to ping account store %v, cause %w", file, err)
	}
	return conn, nil
}

// Open loads the account store kept at file. Writable stores are migrated
// to the latest schema before being returned.
func Open(ctx context.Context, file string, readwrite bool) (*Store, error) {
	conn, err := openDatabase(ctx, file, readwrite)
	if err != nil {
		return nil, err
	}
	s := &Store{db: conn, writeable: readwrite, now: time.Now}
	if readwrite {
		err = s.applyMigrations()
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("unable to migrate account store %v, cause %w", file, err)
		}
	}
	return s, nil
}

// Create persists a new account. The caller is responsible for deriving
// the password representation; the store never sees a plaintext password.
func (s *Store) Create(ctx context.Context, a Account) (Account, error) {
	if !s.writeable {
		return Account{}, errReadOnly
	}
	a.Email = NormalizeEmail(a.Email)
	if a.Email == "" && a.GoogleID == "" && a.FacebookID == "" {
		return Account{}, InvalidAccount{Reason: "an account needs an email or an external identity"}
	}
	if a.Email != "" && a.Password == "" {
		return Account{}, InvalidAccount{Reason: "local accounts need a password"}
	}
	now := s.now().UTC()
	a.ID = ulid.Make().String()
	a.CreatedAt, a.UpdatedAt = now, now
	_, err := s.db.ExecContext(ctx, `insert into accounts(`+accountColumns+`, email_hash64)
		values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, nullString(a.Email), nullString(a.Password), nullString(a.GoogleID), nullString(a.FacebookID),
		a.DisplayName, a.Secret, a.CreatedAt, a.UpdatedAt, emailHash(a.Email))
	if isUniqueViolation(err) {
		if a.Email == "" {
			return Account{}, DuplicateAccount{Field: "external identity", Value: a.GoogleID + a.FacebookID}
		}
		return Account{}, DuplicateAccount{Field: "email", Value: a.Email}
	} else if err != nil {
		return Account{}, fmt.Errorf("unable to store account, cause %w", err)
	}
	return a, nil
}

func (s *Store) FindByEmail(ctx context.Context, email string) (Account, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return Account{}, AccountNotFound{Key: "email", Value: email}
	}
	row := s.db.QueryRowContext(ctx, `select `+accountColumns+` from accounts
		where email_hash64 = ? and email = ?`, emailHash(email), email)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, AccountNotFound{Key: "email", Value: email}
	} else if err != nil {
		return Account{}, fmt.Errorf("unable to lookup account by email, cause %w", err)
	}
	return a, nil
}

func (s *Store) FindByID(ctx context.Context, id string) (Account, error) {
	row := s.db.QueryRowContext(ctx, `select `+accountColumns+` from accounts where account_id = ?`, id)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, AccountNotFound{Key: "id", Value: id}
	} else if err != nil {
		return Account{}, fmt.Errorf("unable to lookup account %v, cause %w", id, err)
	}
	return a, nil
}

// FindOrCreateByExternalID returns the account linked to externalID at the
// given provider, creating a bare one when no such account exists. The
// insert and the lookup share one transaction, so two concurrent callbacks
// for the same new identity end up with the same account. The boolean
// result reports whether the account was created by this call.
func (s *Store) FindOrCreateByExternalID(ctx context.Context, p Provider, externalID, displayName string) (Account, bool, error) {
	if !s.writeable {
		return Account{}, false, errReadOnly
	}
	col, err := p.column()
	if err != nil {
		return Account{}, false, err
	}
	if externalID == "" {
		return Account{}, false, InvalidAccount{Reason: fmt.Sprintf("empty %v identity", p)}
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Account{}, false, fmt.Errorf("unable to start transaction, cause %w", err)
	}
	defer tx.Rollback()

	now := s.now().UTC()
	res, err := tx.ExecContext(ctx, fmt.Sprintf(`insert into accounts(account_id, %v, display_name, created_at, updated_at)
		values (?, ?, ?, ?, ?) on conflict (%v) do nothing`, col, col),
		ulid.Make().String(), externalID, displayName, now, now)
	if err != nil {
		return Account{}, false, fmt.Errorf("unable to insert %v account, cause %w", p, err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return Account{}, false, fmt.Errorf("unable to insert %v account, cause %w", p, err)
	}
	a, err := scanAccount(tx.QueryRowContext(ctx, fmt.Sprintf(`select `+accountColumns+` from accounts where %v = ?`, col), externalID))
	if err != nil {
		return Account{}, false, fmt.Errorf("unable to lookup %v account, cause %w", p, err)
	}
	if err = tx.Commit(); err != nil {
		return Account{}, false, fmt.Errorf("unable to commit %v account, cause %w", p, err)
	}
	return a, inserted == 1, nil
}

// SetSecret overwrites the secret of exactly the account identified by id.
func (s *Store) SetSecret(ctx context.Context, id string, secret string) error {
	if !s.writeable {
		return errReadOnly
	}
	res, err := s.db.ExecContext(ctx, `update accounts set secret = ?, updated_at = ? where account_id = ?`,
		secret, s.now().UTC(), id)
	if err != nil {
		return fmt.Errorf("unable to update secret of account %v, cause %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("unable to update secret of account %v, cause %w", id, err)
	}
	if n == 0 {
		return AccountNotFound{Key: "id", Value: id}
	}
	return nil
}

// ListSecrets returns every secret submitted so far, oldest account first.
func (s *Store) ListSecrets(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `select secret from accounts where secret is not null order by created_at asc, account_id asc`)
	if err != nil {
		return nil, fmt.Errorf("unable to list secrets, cause %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var secret string
		err = rows.Scan(&secret)
		if err != nil {
			return nil, fmt.Errorf("unable to scan secret, cause %w", err)
		}
		out = append(out, secret)
	}
	return out, rows.Err()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func scanAccount(row scanner) (Account, error) {
	var a Account
	var email, password, googleID, facebookID, secret sql.NullString
	err := row.Scan(&a.ID, &email, &password, &googleID, &facebookID, &a.DisplayName, &secret, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return Account{}, err
	}
	a.Email = email.String
	a.Password = password.String
	a.GoogleID = googleID.String
	a.FacebookID = facebookID.String
	if secret.Valid {
		a.Secret = &secret.String
	}
	return a, nil
}

func emailHash(email string) interface{} {
	if email == "" {
		return nil
	}
	return int64(xxhash.Sum64String(email))
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
