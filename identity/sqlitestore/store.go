package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/andrebq/secrets/identity"
	"github.com/andrebq/secrets/secret"
	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

type (
	Store struct {
		db  *sql.DB
		now func() time.Time
	}

	row interface {
		Scan(...interface{}) error
	}
)

const (
	columns = `identity_id, identifier, scheme, material, provider, external_subject, note, created_at, updated_at`
)

var _ identity.Store = (*Store)(nil)

func openDatabase(ctx context.Context, dir string) (*sql.DB, error) {
	file := filepath.Join(dir, "secrets.db")
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return nil, fmt.Errorf("unable to create directory %v to store identities, cause %w", dir, err)
	}
	connstr := fmt.Sprintf("file:%v?_journal=wal&_busy_timeout=5000&_fk=true&mode=rwc", file)
	conn, err := sql.Open("sqlite3", connstr)
	if err != nil {
		return nil, fmt.Errorf("unable to open %v, cause %v", file, err)
	}
	err = conn.PingContext(ctx)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("unable to ping database %v, cause %v", file, err)
	}
	return conn, nil
}

// Open loads (or creates) the identity database kept under dir.
func Open(ctx context.Context, dir string) (*Store, error) {
	conn, err := openDatabase(ctx, dir)
	if err != nil {
		return nil, err
	}
	s := &Store{db: conn, now: time.Now}
	err = s.init(ctx)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("unable to init identity database at %v, cause %v", dir, err)
	}
	return s, nil
}

func (s *Store) FindOne(ctx context.Context, f identity.Filter) (identity.Record, error) {
	where, args := s.where(f)
	r, err := scanRecord(s.db.QueryRowContext(ctx, `select `+columns+` from identities`+where+` limit 1`, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return identity.Record{}, identity.NotFound{}
	} else if err != nil {
		return identity.Record{}, identity.Unavailable("find identity", err)
	}
	return r, nil
}

func (s *Store) FindMany(ctx context.Context, f identity.Filter) ([]identity.Record, error) {
	where, args := s.where(f)
	rows, err := s.db.QueryContext(ctx, `select `+columns+` from identities`+where+` order by created_at asc`, args...)
	if err != nil {
		return nil, identity.Unavailable("list identities", err)
	}
	defer rows.Close()
	var out []identity.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, identity.Unavailable("list identities", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, identity.Unavailable("list identities", err)
	}
	return out, nil
}

func (s *Store) Insert(ctx context.Context, r identity.Record) (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}
	r = s.stamp(r)
	_, err := s.db.ExecContext(ctx, `insert into identities(`+columns+`, identifier_hash64)
		values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.args(r)...)
	if isUniqueViolation(err) {
		return "", identity.DuplicateIdentity{Identifier: r.Identifier}
	} else if err != nil {
		return "", identity.Unavailable("insert identity", err)
	}
	return r.ID, nil
}

func (s *Store) Update(ctx context.Context, id string, c identity.Changes) error {
	if c.Note == nil {
		return nil
	}
	res, err := s.db.ExecContext(ctx, `update identities set note = ?, updated_at = ? where identity_id = ?`,
		*c.Note, s.now().UnixNano(), id)
	if err != nil {
		return identity.Unavailable("update identity", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return identity.Unavailable("update identity", err)
	} else if n == 0 {
		return identity.NotFound{}
	}
	return nil
}

func (s *Store) FindOrInsert(ctx context.Context, r identity.Record) (identity.Record, bool, error) {
	if r.ExternalSubject == "" {
		return identity.Record{}, false, identity.InvalidRecord{Reason: "find or insert requires an external subject"}
	}
	if err := r.Validate(); err != nil {
		return identity.Record{}, false, err
	}
	r = s.stamp(r)
	res, err := s.db.ExecContext(ctx, `insert into identities(`+columns+`, identifier_hash64)
		values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		on conflict (provider, external_subject) do nothing`, s.args(r)...)
	if isUniqueViolation(err) {
		// the identifier (not the subject) collided with a local account
		return identity.Record{}, false, identity.DuplicateIdentity{Identifier: r.Identifier}
	} else if err != nil {
		return identity.Record{}, false, identity.Unavailable("insert federated identity", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return identity.Record{}, false, identity.Unavailable("insert federated identity", err)
	}
	found, err := s.FindOne(ctx, identity.Filter{Provider: r.Provider, ExternalSubject: r.ExternalSubject})
	if err != nil {
		return identity.Record{}, false, err
	}
	return found, n == 1, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return identity.Unavailable("ping", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) stamp(r identity.Record) identity.Record {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := s.now()
	r.CreatedAt, r.UpdatedAt = now, now
	return r
}

func (s *Store) args(r identity.Record) []interface{} {
	return []interface{}{
		r.ID, nullable(r.Identifier), nullable(string(r.Material.Scheme)), r.Material.Data,
		nullable(r.Provider), nullable(r.ExternalSubject), r.Note,
		r.CreatedAt.UnixNano(), r.UpdatedAt.UnixNano(),
		identifierHash(r.Identifier),
	}
}

func (s *Store) where(f identity.Filter) (string, []interface{}) {
	var conds []string
	var args []interface{}
	if f.ID != "" {
		conds = append(conds, "identity_id = ?")
		args = append(args, f.ID)
	}
	if f.Identifier != "" {
		conds = append(conds, "identifier_hash64 = ?", "identifier = ?")
		args = append(args, identifierHash(f.Identifier), f.Identifier)
	}
	if f.Provider != "" {
		conds = append(conds, "provider = ?")
		args = append(args, f.Provider)
	}
	if f.ExternalSubject != "" {
		conds = append(conds, "external_subject = ?")
		args = append(args, f.ExternalSubject)
	}
	if f.WithNote {
		conds = append(conds, "note <> ''")
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " where " + strings.Join(conds, " and "), args
}

func (s *Store) init(ctx context.Context) error {
	for _, cmd := range []string{
		`create table if not exists identities(
			identity_id text not null primary key,
			identifier text unique,
			identifier_hash64 integer,
			scheme text,
			material blob,
			provider text,
			external_subject text,
			note text not null default '',
			created_at integer not null,
			updated_at integer not null,
			unique (provider, external_subject)
		)`,
		`create index if not exists idx_identities_identifier_hash64
			on identities(identifier_hash64)`,
	} {
		_, err := s.db.ExecContext(ctx, cmd)
		if err != nil {
			return err
		}
	}
	return nil
}

func scanRecord(r row) (identity.Record, error) {
	var out identity.Record
	var ident, scheme, provider, subject sql.NullString
	var material []byte
	var created, updated int64
	err := r.Scan(&out.ID, &ident, &scheme, &material, &provider, &subject, &out.Note, &created, &updated)
	if err != nil {
		return identity.Record{}, err
	}
	out.Identifier = ident.String
	out.Provider = provider.String
	out.ExternalSubject = subject.String
	if scheme.Valid || len(material) > 0 {
		out.Material = secret.Material{Scheme: secret.Scheme(scheme.String), Data: material}
	}
	out.CreatedAt = time.Unix(0, created)
	out.UpdatedAt = time.Unix(0, updated)
	return out, nil
}

func identifierHash(identifier string) interface{} {
	if identifier == "" {
		return nil
	}
	return int64(xxhash.Sum64String(identifier))
}

func nullable(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func isUniqueViolation(err error) bool {
	var sqlErr sqlite3.Error
	if errors.As(err, &sqlErr) {
		return sqlErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqlErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
