package items

import (
	"context"
	"database/sql"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/unowned-ai/keep/pkg/db"
)

// Extension is a module that attaches its own tables to items. Its schema fragment
// may reference items(id) only through foreign keys declared ON DELETE CASCADE, and
// must never redefine the items table or hook it with triggers.
type Extension interface {
	// Name is the component name the schema is versioned under.
	Name() string
	SchemaVersion() int64
	Schema() string
}

// Reference is a column of an extension table that points at items.id.
type Reference struct {
	Table  string
	Column string
}

type registration struct {
	name    string
	version int64
	refs    []Reference
}

// The guards below match normalized SQL (see normalizeSQL): lower case, no comments,
// no identifier quoting, single spaces and no spaces around dots.
const itemsIdent = `(?:\w+\.)?items\b`

var (
	itemsDDL = regexp.MustCompile(`\b(?:alter table|drop table(?: if exists)?|create (?:temp |temporary )?table(?: if not exists)?) ` + itemsIdent)

	itemsTrigger = regexp.MustCompile(`\bcreate (?:temp |temporary )?trigger\b[^;]*?\bon ` + itemsIdent)

	itemsWrite = regexp.MustCompile(`\b(?:update(?: or \w+)?|insert(?: or \w+)? into|replace into|delete from) ` + itemsIdent)

	createdTable = regexp.MustCompile(`\bcreate (?:temp |temporary )?table (?:if not exists )?(?:\w+\.)?(\w+)`)

	readStart = regexp.MustCompile(`^(?:select|with|values)\b`)
	anyWrite  = regexp.MustCompile(`\b(?:insert(?: or \w+)? into|replace into|delete from|update(?: or \w+)? (?:\w+\.)?\w+ set)\b`)

	sqlComment = regexp.MustCompile(`(?s)--[^\n]*|/\*.*?(?:\*/|$)`)
	sqlQuote   = regexp.MustCompile("[\"'`\\[\\]]")
	sqlDot     = regexp.MustCompile(`\s*\.\s*`)
	sqlSpace   = regexp.MustCompile(`\s+`)
)

// normalizeSQL strips comments and quoting and collapses whitespace, so that every
// spelling of a table reference ("main"."items", main . items, UPDATE/**/items)
// reaches the guards as one canonical form. The result is only used for matching.
func normalizeSQL(query string) string {
	q := sqlComment.ReplaceAllString(query, " ")
	q = sqlQuote.ReplaceAllString(q, "")
	q = sqlDot.ReplaceAllString(q, ".")
	q = sqlSpace.ReplaceAllString(q, " ")
	return strings.ToLower(strings.TrimSpace(q))
}

// coreTables are never inspected as extension tables.
var coreTables = map[string]bool{
	"items":           true,
	"keep_versions":   true,
	"sqlite_sequence": true,
}

// checkStatement rejects SQL that would change the items table or its rows.
func checkStatement(op, query string) error {
	return checkNormalized(op, normalizeSQL(query))
}

func checkNormalized(op, query string) error {
	switch {
	case itemsDDL.MatchString(query):
		return db.E(db.ErrExtensionContract, op, "statement redefines the items table")
	case itemsTrigger.MatchString(query):
		return db.E(db.ErrExtensionContract, op, "statement defines a trigger on items")
	case itemsWrite.MatchString(query):
		return db.E(db.ErrExtensionContract, op, "statement writes to items")
	}
	return nil
}

// checkRead rejects anything but a plain read.
func checkRead(op, query string) error {
	q := normalizeSQL(query)
	if err := checkNormalized(op, q); err != nil {
		return err
	}
	if !readStart.MatchString(q) || anyWrite.MatchString(q) {
		return db.E(db.ErrExtensionContract, op, "only reads are allowed here, write through Handle.Update")
	}
	return nil
}

// Register installs ext's schema and verifies that every foreign key to items is a
// cascading reference to items(id). On any violation the installation is rolled back.
func (s *Store) Register(ctx context.Context, ext Extension) (*Handle, error) {
	op := "register extension"
	name := ext.Name()
	if name == "" || coreTables[name] {
		return nil, db.E(db.ErrExtensionContract, op, "invalid extension name %q", name)
	}
	op += " " + name
	if ext.SchemaVersion() <= 0 {
		return nil, db.E(db.ErrExtensionContract, op, "schema version must be positive")
	}
	schema := ext.Schema()
	if err := checkStatement(op, schema); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.extensions {
		if r.name == name {
			return nil, db.E(db.ErrExtensionContract, op, "extension already registered")
		}
	}

	owned := map[string]bool{}
	for _, m := range createdTable.FindAllStringSubmatch(normalizeSQL(schema), -1) {
		owned[m[1]] = true
	}

	reg := &registration{name: name, version: ext.SchemaVersion()}
	var installed bool
	err := db.InTx(ctx, s.db, s.maxRetries, op, func(tx *sqlx.Tx) error {
		var err error
		installed, err = db.UpgradeComponent(ctx, tx, name, schema, reg.version)
		if err != nil {
			return err
		}

		tables, err := db.Tables(ctx, tx)
		if err != nil {
			return err
		}
		for _, table := range tables {
			if coreTables[strings.ToLower(table)] {
				continue
			}
			refs, err := itemReferences(ctx, tx, op, table)
			if err != nil {
				return err
			}
			if owned[strings.ToLower(table)] {
				reg.refs = append(reg.refs, refs...)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.extensions = append(s.extensions, reg)
	if installed {
		s.logger.Info("component installed", "component", name, "version", reg.version)
	}
	s.logger.Debug("extension registered", "name", name, "references", len(reg.refs))
	return &Handle{store: s, name: name}, nil
}

// itemReferences returns the columns of table that reference items, failing if any
// of them is not a cascading reference to items(id).
func itemReferences(ctx context.Context, q sqlx.QueryerContext, op, table string) ([]Reference, error) {
	fks, err := db.ForeignKeys(ctx, q, table)
	if err != nil {
		return nil, err
	}
	var refs []Reference
	for _, fk := range fks {
		if !strings.EqualFold(fk.Table, "items") {
			continue
		}
		// A NULL target column means the parent's primary key, which is id.
		if fk.To.Valid && !strings.EqualFold(fk.To.String, "id") {
			return nil, db.E(db.ErrExtensionContract, op, "%s.%s references items(%s), only items(id) is allowed", table, fk.From, fk.To.String)
		}
		if !strings.EqualFold(fk.OnDelete, "CASCADE") {
			return nil, db.E(db.ErrExtensionContract, op, "%s.%s references items(id) with ON DELETE %s, CASCADE is required", table, fk.From, fk.OnDelete)
		}
		refs = append(refs, Reference{Table: table, Column: fk.From})
	}
	return refs, nil
}

// Extensions returns the names of registered extensions in registration order.
func (s *Store) Extensions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.extensions))
	for _, r := range s.extensions {
		names = append(names, r.name)
	}
	return names
}

// references returns every registered reference to items.id.
func (s *Store) references() []Reference {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var refs []Reference
	for _, r := range s.extensions {
		refs = append(refs, r.refs...)
	}
	return refs
}

// Handle is an extension's capability to read and write its own tables. It never
// exposes the underlying connection, so every statement passes the guards.
type Handle struct {
	store *Store
	name  string
}

// Name returns the extension name.
func (h *Handle) Name() string {
	return h.name
}

// Logger returns the store's logger.
func (h *Handle) Logger() *slog.Logger {
	return h.store.logger
}

// Item returns the item with id. Items are read-only to extensions.
func (h *Handle) Item(ctx context.Context, id int64) (Item, error) {
	return h.store.Get(ctx, id)
}

// Now returns the store clock, truncated to stored precision.
func (h *Handle) Now() time.Time {
	return h.store.clock()
}

// Update runs fn in one write transaction, retried as a whole while the database is
// busy. Any error from fn rolls the transaction back.
func (h *Handle) Update(ctx context.Context, fn func(*Tx) error) error {
	return db.InTx(ctx, h.store.db, h.store.maxRetries, h.name, func(tx *sqlx.Tx) error {
		return fn(&Tx{tx: tx, op: h.name})
	})
}

// View runs fn against the database outside a write transaction. Only SELECT,
// WITH and VALUES statements without writes are accepted.
func (h *Handle) View(ctx context.Context, fn func(Queryer) error) error {
	return db.Classify(h.name, fn(&reader{q: h.store.db, op: h.name, readOnly: true}))
}

// Queryer runs queries that return rows. Writes to items are always refused.
type Queryer interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

type reader struct {
	q        sqlx.QueryerContext
	op       string
	readOnly bool
}

func (r *reader) check(query string) error {
	if r.readOnly {
		return checkRead(r.op, query)
	}
	return checkStatement(r.op, query)
}

func (r *reader) GetContext(ctx context.Context, dest any, query string, args ...any) error {
	if err := r.check(query); err != nil {
		return err
	}
	return sqlx.GetContext(ctx, r.q, dest, query, args...)
}

func (r *reader) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	if err := r.check(query); err != nil {
		return err
	}
	return sqlx.SelectContext(ctx, r.q, dest, query, args...)
}

// Tx is an extension's write transaction. It can touch any table except items.
type Tx struct {
	tx *sqlx.Tx
	op string
}

// ExecContext executes a statement, refusing anything that writes to items.
func (t *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if err := checkStatement(t.op, query); err != nil {
		return nil, err
	}
	return t.tx.ExecContext(ctx, query, args...)
}

func (t *Tx) GetContext(ctx context.Context, dest any, query string, args ...any) error {
	return (&reader{q: t.tx, op: t.op}).GetContext(ctx, dest, query, args...)
}

func (t *Tx) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	return (&reader{q: t.tx, op: t.op}).SelectContext(ctx, dest, query, args...)
}
