package typeindex

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"  // registers "postgres"
	_ "modernc.org/sqlite" // registers "sqlite"

	"tsbc/internal/types"
)

// Store persists a class catalog in an SQL database so large host
// libraries need not be rebuilt from class files on every run.
type Store struct {
	db     *sql.DB
	driver string
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS tsbc_classes (
		name TEXT PRIMARY KEY,
		ordinal INTEGER NOT NULL,
		super TEXT NOT NULL,
		interfaces TEXT NOT NULL,
		is_interface INTEGER NOT NULL,
		since TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS tsbc_members (
		owner TEXT NOT NULL,
		ordinal INTEGER NOT NULL,
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		descriptor TEXT NOT NULL,
		flags INTEGER NOT NULL,
		since TEXT NOT NULL,
		PRIMARY KEY (owner, ordinal)
	)`,
}

const (
	kindMethod = "method"
	kindCtor   = "ctor"
	kindField  = "field"
)

// OpenStore opens a catalog database. driver is "sqlite" or "postgres".
func OpenStore(driver, dsn string) (*Store, error) {
	switch driver {
	case "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("typeindex: unsupported catalog driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("typeindex: open %s catalog: %w", driver, err)
	}
	if driver == "sqlite" {
		// an in-memory database exists per connection
		db.SetMaxOpenConns(1)
	}
	return &Store{db: db, driver: driver}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Migrate creates the catalog tables when they are missing.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("typeindex: migrate: %w", err)
		}
	}
	return nil
}

// rebind rewrites '?' placeholders for drivers that number them.
func (s *Store) rebind(q string) string {
	if s.driver != "postgres" {
		return q
	}
	var b strings.Builder
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}

// Save replaces the stored rows of every given class in one transaction.
func (s *Store) Save(ctx context.Context, classes []*ClassInfo) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("typeindex: save: %w", err)
	}
	defer tx.Rollback()

	var next int
	row := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(ordinal), -1) + 1 FROM tsbc_classes")
	if err := row.Scan(&next); err != nil {
		return fmt.Errorf("typeindex: save: %w", err)
	}

	for _, c := range classes {
		if _, err := tx.ExecContext(ctx, s.rebind("DELETE FROM tsbc_members WHERE owner = ?"), c.Name); err != nil {
			return fmt.Errorf("typeindex: save %s: %w", c.Name, err)
		}
		if _, err := tx.ExecContext(ctx, s.rebind("DELETE FROM tsbc_classes WHERE name = ?"), c.Name); err != nil {
			return fmt.Errorf("typeindex: save %s: %w", c.Name, err)
		}
		_, err := tx.ExecContext(ctx,
			s.rebind("INSERT INTO tsbc_classes (name, ordinal, super, interfaces, is_interface, since) VALUES (?, ?, ?, ?, ?, ?)"),
			c.Name, next, c.Super, strings.Join(c.Interfaces, ","), boolInt(c.Interface), c.Since)
		if err != nil {
			return fmt.Errorf("typeindex: save %s: %w", c.Name, err)
		}
		next++

		ord := 0
		insert := s.rebind("INSERT INTO tsbc_members (owner, ordinal, kind, name, descriptor, flags, since) VALUES (?, ?, ?, ?, ?, ?, ?)")
		for _, f := range c.Fields {
			var flags memberFlag
			if f.Static {
				flags |= fStatic
			}
			if _, err := tx.ExecContext(ctx, insert, c.Name, ord, kindField, f.Name, f.Type.Descriptor(), int(flags), f.Since); err != nil {
				return fmt.Errorf("typeindex: save %s.%s: %w", c.Name, f.Name, err)
			}
			ord++
		}
		for _, group := range [][]*types.Method{c.Constructors, c.Methods} {
			for _, m := range group {
				kind := kindMethod
				if m.IsConstructor() {
					kind = kindCtor
				}
				if _, err := tx.ExecContext(ctx, insert, c.Name, ord, kind, m.Name, m.Descriptor(), int(methodFlags(m)), m.Since); err != nil {
					return fmt.Errorf("typeindex: save %s.%s: %w", c.Name, m.Name, err)
				}
				ord++
			}
		}
	}
	return tx.Commit()
}

// Load reads the whole catalog in insertion order.
func (s *Store) Load(ctx context.Context) ([]*ClassInfo, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name, super, interfaces, is_interface, since FROM tsbc_classes ORDER BY ordinal")
	if err != nil {
		return nil, fmt.Errorf("typeindex: load classes: %w", err)
	}
	var classes []*ClassInfo
	byName := make(map[string]*ClassInfo)
	for rows.Next() {
		var (
			c      ClassInfo
			ifaces string
			isIntf int
		)
		if err := rows.Scan(&c.Name, &c.Super, &ifaces, &isIntf, &c.Since); err != nil {
			rows.Close()
			return nil, fmt.Errorf("typeindex: load classes: %w", err)
		}
		if ifaces != "" {
			c.Interfaces = strings.Split(ifaces, ",")
		}
		c.Interface = isIntf != 0
		classes = append(classes, &c)
		byName[c.Name] = &c
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("typeindex: load classes: %w", err)
	}

	mrows, err := s.db.QueryContext(ctx, "SELECT owner, kind, name, descriptor, flags, since FROM tsbc_members ORDER BY owner, ordinal")
	if err != nil {
		return nil, fmt.Errorf("typeindex: load members: %w", err)
	}
	defer mrows.Close()
	for mrows.Next() {
		var (
			owner, kind, name, desc, since string
			flags                          int
		)
		if err := mrows.Scan(&owner, &kind, &name, &desc, &flags, &since); err != nil {
			return nil, fmt.Errorf("typeindex: load members: %w", err)
		}
		c, ok := byName[owner]
		if !ok {
			return nil, fmt.Errorf("typeindex: member %s of unknown class %s", name, owner)
		}
		switch kind {
		case kindField:
			t, err := types.ParseDescriptor(desc)
			if err != nil {
				return nil, fmt.Errorf("typeindex: field %s.%s: %w", owner, name, err)
			}
			c.Fields = append(c.Fields, &Field{Owner: c.Type(), Name: name, Type: t, Static: memberFlag(flags)&fStatic != 0, Since: since})
		case kindMethod, kindCtor:
			params, result, err := types.ParseMethodDescriptor(desc)
			if err != nil {
				return nil, fmt.Errorf("typeindex: method %s.%s: %w", owner, name, err)
			}
			f := memberFlag(flags)
			m := &types.Method{
				Owner:    c.Type(),
				Name:     name,
				Params:   params,
				Result:   result,
				Static:   f&fStatic != 0,
				Abstract: f&fAbstract != 0,
				Default:  f&fDefault != 0,
				Varargs:  f&fVarargs != 0,
				Since:    since,
			}
			if kind == kindCtor {
				c.Constructors = append(c.Constructors, m)
			} else {
				c.Methods = append(c.Methods, m)
			}
		default:
			return nil, fmt.Errorf("typeindex: member %s.%s: unknown kind %q", owner, name, kind)
		}
	}
	if err := mrows.Err(); err != nil {
		return nil, fmt.Errorf("typeindex: load members: %w", err)
	}
	return classes, nil
}

func methodFlags(m *types.Method) memberFlag {
	var f memberFlag
	if m.Static {
		f |= fStatic
	}
	if m.Abstract {
		f |= fAbstract
	}
	if m.Default {
		f |= fDefault
	}
	if m.Varargs {
		f |= fVarargs
	}
	return f
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
