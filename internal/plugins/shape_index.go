package plugins

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/spf13/afero"
	_ "modernc.org/sqlite" // pure Go SQLite driver

	"github.com/leapstack-labs/leapbuild/pkg/core"
)

const shapeIndexSchema = `
CREATE TABLE IF NOT EXISTS shapes (
	projection TEXT NOT NULL,
	shape_id   TEXT NOT NULL,
	namespace  TEXT NOT NULL,
	name       TEXT NOT NULL,
	type       TEXT NOT NULL,
	PRIMARY KEY (projection, shape_id)
);
CREATE TABLE IF NOT EXISTS members (
	projection TEXT NOT NULL,
	shape_id   TEXT NOT NULL,
	member     TEXT NOT NULL,
	target     TEXT NOT NULL,
	PRIMARY KEY (projection, shape_id, member)
);
CREATE TABLE IF NOT EXISTS traits (
	projection TEXT NOT NULL,
	shape_id   TEXT NOT NULL,
	trait_id   TEXT NOT NULL,
	value      TEXT NOT NULL,
	PRIMARY KEY (projection, shape_id, trait_id)
);
CREATE INDEX IF NOT EXISTS idx_traits_trait ON traits(trait_id);
CREATE INDEX IF NOT EXISTS idx_members_target ON members(target);
`

// ShapeIndexPlugin indexes the projected model into a SQLite database with
// shapes, members and traits tables keyed by projection name.
//
// SQLite opens the database by path, so the plugin needs a manifest on the OS
// filesystem. It fails when handed a manifest backed by any other afero
// filesystem.
//
// Settings:
//
//	database: path of the index database. Defaults to shape-index.db in the
//	          plugin output directory. Several projections may share one
//	          database, so the plugin is serial.
type ShapeIndexPlugin struct{}

func (*ShapeIndexPlugin) Name() string             { return "shape-index" }
func (*ShapeIndexPlugin) Serial() bool             { return true }
func (*ShapeIndexPlugin) RequiresValidModel() bool { return true }

func (p *ShapeIndexPlugin) Execute(ctx context.Context, pc *core.PluginContext) error {
	var cfg struct {
		Database string `mapstructure:"database"`
	}
	if err := decode(p.Name(), pc.Settings, &cfg); err != nil {
		return err
	}
	fs := afero.NewOsFs()
	if m, ok := pc.Manifest.(interface{ Fs() afero.Fs }); ok {
		if _, isOS := m.Fs().(*afero.OsFs); !isOS {
			return fmt.Errorf("%s requires a manifest on the OS filesystem", p.Name())
		}
	}
	path := cfg.Database
	if path == "" {
		path = filepath.Join(pc.Manifest.BaseDir(), "shape-index.db")
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open shape index: %w", err)
	}
	defer func() { _ = db.Close() }()

	if _, err := db.ExecContext(ctx, shapeIndexSchema); err != nil {
		return fmt.Errorf("failed to create shape index schema: %w", err)
	}
	if err := indexModel(ctx, db, pc.ProjectionName, pc.Model); err != nil {
		return err
	}

	pc.Logger.Debug("indexed shapes", "database", path, "shapes", pc.Model.Len())
	pc.Manifest.AddFile(path)
	return nil
}

// indexModel replaces every row of a projection in a single transaction.
func indexModel(ctx context.Context, db *sql.DB, projection string, model *core.Model) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, table := range []string{"shapes", "members", "traits"} {
		// #nosec G202 -- table names are constants
		if _, err = tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE projection = ?", projection); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	for _, s := range model.Shapes() {
		if _, err = tx.ExecContext(ctx,
			"INSERT INTO shapes (projection, shape_id, namespace, name, type) VALUES (?, ?, ?, ?, ?)",
			projection, s.ID, s.Namespace(), s.Name(), s.Type); err != nil {
			return fmt.Errorf("failed to index shape %s: %w", s.ID, err)
		}

		for _, member := range sortedMapKeys(s.Members) {
			if _, err = tx.ExecContext(ctx,
				"INSERT INTO members (projection, shape_id, member, target) VALUES (?, ?, ?, ?)",
				projection, s.ID, member, s.Members[member]); err != nil {
				return fmt.Errorf("failed to index member %s$%s: %w", s.ID, member, err)
			}
		}

		for _, trait := range sortedMapKeys(s.Traits) {
			value, jerr := json.Marshal(s.Traits[trait])
			if jerr != nil {
				err = fmt.Errorf("failed to encode trait %s on %s: %w", trait, s.ID, jerr)
				return err
			}
			if _, err = tx.ExecContext(ctx,
				"INSERT INTO traits (projection, shape_id, trait_id, value) VALUES (?, ?, ?, ?)",
				projection, s.ID, trait, string(value)); err != nil {
				return fmt.Errorf("failed to index trait %s on %s: %w", trait, s.ID, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit shape index: %w", err)
	}
	return nil
}

func sortedMapKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
