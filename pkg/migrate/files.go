package migrate

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const versionLayout = "20060102150405"

var (
	fileNameRe = regexp.MustCompile(`^(\d{14})_([a-z0-9]+(?:_[a-z0-9]+)*)\.sql$`)
	nonWordRe  = regexp.MustCompile(`[^a-z0-9]+`)
)

const sqlTemplate = `-- +goose Up
-- +goose StatementBegin
-- %[1]s
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- undo %[1]s
-- +goose StatementEnd
`

// CreateSQLMigration writes an empty goose migration named
// <UTC timestamp>_<slug>.sql into dir and returns its path. The timestamp
// moves forward a second at a time until it does not collide.
func CreateSQLMigration(dir, name string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("dir is required")
	}
	slug := strings.Trim(nonWordRe.ReplaceAllString(strings.ToLower(name), "_"), "_")
	if slug == "" {
		return "", fmt.Errorf("name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	taken, err := versions(os.DirFS(dir))
	if err != nil {
		return "", err
	}

	at := time.Now().UTC()
	for taken[at.Format(versionLayout)] != "" {
		at = at.Add(time.Second)
	}
	full := filepath.Join(dir, at.Format(versionLayout)+"_"+slug+".sql")
	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create migration: %w", err)
	}
	if _, err := fmt.Fprintf(f, sqlTemplate, slug); err != nil {
		_ = f.Close()
		return "", err
	}
	return full, f.Close()
}

// ValidateDir checks the migrations on disk under dir.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	return ValidateFS(os.DirFS(dir))
}

// ValidateFS checks every .sql file at the root of fsys: the name must be
// <14 digit version>_<snake_case>.sql, versions must be unique, the Up
// section must come before Down, and StatementBegin/End must pair up.
func ValidateFS(fsys fs.FS) error {
	if _, err := versions(fsys); err != nil {
		return err
	}
	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return err
	}
	for _, name := range names {
		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			return err
		}
		if err := checkAnnotations(string(body)); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// versions maps each version in fsys to its file name.
func versions(fsys fs.FS) (map[string]string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}
	seen := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".sql" {
			continue
		}
		m := fileNameRe.FindStringSubmatch(e.Name())
		if m == nil {
			return nil, fmt.Errorf("bad migration name %q: want YYYYMMDDHHMMSS_snake_case.sql", e.Name())
		}
		if _, err := time.Parse(versionLayout, m[1]); err != nil {
			return nil, fmt.Errorf("bad migration version in %q: %w", e.Name(), err)
		}
		if other, dup := seen[m[1]]; dup {
			return nil, fmt.Errorf("version %s used by both %q and %q", m[1], other, e.Name())
		}
		seen[m[1]] = e.Name()
	}
	return seen, nil
}

func checkAnnotations(sql string) error {
	up, down, open := -1, -1, 0
	for i, line := range strings.Split(sql, "\n") {
		switch strings.TrimSpace(line) {
		case "-- +goose Up":
			up = i
		case "-- +goose Down":
			down = i
		case "-- +goose StatementBegin":
			if open++; open > 1 {
				return fmt.Errorf("line %d: nested StatementBegin", i+1)
			}
		case "-- +goose StatementEnd":
			if open--; open < 0 {
				return fmt.Errorf("line %d: StatementEnd without StatementBegin", i+1)
			}
		}
	}
	switch {
	case up < 0:
		return fmt.Errorf(`missing "-- +goose Up"`)
	case down < 0:
		return fmt.Errorf(`missing "-- +goose Down"`)
	case down < up:
		return fmt.Errorf("down section precedes up")
	case open != 0:
		return fmt.Errorf("unterminated StatementBegin")
	}
	return nil
}
