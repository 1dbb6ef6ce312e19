// Package migrations embeds the SQL schema so the migration script and the
// integration test harness apply exactly the same files.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed *.sql
var files embed.FS

type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// Names returns the migration files for a direction in execution order.
func Names(direction Direction) ([]string, error) {
	entries, err := fs.ReadDir(files, ".")
	if err != nil {
		return nil, fmt.Errorf("read embedded migrations: %w", err)
	}

	suffix := fmt.Sprintf(".%s.sql", direction)
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), suffix) {
			names = append(names, entry.Name())
		}
	}

	sort.Strings(names)
	if direction == Down {
		sort.Sort(sort.Reverse(sort.StringSlice(names)))
	}
	return names, nil
}

// Apply runs every migration for the direction and returns how many ran.
func Apply(ctx context.Context, db *sql.DB, direction Direction) (int, error) {
	names, err := Names(direction)
	if err != nil {
		return 0, err
	}

	for _, name := range names {
		content, err := files.ReadFile(name)
		if err != nil {
			return 0, fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := db.ExecContext(ctx, string(content)); err != nil {
			return 0, fmt.Errorf("execute migration %s: %w", name, err)
		}
	}

	return len(names), nil
}
