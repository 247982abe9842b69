package memory

import (
	"context"
	"strings"
)

// NewStore picks a backend from databaseURL:
//
//	""                        in-memory
//	postgres://, postgresql:// PostgreSQL
//	redis://, rediss://       Redis
//	sqlite:, file:, *.db      SQLite
func NewStore(ctx context.Context, databaseURL string) (Store, error) {
	databaseURL = strings.TrimSpace(databaseURL)
	switch {
	case databaseURL == "":
		return NewInMemoryStore(), nil
	case strings.HasPrefix(databaseURL, "redis://"), strings.HasPrefix(databaseURL, "rediss://"):
		return NewRedisStore(ctx, databaseURL)
	case isSQLiteURL(databaseURL):
		return OpenSQLiteStore(ctx, sqliteDSN(databaseURL))
	}
	return NewPostgresStore(ctx, databaseURL)
}

func isSQLiteURL(u string) bool {
	return strings.HasPrefix(u, "sqlite:") ||
		strings.HasPrefix(u, "file:") ||
		strings.HasSuffix(u, ".db") ||
		u == ":memory:"
}

func sqliteDSN(u string) string {
	if rest, ok := strings.CutPrefix(u, "sqlite://"); ok {
		return rest
	}
	if rest, ok := strings.CutPrefix(u, "sqlite:"); ok {
		return rest
	}
	return u
}
