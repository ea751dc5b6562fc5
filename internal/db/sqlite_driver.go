package db

import (
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	sqlite3 "github.com/mutecomm/go-sqlcipher/v4"
)

const (
	// SQLiteDriverName is the project-specific SQLCipher driver with custom SQL functions.
	SQLiteDriverName = "sqlite3_yanote"
)

func init() {
	sql.Register(SQLiteDriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			// Backs the "X REGEXP Y" operator, which SQLite parses but does not implement.
			if err := conn.RegisterFunc("regexp", sqliteRegexp, true); err != nil {
				if strings.Contains(strings.ToLower(err.Error()), "already exists") {
					return nil
				}
				return fmt.Errorf("register regexp SQL function: %w", err)
			}
			return nil
		},
	})
}

var (
	regexpCacheMu sync.Mutex
	regexpCache   = make(map[string]*regexp.Regexp)
)

func sqliteRegexp(pattern, value string) (bool, error) {
	regexpCacheMu.Lock()
	re, ok := regexpCache[pattern]
	if !ok {
		var err error
		re, err = regexp.Compile(pattern)
		if err != nil {
			regexpCacheMu.Unlock()
			return false, fmt.Errorf("invalid regexp %q: %w", pattern, err)
		}
		// Patterns come from slug bases; cap the cache so it cannot grow without bound.
		if len(regexpCache) >= 256 {
			regexpCache = make(map[string]*regexp.Regexp)
		}
		regexpCache[pattern] = re
	}
	regexpCacheMu.Unlock()
	return re.MatchString(value), nil
}

// IsUniqueViolation reports whether err is a UNIQUE constraint failure.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
