package builder

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// verifySQLiteFile opens the database read-only and runs an integrity check,
// so a truncated or corrupted seed database fails the build instead of
// shipping to every user.
func verifySQLiteFile(path string) error {
	dsn := fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(2000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("sqlite %s: %w", path, err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA quick_check").Scan(&result); err != nil {
		return fmt.Errorf("sqlite %s: %w", path, err)
	}
	if result != "ok" {
		return fmt.Errorf("sqlite %s: quick_check reports %q", path, result)
	}
	return nil
}
