package state

import (
	"database/sql"

	dbutil "github.com/llehouerou/listenbridge/internal/db"
)

func saveHistory(db *sql.DB, entries []string) error {
	return dbutil.WithTx(db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM history`); err != nil {
			return err
		}
		stmt, err := tx.Prepare(`INSERT INTO history (position, entry) VALUES (?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, entry := range entries {
			if _, err := stmt.Exec(i, entry); err != nil {
				return err
			}
		}
		return nil
	})
}

func loadHistory(db *sql.DB) ([]string, error) {
	rows, err := db.Query(`SELECT entry FROM history ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []string
	for rows.Next() {
		var entry string
		if err := rows.Scan(&entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
