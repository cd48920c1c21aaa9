package corpus

import (
	"database/sql"
	"fmt"
	"strings"
)

// isUniqueConstraintErr returns true when the error indicates a unique/constraint violation
func isUniqueConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "unique") || strings.Contains(s, "constraint failed")
}

// CreateOrGetSource returns existing source id or inserts a new source and returns its id.
func CreateOrGetSource(db DBExecutor, sourceType, title, author, website, url, meta string) (int64, error) {
	trimmedSourceType := strings.TrimSpace(sourceType)
	if trimmedSourceType == "" {
		return 0, fmt.Errorf("sourceType must be non-empty")
	}

	const maxRetries = 3

	var id int64
	for attempt := 0; attempt < maxRetries; attempt++ {
		err := db.QueryRow(
			`SELECT id FROM sources WHERE IFNULL(url, '') = ? AND IFNULL(title, '') = ? AND IFNULL(author, '') = ?`,
			url, title, author,
		).Scan(&id)
		if err == nil {
			return id, nil
		}
		if err != sql.ErrNoRows {
			return 0, err
		}

		res, err := db.Exec(
			`INSERT INTO sources (source_type, title, author, website, url, meta) VALUES (?, ?, ?, ?, ?, ?)`,
			trimmedSourceType, title, author, website, url, meta,
		)
		if err != nil {
			// Another writer inserted the same source; retry the SELECT.
			if isUniqueConstraintErr(err) {
				continue
			}
			return 0, err
		}
		return res.LastInsertId()
	}
	return 0, fmt.Errorf("could not create or get source after %d retries", maxRetries)
}

// GetSourceProgress returns the last imported sentence index for a source,
// -1 when nothing was imported yet.
func GetSourceProgress(db DBExecutor, sourceID int64) (int, error) {
	var index int
	err := db.QueryRow("SELECT last_processed_sentence FROM sources WHERE id = ?", sourceID).Scan(&index)
	if err != nil {
		return 0, err
	}
	return index, nil
}

// UpdateSourceProgress updates the last imported sentence index.
func UpdateSourceProgress(db DBExecutor, sourceID int64, index int) error {
	_, err := db.Exec("UPDATE sources SET last_processed_sentence = ? WHERE id = ?", index, sourceID)
	return err
}
