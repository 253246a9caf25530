package seed

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/Simplici0/quotecalc/internal/catalog"
)

// Stats contains seed operation counters.
type Stats struct {
	Inserts int
	Updates int
}

// Run writes the catalog into catalog_services in an idempotent way.
// Existing services are matched by name and updated only when a field changed.
func Run(db *sql.DB, entries []catalog.Entry) (Stats, error) {
	tx, err := db.Begin()
	if err != nil {
		return Stats{}, fmt.Errorf("begin seed transaction: %w", err)
	}

	stats := Stats{}

	for position, entry := range entries {
		if err := ensureService(tx, entry, position, &stats); err != nil {
			_ = tx.Rollback()
			return Stats{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("commit seed transaction: %w", err)
	}

	return stats, nil
}

func ensureService(tx *sql.Tx, e catalog.Entry, position int, stats *Stats) error {
	var current catalog.Entry
	var currentPosition int
	err := tx.QueryRow(`
		SELECT service, description, cost, time, category, position
		FROM catalog_services
		WHERE service = ?
		LIMIT 1
	`, e.Service).Scan(&current.Service, &current.Description, &current.Cost, &current.Time, &current.Category, &currentPosition)

	if errors.Is(err, sql.ErrNoRows) {
		if _, err := tx.Exec(`
			INSERT INTO catalog_services (service, description, cost, time, category, position)
			VALUES (?, ?, ?, ?, ?, ?)
		`, e.Service, e.Description, e.Cost, e.Time, e.Category, position); err != nil {
			return fmt.Errorf("insert catalog service %q: %w", e.Service, err)
		}
		stats.Inserts++
		return nil
	}
	if err != nil {
		return fmt.Errorf("check catalog service %q existence: %w", e.Service, err)
	}

	if current == e && currentPosition == position {
		return nil
	}

	if _, err := tx.Exec(`
		UPDATE catalog_services
		SET
			description = ?,
			cost = ?,
			time = ?,
			category = ?,
			position = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE service = ?
	`, e.Description, e.Cost, e.Time, e.Category, position, e.Service); err != nil {
		return fmt.Errorf("update catalog service %q: %w", e.Service, err)
	}
	stats.Updates++
	return nil
}
