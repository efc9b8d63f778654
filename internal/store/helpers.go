package store

import (
	"database/sql"
	"fmt"

	"github.com/kfujino/odowatch/internal/models"
)

// loadVehicleRows builds a seeded session from the vehicle_records rows of one
// user. Users without rows get the zero default for every known vehicle.
func loadVehicleRows(rows *sql.Rows) (*models.UserSession, error) {
	sess := models.NewUserSession()
	for rows.Next() {
		var name string
		var rec models.VehicleRecord
		if err := rows.Scan(&name, &rec.StartKm, &rec.MaxKm, &rec.LastKm); err != nil {
			return nil, fmt.Errorf("scan vehicle record failed: %w", err)
		}
		if !models.IsKnownVehicle(name) {
			// Rows for retired vehicle identities are ignored.
			continue
		}
		sess.Vehicles[models.VehicleName(name)] = &rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vehicle records failed: %w", err)
	}
	return sess, nil
}
