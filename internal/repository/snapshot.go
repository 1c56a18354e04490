package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"example/merch-display/internal/logger"
	"example/merch-display/internal/models"
)

// ErrNoSnapshot is returned when nothing has been cached yet
var ErrNoSnapshot = errors.New("no cached snapshot")

const defaultOrganization = "default"

// Snapshot cache operations

// SaveSettings stores s as the latest settings of its organization
func SaveSettings(db *sql.DB, s models.Settings) (err error) {
	org := s.OrganizationID
	if org == "" {
		org = defaultOrganization
	}
	body, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("saveSettings: encode: %v", err)
	}

	tx, err := db.Begin()
	if err != nil {
		logger.Log.Errorw("Failed to begin transaction", "error", err, "organization_id", org)
		return fmt.Errorf("saveSettings begin tx: %v", err)
	}
	defer func() {
		if err != nil {
			logger.Log.Warnw("Rolling back transaction", "organization_id", org, "error", err)
			tx.Rollback()
		}
	}()

	if _, err = tx.Exec("DELETE FROM settings_snapshot WHERE organization_id = ?", org); err != nil {
		logger.Log.Errorw("Failed to clear settings snapshot", "organization_id", org, "error", err)
		return fmt.Errorf("saveSettings: delete: %v", err)
	}
	if _, err = tx.Exec("INSERT INTO settings_snapshot (organization_id, body, updated_at) VALUES (?, ?, ?)", org, string(body), time.Now().UnixNano()); err != nil {
		logger.Log.Errorw("Failed to insert settings snapshot", "organization_id", org, "error", err)
		return fmt.Errorf("saveSettings: insert: %v", err)
	}
	if err = tx.Commit(); err != nil {
		logger.Log.Errorw("Failed to commit transaction", "organization_id", org, "error", err)
		return fmt.Errorf("saveSettings: commit: %v", err)
	}

	logger.Log.Debugw("Settings snapshot saved", "organization_id", org, "bytes", len(body))
	return nil
}

// LoadSettings returns the most recently cached settings
func LoadSettings(db *sql.DB) (models.Settings, error) {
	var s models.Settings
	var body string

	row := db.QueryRow("SELECT body FROM settings_snapshot ORDER BY updated_at DESC LIMIT 1")
	if err := row.Scan(&body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s, ErrNoSnapshot
		}
		logger.Log.Errorw("Failed to read settings snapshot", "error", err)
		return s, fmt.Errorf("loadSettings: %v", err)
	}
	if err := json.Unmarshal([]byte(body), &s); err != nil {
		logger.Log.Errorw("Corrupt settings snapshot", "error", err)
		return s, fmt.Errorf("loadSettings: decode: %v", err)
	}
	return s, nil
}

// SaveProducts replaces the cached recommendation list, keeping its order
func SaveProducts(db *sql.DB, products []models.Product) (err error) {
	tx, err := db.Begin()
	if err != nil {
		logger.Log.Errorw("Failed to begin transaction", "error", err)
		return fmt.Errorf("saveProducts begin tx: %v", err)
	}
	defer func() {
		if err != nil {
			logger.Log.Warnw("Rolling back transaction", "count", len(products), "error", err)
			tx.Rollback()
		}
	}()

	if _, err = tx.Exec("DELETE FROM product_snapshot"); err != nil {
		logger.Log.Errorw("Failed to clear product snapshot", "error", err)
		return fmt.Errorf("saveProducts: delete: %v", err)
	}
	for i, p := range products {
		var body []byte
		if body, err = json.Marshal(p); err != nil {
			return fmt.Errorf("saveProducts: encode %q: %v", p.ID, err)
		}
		if _, err = tx.Exec("INSERT INTO product_snapshot (position, product_id, body) VALUES (?, ?, ?)", i, p.ID, string(body)); err != nil {
			logger.Log.Errorw("Failed to insert product snapshot", "product_id", p.ID, "error", err)
			return fmt.Errorf("saveProducts: insert %q: %v", p.ID, err)
		}
	}
	if err = tx.Commit(); err != nil {
		logger.Log.Errorw("Failed to commit transaction", "error", err)
		return fmt.Errorf("saveProducts: commit: %v", err)
	}

	logger.Log.Debugw("Product snapshot saved", "count", len(products))
	return nil
}

// LoadProducts returns the cached recommendation list in delivery order
func LoadProducts(db *sql.DB) ([]models.Product, error) {
	products := []models.Product{}

	rows, err := db.Query("SELECT product_id, body FROM product_snapshot ORDER BY position")
	if err != nil {
		logger.Log.Errorw("Failed to query product snapshot", "error", err)
		return nil, fmt.Errorf("loadProducts: %v", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			logger.Log.Errorw("Failed to scan product snapshot", "error", err)
			return nil, fmt.Errorf("loadProducts: %v", err)
		}
		var p models.Product
		if err := json.Unmarshal([]byte(body), &p); err != nil {
			logger.Log.Warnw("Skipping corrupt product snapshot", "product_id", id, "error", err)
			continue
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		logger.Log.Errorw("Error iterating product snapshot", "error", err)
		return nil, fmt.Errorf("loadProducts: %v", err)
	}
	return products, nil
}
