// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/danielhkuo/munconf/auth"
	"github.com/danielhkuo/munconf/models"
)

// Seed describes the countries and committees a conference starts with
type Seed struct {
	Countries  []SeedCountry   `yaml:"countries"`
	Committees []SeedCommittee `yaml:"committees"`
}

type SeedCountry struct {
	Name       string `yaml:"name"`
	Code       string `yaml:"code"`
	Importance int    `yaml:"importance"`
}

type SeedCommittee struct {
	Name         string `yaml:"name"`
	Abbreviation string `yaml:"abbreviation"`
	Topic        string `yaml:"topic"`
	Description  string `yaml:"description"`
	Capacity     int    `yaml:"capacity"`
	// Country codes represented in this committee
	Countries []string `yaml:"countries"`
}

// SeedResult counts the rows a seed run inserted
type SeedResult struct {
	Countries  int
	Committees int
	Seats      int
}

// LoadSeed reads and validates a YAML seed file
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes and validates YAML seed data
func ParseSeed(data []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed: %w", err)
	}

	codes := make(map[string]bool)
	for i, c := range seed.Countries {
		c.Code = strings.ToUpper(strings.TrimSpace(c.Code))
		if c.Name == "" || c.Code == "" {
			return nil, fmt.Errorf("country %d: name and code are required", i)
		}
		if !models.ValidCountryCode(c.Code) {
			return nil, fmt.Errorf("country %s: code %q must be 2 or 3 letters", c.Name, c.Code)
		}
		if c.Importance == 0 {
			c.Importance = 1
		}
		if c.Importance < 1 || c.Importance > 5 {
			return nil, fmt.Errorf("country %s: importance must be 1-5", c.Code)
		}
		codes[c.Code] = true
		seed.Countries[i] = c
	}

	for i, cm := range seed.Committees {
		if cm.Name == "" {
			return nil, fmt.Errorf("committee %d: name is required", i)
		}
		if cm.Capacity <= 0 {
			return nil, fmt.Errorf("committee %s: capacity must be positive", cm.Name)
		}
		for j, code := range cm.Countries {
			code = strings.ToUpper(strings.TrimSpace(code))
			if !codes[code] {
				return nil, fmt.Errorf("committee %s: unknown country code %s", cm.Name, code)
			}
			cm.Countries[j] = code
		}
		seed.Committees[i] = cm
	}

	return &seed, nil
}

// ApplySeed inserts seed rows that don't exist yet, matching countries by
// code and committees by name. Safe to run on every startup.
func ApplySeed(ctx context.Context, conn *sql.DB, seed *Seed) (SeedResult, error) {
	var res SeedResult

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	countryIDs := make(map[string]string)

	for _, c := range seed.Countries {
		id, err := lookupID(ctx, tx, `SELECT id FROM country WHERE code = $1`, c.Code)
		if err != nil {
			return res, err
		}
		if id == "" {
			id, err = auth.GenerateID(12)
			if err != nil {
				return res, err
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO country (id, name, code, importance, created_at)
				VALUES ($1, $2, $3, $4, $5)
			`, id, c.Name, c.Code, c.Importance, now)
			if err != nil {
				return res, fmt.Errorf("failed to insert country %s: %w", c.Code, err)
			}
			res.Countries++
		}
		countryIDs[c.Code] = id
	}

	for _, cm := range seed.Committees {
		id, err := lookupID(ctx, tx, `SELECT id FROM committee WHERE name = $1`, cm.Name)
		if err != nil {
			return res, err
		}
		if id == "" {
			id, err = auth.GenerateID(12)
			if err != nil {
				return res, err
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO committee (id, name, abbreviation, topic, description, capacity, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, id, cm.Name, cm.Abbreviation, cm.Topic, cm.Description, cm.Capacity, now)
			if err != nil {
				return res, fmt.Errorf("failed to insert committee %s: %w", cm.Name, err)
			}
			res.Committees++
		}

		for _, code := range cm.Countries {
			result, err := tx.ExecContext(ctx, `
				INSERT INTO committee_country (committee_id, country_id)
				VALUES ($1, $2)
				ON CONFLICT (committee_id, country_id) DO NOTHING
			`, id, countryIDs[code])
			if err != nil {
				return res, fmt.Errorf("failed to add %s to %s: %w", code, cm.Name, err)
			}
			if n, _ := result.RowsAffected(); n > 0 {
				res.Seats++
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return res, fmt.Errorf("failed to commit seed: %w", err)
	}
	return res, nil
}

func lookupID(ctx context.Context, tx *sql.Tx, query, arg string) (string, error) {
	var id string
	err := tx.QueryRowContext(ctx, query, arg).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up %q: %w", arg, err)
	}
	return id, nil
}
