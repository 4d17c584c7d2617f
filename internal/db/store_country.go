package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/paulmach/orb"

	"github.com/openaedmap/openaedmap-go/internal/models"
)

const countryColumns = "code, names, ST_AsBinary(geometry), ST_AsBinary(label_position)"

func scanCountry(row pgx.Row) (*models.Country, error) {
	var country models.Country
	var geometry, labelPosition []byte

	if err := row.Scan(&country.Code, &country.Names, &geometry, &labelPosition); err != nil {
		return nil, err
	}

	geom, err := unmarshalWKB(geometry)
	if err != nil {
		return nil, err
	}
	label, err := unmarshalWKBPoint(labelPosition)
	if err != nil {
		return nil, err
	}

	country.Geometry = geom
	country.LabelPosition = label
	return &country, nil
}

func collectCountries(rows pgx.Rows) ([]models.Country, error) {
	defer rows.Close()

	var countries []models.Country
	for rows.Next() {
		country, err := scanCountry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan country: %w", err)
		}
		countries = append(countries, *country)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate countries: %w", err)
	}
	return countries, nil
}

// GetAllCountries returns every country in the store.
func (db *DB) GetAllCountries(ctx context.Context) ([]models.Country, error) {
	rows, err := db.Pool.Query(ctx, "SELECT "+countryColumns+" FROM country")
	if err != nil {
		return nil, fmt.Errorf("list countries: %w", err)
	}
	return collectCountries(rows)
}

// GetCountriesIntersecting returns the countries whose polygon intersects
// the given geometry.
func (db *DB) GetCountriesIntersecting(ctx context.Context, geometry orb.Geometry) ([]models.Country, error) {
	geomWKB, err := marshalWKB(geometry)
	if err != nil {
		return nil, err
	}

	rows, err := db.Pool.Query(ctx,
		"SELECT "+countryColumns+" FROM country WHERE ST_Intersects(geometry, ST_GeomFromWKB($1, 4326))",
		geomWKB,
	)
	if err != nil {
		return nil, fmt.Errorf("list intersecting countries: %w", err)
	}
	return collectCountries(rows)
}

// ReplaceAllCountriesTx atomically replaces the country table inside a
// transaction.
func (db *DB) ReplaceAllCountriesTx(ctx context.Context, tx pgx.Tx, countries []models.Country) error {
	if _, err := tx.Exec(ctx, "TRUNCATE country"); err != nil {
		return fmt.Errorf("truncate country: %w", err)
	}
	if len(countries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, country := range countries {
		geomWKB, err := marshalWKB(country.Geometry)
		if err != nil {
			return err
		}
		labelWKB, err := marshalWKB(country.LabelPosition)
		if err != nil {
			return err
		}
		batch.Queue(`
			INSERT INTO country (code, names, geometry, label_position)
			VALUES ($1, $2, ST_GeomFromWKB($3, 4326), ST_GeomFromWKB($4, 4326))
		`, country.Code, country.Names, geomWKB, labelWKB)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert %d countries: %w", len(countries), err)
	}
	return nil
}
