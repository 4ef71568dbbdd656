// Command genmock generates a mock farm-survey SQLite database and a
// weather-station mapping CSV for local pipeline runs and demos. The mock
// data reproduces the quirks of the real survey export: the Crop_type and
// Annual_yield column labels are swapped, some crop names are misspelled,
// and some elevations were recorded with a negative sign.
//
// Usage:
//
//	go run ./cmd/genmock -db survey_mock.db -mapping-out mapping_mock.csv
package main

import (
	"database/sql"
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/brianvoe/gofakeit/v6"
	_ "modernc.org/sqlite"
)

var crops = []string{"cassava", "wheat", "tea", "maize", "potato", "banana", "coffee", "rice"}

// misspellings mirrors the corrections the pipeline applies.
var misspellings = map[string]string{
	"cassava": "cassaval",
	"wheat":   "wheatn",
	"tea":     "teaa",
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	dbPath := flag.String("db", "survey_mock.db", "output path for the mock survey SQLite database")
	mappingOut := flag.String("mapping-out", "mapping_mock.csv", "output path for the weather-station mapping CSV")
	fields := flag.Int("fields", 100, "number of survey fields to generate")
	seed := flag.Int64("seed", 42, "random seed for reproducible output")
	flag.Parse()

	gofakeit.Seed(*seed)

	if err := os.Remove(*dbPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale database: %w", err)
	}
	db, err := sql.Open("sqlite", *dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := createTables(db); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	if err := fillTables(db, *fields); err != nil {
		return fmt.Errorf("fill tables: %w", err)
	}
	log.Printf("wrote survey database: %s (%d fields)", *dbPath, *fields)

	mapped, err := writeMapping(*mappingOut, *fields)
	if err != nil {
		return fmt.Errorf("write mapping: %w", err)
	}
	log.Printf("wrote station mapping: %s (%d of %d fields assigned)", *mappingOut, mapped, *fields)
	return nil
}

func createTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE geographic_features (
			Field_ID INTEGER PRIMARY KEY,
			Elevation REAL,
			Latitude REAL,
			Longitude REAL,
			Location TEXT,
			Slope REAL
		)`,
		`CREATE TABLE weather_features (
			Field_ID INTEGER PRIMARY KEY,
			Rainfall REAL,
			Min_temperature_C REAL,
			Max_temperature_C REAL,
			Ave_temps REAL
		)`,
		`CREATE TABLE soil_and_crop_features (
			Field_ID INTEGER PRIMARY KEY,
			Soil_fertility REAL,
			Soil_type TEXT,
			pH REAL
		)`,
		`CREATE TABLE farm_management_features (
			Field_ID INTEGER PRIMARY KEY,
			Pollution_level REAL,
			Plot_size REAL,
			Chemicals_used TEXT,
			Crop_type REAL,
			Annual_yield TEXT
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func fillTables(db *sql.DB, fields int) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	soilTypes := []string{"Sandy", "Loamy", "Silt", "Clay", "Peaty", "Rocky", "Volcanic"}
	chemicals := []string{"Pesticides", "Herbicides", "Fertilizer", "Organic", "None"}

	for id := 1; id <= fields; id++ {
		// Roughly one field in five carries a sign error.
		elevation := gofakeit.Float64Range(5, 900)
		if gofakeit.Number(1, 5) == 1 {
			elevation = -elevation
		}
		if _, err := tx.Exec(
			`INSERT INTO geographic_features VALUES (?, ?, ?, ?, ?, ?)`,
			id, elevation,
			gofakeit.Float64Range(-3.0, 1.0), gofakeit.Float64Range(34.0, 41.0),
			gofakeit.City(), gofakeit.Float64Range(0, 25),
		); err != nil {
			return err
		}

		minT := gofakeit.Float64Range(8, 18)
		maxT := minT + gofakeit.Float64Range(5, 20)
		if _, err := tx.Exec(
			`INSERT INTO weather_features VALUES (?, ?, ?, ?, ?)`,
			id, gofakeit.Float64Range(0, 1800), minT, maxT, (minT+maxT)/2,
		); err != nil {
			return err
		}

		if _, err := tx.Exec(
			`INSERT INTO soil_and_crop_features VALUES (?, ?, ?, ?)`,
			id, gofakeit.Float64Range(0, 1),
			gofakeit.RandomString(soilTypes), gofakeit.Float64Range(4.5, 8.5),
		); err != nil {
			return err
		}

		crop := gofakeit.RandomString(crops)
		if bad, ok := misspellings[crop]; ok && gofakeit.Number(1, 3) == 1 {
			crop = bad
		}
		// The export bug: the crop name lands in Annual_yield and the
		// yield value lands in Crop_type.
		if _, err := tx.Exec(
			`INSERT INTO farm_management_features VALUES (?, ?, ?, ?, ?, ?)`,
			id, gofakeit.Float64Range(0, 1), gofakeit.Float64Range(0.1, 10),
			gofakeit.RandomString(chemicals),
			gofakeit.Float64Range(0.2, 5.0), crop,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// writeMapping assigns most fields a weather station, leaving a share
// unmapped so that left-join enrichment has NULL cells to exercise.
func writeMapping(path string, fields int) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write([]string{"Field_ID", "Weather_station"}); err != nil {
		return 0, err
	}
	mapped := 0
	for id := 1; id <= fields; id++ {
		if gofakeit.Number(1, 10) == 1 {
			continue // unmapped field
		}
		station := strconv.Itoa(gofakeit.Number(0, 4))
		if err := cw.Write([]string{strconv.Itoa(id), station}); err != nil {
			return 0, err
		}
		mapped++
	}
	cw.Flush()
	return mapped, cw.Error()
}
