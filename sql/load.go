package sql

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log"
)

//go:embed init.sql
var initSQL string

//go:embed entities.sql
var entitiesSQL string

//go:embed relationships.sql
var relationshipsSQL string

//go:embed runs.sql
var runsSQL string

// Function lists for verification
var EntitiesFunctions = []string{
	"init_entities",
	"upsert_entity",
	"select_entity",
	"select_entities_by_catalog",
	"select_entities_by_similarity",
	"delete_entities_by_catalog",
}

var RelationshipsFunctions = []string{
	"init_relationships",
	"upsert_mapped_source",
	"insert_relationship",
	"delete_relationships_by_source",
	"select_relationships_by_source",
	"select_relationships_by_mapping",
	"select_relationships_by_run",
	"select_mapped_sources",
	"delete_relationships_by_mapping",
}

var RunsFunctions = []string{
	"init_runs",
	"insert_run",
	"update_run",
	"select_run",
	"select_all_runs",
	"delete_run",
	"insert_batch_failure",
	"select_batch_failures",
}

// Init intializes db extensions
func Init(db *sql.DB) error {
	_, err := db.Exec(initSQL)
	if err != nil {
		return fmt.Errorf("error executing schema SQL: %w", err)
	}

	log.Println("Database extensions initialized successfully")
	return nil
}

// LoadEntitiesSql loads the target entity SQL functions
func LoadEntitiesSql(db *sql.DB, force bool) error {
	return loadSql(db, "entities", entitiesSQL, EntitiesFunctions, force)
}

// LoadRelationshipsSql loads the relationship SQL functions
func LoadRelationshipsSql(db *sql.DB, force bool) error {
	return loadSql(db, "relationships", relationshipsSQL, RelationshipsFunctions, force)
}

// LoadRunsSql loads the run and batch failure SQL functions
func LoadRunsSql(db *sql.DB, force bool) error {
	return loadSql(db, "runs", runsSQL, RunsFunctions, force)
}

// LoadAllSql loads all SQL functions
func LoadAllSql(db *sql.DB, force bool) error {
	if err := LoadEntitiesSql(db, force); err != nil {
		return err
	}

	if err := LoadRelationshipsSql(db, force); err != nil {
		return err
	}

	if err := LoadRunsSql(db, force); err != nil {
		return err
	}

	return nil
}

// loadSql executes script unless all functions exist already.
// With force the script is always executed.
func loadSql(db *sql.DB, name string, script string, functions []string, force bool) error {
	if !force {
		exist, err := checkFunctions(db, functions)
		if err != nil {
			return fmt.Errorf("error checking existing %s functions: %w", name, err)
		}
		if exist {
			return nil
		}
	}

	_, err := db.Exec(script)
	if err != nil {
		return fmt.Errorf("error executing %s SQL: %w", name, err)
	}

	exist, err := checkFunctions(db, functions)
	if err != nil {
		return fmt.Errorf("error checking existing functions: %w", err)
	}
	if !exist {
		return fmt.Errorf("not all required SQL functions were created")
	}

	log.Printf("SQL %s functions loaded successfully", name)
	return nil
}

// checkFunctions verifies that all required functions exist in the database
func checkFunctions(db *sql.DB, sqlFunctions []string) (bool, error) {
	var allExist bool
	for _, f := range sqlFunctions {
		err := db.QueryRow(
			`SELECT EXISTS(SELECT 1 FROM pg_proc WHERE proname = $1);`,
			f,
		).Scan(&allExist)
		if err != nil {
			return false, fmt.Errorf("error checking existence of function %s: %w", f, err)
		}
		if !allExist {
			log.Printf("Function %s does not exist", f)
			break
		}
	}
	return allExist, nil
}
