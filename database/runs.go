package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/siherrmann/mapper/helper"
	"github.com/siherrmann/mapper/model"
	"github.com/siherrmann/mapper/sql"
)

// RunsDBHandlerFunctions defines the interface for run database operations.
type RunsDBHandlerFunctions interface {
	InsertRun(ctx context.Context, run *model.Run) error
	UpdateRun(ctx context.Context, run *model.Run) error
	SelectRun(ctx context.Context, rid uuid.UUID) (*model.Run, error)
	SelectAllRuns(ctx context.Context, limit int) ([]*model.Run, error)
	DeleteRun(ctx context.Context, rid uuid.UUID) error
	InsertBatchFailure(ctx context.Context, runRID uuid.UUID, failure model.BatchFailure) error
	SelectBatchFailures(ctx context.Context, runRID uuid.UUID) ([]model.BatchFailure, error)
}

// RunsDBHandler handles mapping runs and their batch failures.
type RunsDBHandler struct {
	db *helper.Database
}

// NewRunsDBHandler creates a new runs database handler.
// If force is true, it will reload the SQL functions even if they already exist.
func NewRunsDBHandler(db *helper.Database, force bool) (*RunsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	runsDbHandler := &RunsDBHandler{
		db: db,
	}

	err := sql.LoadRunsSql(runsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load runs sql", err)
	}

	err = runsDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized RunsDBHandler")

	return runsDbHandler, nil
}

// CreateTable creates the 'runs' and 'batch_failures' tables if missing.
func (h *RunsDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_runs();`)
	if err != nil {
		log.Panicf("error initializing runs table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table runs")

	return nil
}

// InsertRun inserts run. A zero RID gets generated by the database.
func (h *RunsDBHandler) InsertRun(ctx context.Context, run *model.Run) error {
	var rid interface{}
	if run.RID != uuid.Nil {
		rid = run.RID
	}

	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM insert_run($1, $2, $3, $4, $5, $6, $7, $8)`,
		rid,
		run.SourceCatalog,
		run.TargetCatalog,
		string(run.State),
		run.TotalBatches,
		run.FailedBatches,
		run.Config,
		pq.Array(run.Unmapped),
	)

	err := scanRun(row, run)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// UpdateRun stores state and batch counters of run.
func (h *RunsDBHandler) UpdateRun(ctx context.Context, run *model.Run) error {
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM update_run($1, $2, $3, $4)`,
		run.RID,
		string(run.State),
		run.TotalBatches,
		run.FailedBatches,
	)

	err := scanRun(row, run)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// SelectRun returns the run with rid.
func (h *RunsDBHandler) SelectRun(ctx context.Context, rid uuid.UUID) (*model.Run, error) {
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM select_run($1)`,
		rid,
	)

	run := &model.Run{}
	err := scanRun(row, run)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return run, nil
}

// SelectAllRuns returns up to limit runs, newest first.
func (h *RunsDBHandler) SelectAllRuns(ctx context.Context, limit int) ([]*model.Run, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_all_runs($1)`,
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var runs []*model.Run
	for rows.Next() {
		run := &model.Run{}
		err := scanRun(rows, run)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		runs = append(runs, run)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return runs, nil
}

// DeleteRun removes the run and its batch failures.
func (h *RunsDBHandler) DeleteRun(ctx context.Context, rid uuid.UUID) error {
	_, err := h.db.Instance.ExecContext(
		ctx,
		`SELECT delete_run($1)`,
		rid,
	)
	if err != nil {
		return helper.NewError("delete", err)
	}

	return nil
}

// InsertBatchFailure records a failed batch of the run with runRID.
func (h *RunsDBHandler) InsertBatchFailure(ctx context.Context, runRID uuid.UUID, failure model.BatchFailure) error {
	_, err := h.db.Instance.ExecContext(
		ctx,
		`SELECT * FROM insert_batch_failure($1, $2, $3, $4, $5, $6)`,
		runRID,
		failure.Index,
		failure.FirstSourceID,
		failure.LastSourceID,
		pq.Array(failure.SourceIDs),
		failure.Message,
	)
	if err != nil {
		return helper.NewError("insert", err)
	}

	return nil
}

// SelectBatchFailures returns the failures of the run ordered by batch index.
func (h *RunsDBHandler) SelectBatchFailures(ctx context.Context, runRID uuid.UUID) ([]model.BatchFailure, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_batch_failures($1)`,
		runRID,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	failures := []model.BatchFailure{}
	for rows.Next() {
		failure := model.BatchFailure{}
		err := rows.Scan(
			&failure.Index,
			&failure.FirstSourceID,
			&failure.LastSourceID,
			pq.Array(&failure.SourceIDs),
			&failure.Message,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		failures = append(failures, failure)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return failures, nil
}

func scanRun(row scanner, run *model.Run) error {
	var state string
	err := row.Scan(
		&run.ID,
		&run.RID,
		&run.SourceCatalog,
		&run.TargetCatalog,
		&state,
		&run.TotalBatches,
		&run.FailedBatches,
		&run.Config,
		pq.Array(&run.Unmapped),
		&run.CreatedAt,
		&run.UpdatedAt,
	)
	if err != nil {
		return err
	}
	run.State = model.RunState(state)

	return nil
}
