// Package history is the sqlite-backed job ledger. The Store listens to
// scheduler lifecycle events and turns them into row writes, so the
// scheduler itself stays unaware of persistence.
package history

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/NV7150/ImOTAR-sub000/db"
	"github.com/NV7150/ImOTAR-sub000/depth"
	"github.com/NV7150/ImOTAR-sub000/errors"
	"github.com/NV7150/ImOTAR-sub000/logger"
)

// Store writes and queries the jobs ledger. It implements
// depth.EventSink; write failures are logged and swallowed so the tick
// path never stalls on the database.
type Store struct {
	db        *sql.DB
	retention int
	log       *zap.SugaredLogger
}

// NewStore wires a ledger onto an opened database. retention bounds the
// ledger row count; zero keeps everything.
func NewStore(database *sql.DB, retention int, log *zap.SugaredLogger) (*Store, error) {
	if database == nil {
		return nil, errors.NewInvalidConfigError("history store requires a database")
	}
	if retention < 0 {
		return nil, errors.NewInvalidConfigError("history retention must be >= 0, got %d", retention)
	}
	if log == nil {
		log = logger.ComponentLogger("history")
	}
	return &Store{db: database, retention: retention, log: log}, nil
}

// OnEvent implements depth.EventSink. Begin refusals carry no job id
// and gate edges are not ledger material; both pass through untouched.
func (s *Store) OnEvent(ev depth.Event) {
	var err error
	switch ev.Type {
	case depth.EventStarted:
		err = s.insertStarted(ev)
	case depth.EventFinalized:
		err = s.markFinalized(ev)
	case depth.EventCompleted:
		err = s.markCompleted(ev)
	case depth.EventInvalidated:
		err = s.markInvalidated(ev)
	default:
		return
	}
	if err != nil {
		if db.IsDatabaseClosed(err) {
			// Shutdown race: the run is closing the database while a
			// late event drains. Nothing to record.
			s.log.Debugw("ledger write skipped, database closed",
				logger.FieldJobID, ev.JobID.Short(),
				"event", string(ev.Type),
			)
			return
		}
		s.log.Warnw("ledger write failed",
			logger.FieldJobID, ev.JobID.Short(),
			"event", string(ev.Type),
			logger.FieldError, err,
		)
	}
}

func (s *Store) insertStarted(ev depth.Event) error {
	query := `
		INSERT INTO jobs (id, color_timestamp_ns, depth_timestamp_ns, skew_ms, started_tick, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query,
		string(ev.JobID),
		ev.ColorTimestamp.UnixNano(),
		ev.DepthTimestamp.UnixNano(),
		ev.SkewMS,
		int64(ev.Tick),
		ev.At,
	)
	if err != nil {
		return errors.Wrap(err, "failed to insert job")
	}
	return s.prune()
}

func (s *Store) markFinalized(ev depth.Event) error {
	// A fault outranks plain invalidation; a clean finalize leaves the
	// outcome running until promotion.
	outcome := ""
	if ev.Fault != "" {
		outcome = OutcomeFaulted
	} else if ev.Invalidated {
		outcome = OutcomeInvalidated
	}

	if outcome == "" {
		_, err := s.db.Exec(
			`UPDATE jobs SET steps = ?, finalized_tick = ? WHERE id = ?`,
			ev.Steps, int64(ev.Tick), string(ev.JobID),
		)
		if err != nil {
			return errors.Wrap(err, "failed to mark job finalized")
		}
		return nil
	}

	fault := sql.NullString{String: ev.Fault, Valid: ev.Fault != ""}
	_, err := s.db.Exec(
		`UPDATE jobs SET steps = ?, finalized_tick = ?, outcome = ?, fault = ? WHERE id = ?`,
		ev.Steps, int64(ev.Tick), outcome, fault, string(ev.JobID),
	)
	if err != nil {
		return errors.Wrap(err, "failed to mark job finalized")
	}
	return nil
}

func (s *Store) markCompleted(ev depth.Event) error {
	// Promotion closes every row, but only a clean run flips to
	// completed; terminal outcomes recorded at finalize stay.
	query := `
		UPDATE jobs
		SET completed_tick = ?,
		    finished_at = ?,
		    outcome = CASE WHEN outcome = 'running' THEN 'completed' ELSE outcome END
		WHERE id = ?
	`
	_, err := s.db.Exec(query, int64(ev.Tick), ev.At, string(ev.JobID))
	if err != nil {
		return errors.Wrap(err, "failed to mark job completed")
	}
	return nil
}

func (s *Store) markInvalidated(ev depth.Event) error {
	_, err := s.db.Exec(
		`UPDATE jobs SET outcome = ? WHERE id = ? AND outcome = ?`,
		OutcomeInvalidated, string(ev.JobID), OutcomeRunning,
	)
	if err != nil {
		return errors.Wrap(err, "failed to mark job invalidated")
	}
	return nil
}

// prune trims the ledger to the retention bound, newest rows win.
func (s *Store) prune() error {
	if s.retention <= 0 {
		return nil
	}
	query := `
		DELETE FROM jobs WHERE id NOT IN (
			SELECT id FROM jobs ORDER BY started_at DESC, id DESC LIMIT ?
		)
	`
	_, err := s.db.Exec(query, s.retention)
	if err != nil {
		return errors.Wrap(err, "failed to prune ledger")
	}
	return nil
}

const selectColumns = `
	SELECT id, color_timestamp_ns, depth_timestamp_ns, skew_ms, steps,
	       started_tick, finalized_tick, completed_tick, outcome, fault,
	       started_at, finished_at`

// Recent returns the newest records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	query := selectColumns + ` FROM jobs ORDER BY started_at DESC, id DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list jobs")
	}
	defer rows.Close()
	return scanRecords(rows)
}

// ByOutcome returns the newest records with the given outcome.
func (s *Store) ByOutcome(ctx context.Context, outcome string, limit int) ([]Record, error) {
	query := selectColumns + ` FROM jobs WHERE outcome = ? ORDER BY started_at DESC, id DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, outcome, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list jobs by outcome")
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Get returns one record by job id.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` FROM jobs WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(errors.ErrNotFound, "job %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get job")
	}
	return &rec, nil
}

// Counts returns ledger totals per outcome.
func (s *Store) Counts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM jobs GROUP BY outcome`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count jobs")
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, errors.Wrap(err, "failed to scan job counts")
		}
		counts[outcome] = n
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate job counts")
	}
	return counts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		rec         Record
		colorNS     int64
		depthNS     int64
		startedTick int64
		finalTick   sql.NullInt64
		compTick    sql.NullInt64
		fault       sql.NullString
		finishedAt  sql.NullTime
	)
	err := row.Scan(
		&rec.ID, &colorNS, &depthNS, &rec.SkewMS, &rec.Steps,
		&startedTick, &finalTick, &compTick, &rec.Outcome, &fault,
		&rec.StartedAt, &finishedAt,
	)
	if err != nil {
		return Record{}, err
	}

	rec.ColorTimestamp = time.Unix(0, colorNS).UTC()
	rec.DepthTimestamp = time.Unix(0, depthNS).UTC()
	rec.StartedTick = uint64(startedTick)
	if finalTick.Valid {
		v := uint64(finalTick.Int64)
		rec.FinalizedTick = &v
	}
	if compTick.Valid {
		v := uint64(compTick.Int64)
		rec.CompletedTick = &v
	}
	rec.Fault = fault.String
	if finishedAt.Valid {
		t := finishedAt.Time
		rec.FinishedAt = &t
	}
	return rec, nil
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan job row")
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate job rows")
	}
	return records, nil
}
