package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/soyeahso/agentplay/internal/observe"
)

const tsLayout = time.RFC3339Nano

// ObservationStore persists finished observations. It satisfies
// observe.Sink.
type ObservationStore struct {
	db *DB
}

// NewObservationStore creates an observation store using the given database.
func NewObservationStore(db *DB) *ObservationStore {
	return &ObservationStore{db: db}
}

// Save inserts or replaces an observation together with its tool usages.
func (s *ObservationStore) Save(obs observe.Observation) error {
	var steps sql.NullString
	if len(obs.Steps) > 0 {
		data, err := json.Marshal(obs.Steps)
		if err != nil {
			return fmt.Errorf("encoding steps: %w", err)
		}
		steps = sql.NullString{String: string(data), Valid: true}
	}

	tx, err := s.db.sql.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO observations (id, agent, prompt, status, error, started_at, ended_at, elapsed_ms, steps)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   status = excluded.status,
		   error = excluded.error,
		   ended_at = excluded.ended_at,
		   elapsed_ms = excluded.elapsed_ms,
		   steps = excluded.steps`,
		obs.ID, obs.Agent, obs.Prompt, string(obs.Status), obs.Error,
		obs.Start.UTC().Format(tsLayout), obs.End.UTC().Format(tsLayout),
		obs.Elapsed.Milliseconds(), steps,
	)
	if err != nil {
		return fmt.Errorf("saving observation %s: %w", obs.ID, err)
	}

	if _, err := tx.Exec(`DELETE FROM tool_usages WHERE observation_id = ?`, obs.ID); err != nil {
		return err
	}
	for _, u := range obs.Tools {
		_, err := tx.Exec(
			`INSERT INTO tool_usages (observation_id, tool, input, output, elapsed_ms, used_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			obs.ID, u.Tool, u.Input, u.Output, u.Elapsed.Milliseconds(), u.At.UTC().Format(tsLayout),
		)
		if err != nil {
			return fmt.Errorf("saving tool usage for %s: %w", obs.ID, err)
		}
	}

	return tx.Commit()
}

// Recent returns the most recent observations across all agents, newest
// first. Limit of 0 defaults to 20.
func (s *ObservationStore) Recent(limit int) ([]observe.Observation, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.sql.Query(
		`SELECT id, agent, prompt, status, error, started_at, ended_at, elapsed_ms, steps
		 FROM observations ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	obs, err := scanObservations(rows)
	if err != nil {
		return nil, err
	}
	return obs, s.attachTools(obs)
}

// ListByAgent returns an agent's observations, newest first. Limit of 0
// defaults to 100.
func (s *ObservationStore) ListByAgent(agent string, limit int) ([]observe.Observation, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.sql.Query(
		`SELECT id, agent, prompt, status, error, started_at, ended_at, elapsed_ms, steps
		 FROM observations WHERE agent = ? ORDER BY started_at DESC LIMIT ?`, agent, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	obs, err := scanObservations(rows)
	if err != nil {
		return nil, err
	}
	return obs, s.attachTools(obs)
}

// Count returns the number of stored observations.
func (s *ObservationStore) Count() (int, error) {
	var n int
	err := s.db.sql.QueryRow(`SELECT COUNT(*) FROM observations`).Scan(&n)
	return n, err
}

// ToolCounts aggregates tool usage, most used first. An empty agent covers
// every agent.
func (s *ObservationStore) ToolCounts(agent string) ([]observe.ToolCount, error) {
	rows, err := s.db.sql.Query(
		`SELECT tu.tool, COUNT(*), COALESCE(SUM(tu.elapsed_ms), 0)
		 FROM tool_usages tu
		 JOIN observations o ON o.id = tu.observation_id
		 WHERE ? = '' OR o.agent = ?
		 GROUP BY tu.tool
		 ORDER BY COUNT(*) DESC, tu.tool`,
		agent, agent,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []observe.ToolCount
	for rows.Next() {
		var tc observe.ToolCount
		var ms int64
		if err := rows.Scan(&tc.Tool, &tc.Count, &ms); err != nil {
			return nil, err
		}
		tc.Total = time.Duration(ms) * time.Millisecond
		out = append(out, tc)
	}
	return out, rows.Err()
}

func (s *ObservationStore) attachTools(obs []observe.Observation) error {
	for i := range obs {
		rows, err := s.db.sql.Query(
			`SELECT tool, input, output, elapsed_ms, used_at
			 FROM tool_usages WHERE observation_id = ? ORDER BY id`, obs[i].ID,
		)
		if err != nil {
			return err
		}
		for rows.Next() {
			var u observe.ToolUsage
			var ms int64
			var at string
			if err := rows.Scan(&u.Tool, &u.Input, &u.Output, &ms, &at); err != nil {
				rows.Close()
				return err
			}
			u.Elapsed = time.Duration(ms) * time.Millisecond
			u.At, _ = time.Parse(tsLayout, at)
			obs[i].Tools = append(obs[i].Tools, u)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func scanObservations(rows *sql.Rows) ([]observe.Observation, error) {
	var out []observe.Observation
	for rows.Next() {
		var obs observe.Observation
		var status, started, ended string
		var ms int64
		var steps sql.NullString

		if err := rows.Scan(
			&obs.ID, &obs.Agent, &obs.Prompt, &status, &obs.Error,
			&started, &ended, &ms, &steps,
		); err != nil {
			return nil, err
		}
		obs.Status = observe.Status(status)
		obs.Start, _ = time.Parse(tsLayout, started)
		obs.End, _ = time.Parse(tsLayout, ended)
		obs.Elapsed = time.Duration(ms) * time.Millisecond
		if steps.Valid && steps.String != "" {
			_ = json.Unmarshal([]byte(steps.String), &obs.Steps)
		}
		out = append(out, obs)
	}
	return out, rows.Err()
}
