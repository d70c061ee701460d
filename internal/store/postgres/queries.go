package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ankittk/signoff/internal/store"
)

const taskColumns = `name, approver1, approver2, approver3, description, recommendation, decision_maker`

func (s *Store) Insert(ctx context.Context, t store.Task) error {
	return pgx.BeginFunc(ctx, s.Pool, func(tx pgx.Tx) error {
		now := time.Now().Unix()
		tag, err := tx.Exec(ctx, `
INSERT INTO tasks(`+taskColumns+`, created_at, updated_at)
VALUES($1, $2, $3, $4, $5, $6, $7, $8, $8)
ON CONFLICT (name) DO NOTHING`,
			t.Name, t.Approver1, t.Approver2, t.Approver3, t.Description, t.Recommendation, t.DecisionMaker, now)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: %s", store.ErrAlreadyExists, t.Name)
		}
		return insertComments(ctx, tx, t.Name, t.Comments)
	})
}

func (s *Store) Load(ctx context.Context, name string) (store.Task, error) {
	t, err := scanTask(s.Pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE name = $1`, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Task{}, fmt.Errorf("%w: %s", store.ErrNotFound, name)
	}
	if err != nil {
		return store.Task{}, err
	}
	rows, err := s.Pool.Query(ctx, `SELECT body FROM task_comments WHERE task_name = $1 ORDER BY seq ASC`, name)
	if err != nil {
		return store.Task{}, err
	}
	comments, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return store.Task{}, err
	}
	t.Comments = append([]string{}, comments...)
	return t, nil
}

// Save rewrites the task row and its comments in one transaction.
func (s *Store) Save(ctx context.Context, t store.Task) error {
	return pgx.BeginFunc(ctx, s.Pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
UPDATE tasks SET approver1 = $2, approver2 = $3, approver3 = $4, description = $5,
  recommendation = $6, decision_maker = $7, updated_at = $8
WHERE name = $1`,
			t.Name, t.Approver1, t.Approver2, t.Approver3, t.Description, t.Recommendation, t.DecisionMaker, time.Now().Unix())
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: %s", store.ErrNotFound, t.Name)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM task_comments WHERE task_name = $1`, t.Name); err != nil {
			return err
		}
		return insertComments(ctx, tx, t.Name, t.Comments)
	})
}

func (s *Store) LoadAll(ctx context.Context) ([]store.Task, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	var out []store.Task
	index := map[string]int{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		t.Comments = []string{}
		index[t.Name] = len(out)
		out = append(out, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	crows, err := s.Pool.Query(ctx, `SELECT task_name, body FROM task_comments ORDER BY task_name ASC, seq ASC`)
	if err != nil {
		return nil, err
	}
	defer crows.Close()
	for crows.Next() {
		var name, body string
		if err := crows.Scan(&name, &body); err != nil {
			return nil, err
		}
		if i, ok := index[name]; ok {
			out[i].Comments = append(out[i].Comments, body)
		}
	}
	return out, crows.Err()
}

// Count returns the number of stored tasks.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&n)
	return n, err
}

func insertComments(ctx context.Context, tx pgx.Tx, name string, comments []string) error {
	if len(comments) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for i, c := range comments {
		batch.Queue(`INSERT INTO task_comments(task_name, seq, body) VALUES($1, $2, $3)`, name, i, c)
	}
	return tx.SendBatch(ctx, batch).Close()
}

func scanTask(row pgx.Row) (store.Task, error) {
	var t store.Task
	err := row.Scan(&t.Name, &t.Approver1, &t.Approver2, &t.Approver3, &t.Description, &t.Recommendation, &t.DecisionMaker)
	return t, err
}
