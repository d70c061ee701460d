package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ankittk/signoff/internal/store"
)

const taskColumns = `name, approver1, approver2, approver3, description, recommendation, decision_maker`

func (s *Store) Insert(ctx context.Context, t store.Task) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().Unix()
	res, err := tx.ExecContext(ctx, `
INSERT INTO tasks(`+taskColumns+`, created_at, updated_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(name) DO NOTHING`,
		t.Name, t.Approver1, t.Approver2, t.Approver3, t.Description, t.Recommendation, t.DecisionMaker, now, now)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", store.ErrAlreadyExists, t.Name)
	}
	if err := insertComments(ctx, tx, t.Name, t.Comments); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) Load(ctx context.Context, name string) (store.Task, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE name = ?`, name)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Task{}, fmt.Errorf("%w: %s", store.ErrNotFound, name)
	}
	if err != nil {
		return store.Task{}, err
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT body FROM task_comments WHERE task_name = ? ORDER BY seq ASC`, name)
	if err != nil {
		return store.Task{}, err
	}
	defer func() { _ = rows.Close() }()
	t.Comments = []string{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return store.Task{}, err
		}
		t.Comments = append(t.Comments, body)
	}
	return t, rows.Err()
}

// Save rewrites the task row and its comments in one transaction.
func (s *Store) Save(ctx context.Context, t store.Task) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
UPDATE tasks SET approver1 = ?, approver2 = ?, approver3 = ?, description = ?,
  recommendation = ?, decision_maker = ?, updated_at = ?
WHERE name = ?`,
		t.Approver1, t.Approver2, t.Approver3, t.Description, t.Recommendation, t.DecisionMaker, time.Now().Unix(), t.Name)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", store.ErrNotFound, t.Name)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM task_comments WHERE task_name = ?`, t.Name); err != nil {
		return err
	}
	if err := insertComments(ctx, tx, t.Name, t.Comments); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) LoadAll(ctx context.Context) ([]store.Task, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []store.Task
	index := map[string]int{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		t.Comments = []string{}
		index[t.Name] = len(out)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	crows, err := s.DB.QueryContext(ctx, `SELECT task_name, body FROM task_comments ORDER BY task_name ASC, seq ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = crows.Close() }()
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
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&n)
	return n, err
}

func insertComments(ctx context.Context, tx *sql.Tx, name string, comments []string) error {
	for i, c := range comments {
		if _, err := tx.ExecContext(ctx, `INSERT INTO task_comments(task_name, seq, body) VALUES(?, ?, ?)`, name, i, c); err != nil {
			return err
		}
	}
	return nil
}

func scanTask(row interface{ Scan(dest ...any) error }) (store.Task, error) {
	var t store.Task
	err := row.Scan(&t.Name, &t.Approver1, &t.Approver2, &t.Approver3, &t.Description, &t.Recommendation, &t.DecisionMaker)
	return t, err
}
