package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/watlab/autocontrol/task"
)

// PostgresStore implements TaskStore using a PostgreSQL backend. Each task
// is stored as one row: the full task serialized as JSON in task_data, plus
// the projected columns (priority, sample_number, device, channel, task_type,
// target_device, target_channel) spec.md §4.3 names, so the sample-number,
// lowest-sample-number and channel queries can run as ordinary
// parameterized SQL and the priority query can be ordered in SQL. The
// interference and future-device queries load every row's task_data.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore initializes a new PostgresStore with a connection pool.
// The caller is expected to have already applied the tasks table schema.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, err
	}

	config.MaxConns = 20
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

func projected(t *task.Task) (device string, channel *int, targetDevice string, targetChannel *int) {
	if first := t.First(); first != nil {
		device = first.Device
		channel = first.Channel
	}
	if last := t.Last(); last != nil {
		targetDevice = last.Device
		targetChannel = last.Channel
	}
	return
}

func (s *PostgresStore) Put(t *task.Task) error {
	return s.upsert(context.Background(), t)
}

func (s *PostgresStore) upsert(ctx context.Context, t *task.Task) error {
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	device, channel, targetDevice, targetChannel := projected(t)

	query := `
		INSERT INTO tasks (task_id, sample_id, sample_number, priority, task_type, device, channel, target_device, target_channel, task_data, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		ON CONFLICT (task_id) DO UPDATE SET
			sample_id = EXCLUDED.sample_id,
			sample_number = EXCLUDED.sample_number,
			priority = EXCLUDED.priority,
			task_type = EXCLUDED.task_type,
			device = EXCLUDED.device,
			channel = EXCLUDED.channel,
			target_device = EXCLUDED.target_device,
			target_channel = EXCLUDED.target_channel,
			task_data = EXCLUDED.task_data,
			updated_at = NOW()
	`
	_, err = s.pool.Exec(ctx, query,
		t.ID, t.SampleID, t.SampleNum, t.Priority, string(t.Type),
		device, channel, targetDevice, targetChannel, data,
	)
	return err
}

func (s *PostgresStore) Remove(id uuid.UUID) error {
	_, err := s.pool.Exec(context.Background(), `DELETE FROM tasks WHERE task_id = $1`, id)
	return err
}

func (s *PostgresStore) Replace(t *task.Task, id uuid.UUID) error {
	ctx := context.Background()
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM tasks WHERE task_id = $1`, id); err != nil {
		return err
	}
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	device, channel, targetDevice, targetChannel := projected(t)
	_, err = tx.Exec(ctx, `
		INSERT INTO tasks (task_id, sample_id, sample_number, priority, task_type, device, channel, target_device, target_channel, task_data, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
	`, t.ID, t.SampleID, t.SampleNum, t.Priority, string(t.Type), device, channel, targetDevice, targetChannel, data)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) Clear() error {
	_, err := s.pool.Exec(context.Background(), `TRUNCATE TABLE tasks`)
	return err
}

func (s *PostgresStore) Empty() (bool, error) {
	var count int
	err := s.pool.QueryRow(context.Background(), `SELECT COUNT(*) FROM tasks`).Scan(&count)
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

func scanTaskData(row pgx.Row) (*task.Task, error) {
	var data []byte
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	var t task.Task
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *PostgresStore) GetAll() ([]*task.Task, error) {
	ctx := context.Background()
	rows, err := s.pool.Query(ctx, `SELECT task_data FROM tasks`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*task.Task
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var t task.Task
		if err := json.Unmarshal(data, &t); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetTaskByID(id uuid.UUID) (*task.Task, error) {
	row := s.pool.QueryRow(context.Background(), `SELECT task_data FROM tasks WHERE task_id = $1`, id)
	return scanTaskData(row)
}

func (s *PostgresStore) GetTaskBySampleNumber(sampleNumber int) ([]*task.Task, error) {
	ctx := context.Background()
	rows, err := s.pool.Query(ctx, `SELECT task_data FROM tasks WHERE sample_number = $1`, sampleNumber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*task.Task
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var t task.Task
		if err := json.Unmarshal(data, &t); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

// GetAndRemoveByPriority mirrors the in-memory implementation's semantics
// using SQL ordering instead of a linear scan: the type/blocked filters are
// applied in Go after fetching candidates ordered by priority, since the
// blocked set is typically small and built fresh on every dispatch tick.
func (s *PostgresStore) GetAndRemoveByPriority(types map[task.Type]bool, remove bool, blocked map[int]bool) (*task.Task, error) {
	ctx := context.Background()
	rows, err := s.pool.Query(ctx, `
		SELECT task_data FROM tasks
		ORDER BY priority DESC NULLS LAST
	`)
	if err != nil {
		return nil, err
	}

	var chosen *task.Task
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			rows.Close()
			return nil, err
		}
		var t task.Task
		if err := json.Unmarshal(data, &t); err != nil {
			rows.Close()
			return nil, err
		}
		if types != nil && !types[t.Type] {
			continue
		}
		if t.SampleNum != nil && blocked[*t.SampleNum] {
			continue
		}
		chosen = &t
		break
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if chosen == nil {
		return nil, nil
	}
	if remove {
		if _, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE task_id = $1`, chosen.ID); err != nil {
			return nil, err
		}
	}
	return chosen, nil
}

func (s *PostgresStore) GetLowestSampleNumber() (int, bool, error) {
	var n *int
	err := s.pool.QueryRow(context.Background(),
		`SELECT MIN(sample_number) FROM tasks WHERE sample_number IS NOT NULL`).Scan(&n)
	if err != nil {
		return 0, false, err
	}
	if n == nil {
		return 0, false, nil
	}
	return *n, true, nil
}

func (s *PostgresStore) FindChannels(sampleNumber *int, device string) ([]int, error) {
	ctx := context.Background()
	query := `SELECT DISTINCT channel FROM tasks WHERE channel IS NOT NULL`
	var args []interface{}
	n := 0
	if sampleNumber != nil {
		n++
		query += fmt.Sprintf(" AND sample_number = $%d", n)
		args = append(args, *sampleNumber)
	}
	if device != "" {
		n++
		query += fmt.Sprintf(" AND device = $%d", n)
		args = append(args, device)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var c int
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// FindInterference, like the in-memory backend, compares a candidate task's
// sub-task (device, channel) pairs against every stored task. The projected
// columns only cover the first/last hop, so transfer routes with interior
// hops still require inspecting task_data; loading all rows keeps this
// store's semantics identical to MemoryStore rather than approximating them.
func (s *PostgresStore) FindInterference(candidate *task.Task) (bool, error) {
	all, err := s.GetAll()
	if err != nil {
		return false, err
	}
	mem := NewMemoryStore()
	for _, t := range all {
		if err := mem.Put(t); err != nil {
			return false, err
		}
	}
	return mem.FindInterference(candidate)
}

func (s *PostgresStore) GetFutureDevices(sampleNumber int, device string, channel *int) ([]DeviceChannel, error) {
	all, err := s.GetAll()
	if err != nil {
		return nil, err
	}
	mem := NewMemoryStore()
	for _, t := range all {
		if err := mem.Put(t); err != nil {
			return nil, err
		}
	}
	return mem.GetFutureDevices(sampleNumber, device, channel)
}
