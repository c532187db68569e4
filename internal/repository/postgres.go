package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"points_bot/internal/model"
	"points_bot/pkg/logger"

	"github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Postgres caps a statement at 65535 bind parameters.
const insertBatchSize = 1000

const (
	usersTable       = "ledger_users"
	usersBackupTable = "ledger_users_backup"
)

// ErrNotLoaded is returned by Save after a Load that left the ledger table
// unread and unquarantined; saving would overwrite rows never seen.
var ErrNotLoaded = errors.New("ledger table was not loaded, refusing to overwrite it")

const schema = `
CREATE TABLE IF NOT EXISTS ledger_users (
	telegram_id           BIGINT PRIMARY KEY,
	display_name          TEXT NOT NULL DEFAULT '',
	points                INTEGER NOT NULL DEFAULT 0,
	referral_count        INTEGER NOT NULL DEFAULT 0,
	referral_state        TEXT NOT NULL DEFAULT 'none',
	referrer_id           BIGINT,
	last_daily_claim      TEXT NOT NULL DEFAULT '',
	pending_email_capture BOOLEAN NOT NULL DEFAULT FALSE,
	email                 TEXT NOT NULL DEFAULT '',
	rewards_claimed       INTEGER NOT NULL DEFAULT 0,
	task_ids              TEXT[] NOT NULL DEFAULT '{}',
	task_states           TEXT[] NOT NULL DEFAULT '{}',
	banned                BOOLEAN NOT NULL DEFAULT FALSE,
	join_date             TIMESTAMPTZ NOT NULL,
	seq                   BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS ledger_users_backup (LIKE ledger_users INCLUDING ALL);
`

var userColumns = []string{
	"telegram_id",
	"display_name",
	"points",
	"referral_count",
	"referral_state",
	"referrer_id",
	"last_daily_claim",
	"pending_email_capture",
	"email",
	"rewards_claimed",
	"task_ids",
	"task_states",
	"banned",
	"join_date",
	"seq",
}

type Config struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func (c *Config) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Name,
	)
}

type ledgerUser struct {
	TelegramID          int64          `db:"telegram_id"`
	DisplayName         string         `db:"display_name"`
	Points              int            `db:"points"`
	ReferralCount       int            `db:"referral_count"`
	ReferralState       string         `db:"referral_state"`
	ReferrerID          *int64         `db:"referrer_id"`
	LastDailyClaim      string         `db:"last_daily_claim"`
	PendingEmailCapture bool           `db:"pending_email_capture"`
	Email               string         `db:"email"`
	RewardsClaimed      int            `db:"rewards_claimed"`
	TaskIDs             pq.StringArray `db:"task_ids"`
	TaskStates          pq.StringArray `db:"task_states"`
	Banned              bool           `db:"banned"`
	JoinDate            time.Time      `db:"join_date"`
	Seq                 int64          `db:"seq"`
}

// PostgresBackend stores one row per user. Save rewrites the table inside a
// transaction after copying it into the backup table.
type PostgresBackend struct {
	db  *sqlx.DB
	now func() time.Time

	mu sync.Mutex
	// unsafe is set while the table holds rows the store never loaded.
	unsafe bool
}

func NewPostgresBackend(ctx context.Context, cfg Config) (*PostgresBackend, error) {
	url := cfg.GetDatabaseURL()
	db, err := sqlx.ConnectContext(ctx, "pgx", url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	err = db.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	logger.Logger().Info("Connected to database successfully")

	return &PostgresBackend{db: db, now: time.Now}, nil
}

func (b *PostgresBackend) Close() error {
	return b.db.Close()
}

func (b *PostgresBackend) Transaction(ctx context.Context, t func(tx *sqlx.Tx) error) error {
	tx, err := b.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	err = t(tx)
	if err != nil {
		txErr := tx.Rollback()
		if txErr != nil {
			return errors.Wrapf(err, "rollback error: %v", txErr)
		}
		return err
	}
	return tx.Commit()
}

func (b *PostgresBackend) Load(ctx context.Context) ([]*model.User, error) {
	query, args, err := squirrel.
		Select(userColumns...).
		From(usersTable).
		OrderBy("seq").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []ledgerUser
	if err := b.db.SelectContext(ctx, &rows, query, args...); err != nil {
		b.setUnsafe(true)
		return nil, errors.Wrap(err, "select ledger users")
	}

	users, err := decodeRows(rows)
	if err != nil {
		table := quarantineTable(b.now())
		if qErr := b.quarantine(ctx, table); qErr != nil {
			b.setUnsafe(true)
			logger.Logger().Error("failed to quarantine corrupt ledger table",
				zap.String("table", usersTable),
				zap.Error(qErr))
		} else {
			b.setUnsafe(false)
			logger.Logger().Warn("corrupt ledger table copied aside",
				zap.String("table", usersTable),
				zap.String("quarantine", table))
		}
		return nil, err
	}

	b.setUnsafe(false)
	return users, nil
}

// decodeRows maps rows to users. Any row that does not map makes the whole
// table corrupt.
func decodeRows(rows []ledgerUser) ([]*model.User, error) {
	users := make([]*model.User, 0, len(rows))
	for _, row := range rows {
		u, err := row.toModel()
		if err != nil {
			return nil, errors.Wrapf(ErrCorrupt, "user %d: %v", row.TelegramID, err)
		}
		users = append(users, u)
	}
	return users, nil
}

func quarantineTable(at time.Time) string {
	return fmt.Sprintf("%s_corrupt_%d", usersTable, at.UTC().Unix())
}

// quarantine copies the ledger table into table so later saves, which rotate
// the ledger into the backup table, cannot lose it.
func (b *PostgresBackend) quarantine(ctx context.Context, table string) error {
	query := fmt.Sprintf("CREATE TABLE %s AS SELECT * FROM %s", table, usersTable)
	if _, err := b.db.ExecContext(ctx, query); err != nil {
		return errors.Wrapf(err, "copy ledger to %s", table)
	}
	return nil
}

func (b *PostgresBackend) setUnsafe(v bool) {
	b.mu.Lock()
	b.unsafe = v
	b.mu.Unlock()
}

func (b *PostgresBackend) checkSafe() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.unsafe {
		return ErrNotLoaded
	}
	return nil
}

func (b *PostgresBackend) Save(ctx context.Context, users []*model.User) error {
	if err := b.checkSafe(); err != nil {
		return err
	}

	return b.Transaction(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+usersBackupTable); err != nil {
			return errors.Wrap(err, "clear backup table")
		}

		backupQuery := fmt.Sprintf("INSERT INTO %s SELECT * FROM %s", usersBackupTable, usersTable)
		if _, err := tx.ExecContext(ctx, backupQuery); err != nil {
			return errors.Wrap(err, "copy ledger to backup table")
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM "+usersTable); err != nil {
			return errors.Wrap(err, "clear ledger table")
		}

		for start := 0; start < len(users); start += insertBatchSize {
			end := start + insertBatchSize
			if end > len(users) {
				end = len(users)
			}
			if err := insertUsers(ctx, tx, users[start:end]); err != nil {
				return err
			}
		}

		return nil
	})
}

// RestoreBackup replaces the ledger table with the backup table.
func (b *PostgresBackend) RestoreBackup(ctx context.Context) error {
	return b.Transaction(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+usersTable); err != nil {
			return err
		}
		query := fmt.Sprintf("INSERT INTO %s SELECT * FROM %s", usersTable, usersBackupTable)
		_, err := tx.ExecContext(ctx, query)
		return err
	})
}

func insertUsers(ctx context.Context, tx *sqlx.Tx, users []*model.User) error {
	builder := squirrel.
		Insert(usersTable).
		Columns(userColumns...)

	for _, u := range users {
		row := fromModel(u)
		builder = builder.Values(
			row.TelegramID,
			row.DisplayName,
			row.Points,
			row.ReferralCount,
			row.ReferralState,
			row.ReferrerID,
			row.LastDailyClaim,
			row.PendingEmailCapture,
			row.Email,
			row.RewardsClaimed,
			row.TaskIDs,
			row.TaskStates,
			row.Banned,
			row.JoinDate,
			row.Seq,
		)
	}

	query, args, err := builder.PlaceholderFormat(squirrel.Dollar).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build ledger insert query: %w", err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "insert ledger users")
	}

	return nil
}

func fromModel(u *model.User) ledgerUser {
	ids := make(pq.StringArray, 0, len(u.Tasks))
	states := make(pq.StringArray, 0, len(u.Tasks))
	for id, p := range u.Tasks {
		ids = append(ids, id)
		states = append(states, p.String())
	}

	return ledgerUser{
		TelegramID:          u.TelegramID,
		DisplayName:         u.DisplayName,
		Points:              u.Points,
		ReferralCount:       u.Referrals,
		ReferralState:       u.ReferralPhase.String(),
		ReferrerID:          u.ReferrerID,
		LastDailyClaim:      u.LastDailyClaim,
		PendingEmailCapture: u.AwaitingEmail,
		Email:               u.Email,
		RewardsClaimed:      u.RewardsClaimed,
		TaskIDs:             ids,
		TaskStates:          states,
		Banned:              u.Banned,
		JoinDate:            u.JoinDate,
		Seq:                 u.Seq,
	}
}

func (r ledgerUser) toModel() (*model.User, error) {
	phase, err := model.ParsePhase(r.ReferralState)
	if err != nil {
		return nil, err
	}
	if len(r.TaskIDs) != len(r.TaskStates) {
		return nil, fmt.Errorf("task_ids and task_states differ in length")
	}

	tasks := make(map[string]model.Phase, len(r.TaskIDs))
	for i, id := range r.TaskIDs {
		p, err := model.ParsePhase(r.TaskStates[i])
		if err != nil {
			return nil, err
		}
		tasks[id] = p
	}

	return &model.User{
		TelegramID:     r.TelegramID,
		DisplayName:    r.DisplayName,
		Points:         r.Points,
		Referrals:      r.ReferralCount,
		ReferralPhase:  phase,
		ReferrerID:     r.ReferrerID,
		LastDailyClaim: r.LastDailyClaim,
		AwaitingEmail:  r.PendingEmailCapture,
		Email:          r.Email,
		RewardsClaimed: r.RewardsClaimed,
		Tasks:          tasks,
		Banned:         r.Banned,
		JoinDate:       r.JoinDate,
		Seq:            r.Seq,
	}, nil
}
