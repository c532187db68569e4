package repository

import (
	"context"
	"testing"
	"time"

	"points_bot/internal/model"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_GetDatabaseURL(t *testing.T) {
	cfg := Config{Host: "db", Port: "5432", User: "bot", Password: "secret", Name: "ledger"}

	assert.Equal(t, "postgres://bot:secret@db:5432/ledger?sslmode=disable", cfg.GetDatabaseURL())
}

func TestLedgerUser_RoundTrip(t *testing.T) {
	for _, u := range sampleUsers() {
		row := fromModel(u)
		assert.Equal(t, len(row.TaskIDs), len(row.TaskStates))

		back, err := row.toModel()
		require.NoError(t, err)
		assert.Equal(t, u, back)
	}
}

func TestLedgerUser_ToModelRejectsBadRows(t *testing.T) {
	tests := []struct {
		name string
		row  ledgerUser
	}{
		{
			name: "Unknown referral state",
			row:  ledgerUser{TelegramID: 1, ReferralState: "halfway"},
		},
		{
			name: "Task arrays of different length",
			row: ledgerUser{
				TelegramID:    1,
				ReferralState: "none",
				TaskIDs:       pq.StringArray{"midas", "other"},
				TaskStates:    pq.StringArray{"clicked"},
			},
		},
		{
			name: "Unknown task state",
			row: ledgerUser{
				TelegramID:    1,
				ReferralState: "none",
				TaskIDs:       pq.StringArray{"midas"},
				TaskStates:    pq.StringArray{"maybe"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.row.toModel()
			assert.Error(t, err)
		})
	}
}

func TestDecodeRows(t *testing.T) {
	good := fromModel(sampleUsers()[0])

	users, err := decodeRows([]ledgerUser{good})
	require.NoError(t, err)
	require.Len(t, users, 1)

	bad := good
	bad.TelegramID = 99
	bad.ReferralState = "halfway"

	users, err = decodeRows([]ledgerUser{good, bad})
	assert.ErrorIs(t, err, ErrCorrupt)
	assert.Nil(t, users)
}

func TestQuarantineTable(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	table := quarantineTable(at)
	assert.Equal(t, "ledger_users_corrupt_1714564800", table)
	assert.NotEqual(t, usersBackupTable, table)
}

func TestPostgresBackend_SaveRefusesUnloadedTable(t *testing.T) {
	b := &PostgresBackend{now: time.Now, unsafe: true}

	err := b.Save(context.Background(), sampleUsers())
	assert.ErrorIs(t, err, ErrNotLoaded)

	b.setUnsafe(false)
	assert.NoError(t, b.checkSafe())
}

func TestStore_UnloadedPostgresTableStaysDivergent(t *testing.T) {
	b := &PostgresBackend{now: time.Now, unsafe: true}
	store := &Store{backend: b, users: map[int64]*model.User{}}

	err := store.Update(context.Background(), func(tx *Tx) error {
		_, err := tx.Create(1, "alice", time.Now())
		return err
	})
	require.NoError(t, err)

	health := store.Health()
	assert.True(t, health.Divergent)
	assert.Contains(t, health.LastError, "refusing to overwrite")
}
