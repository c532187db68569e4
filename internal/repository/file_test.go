package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"points_bot/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleUsers() []*model.User {
	referrer := int64(2)

	alice := model.NewUser(1, "alice", joined, 1)
	alice.Points = 155
	alice.ReferralPhase = model.PhaseConfirmed
	alice.ReferrerID = &referrer
	alice.LastDailyClaim = "2024-03-02"
	alice.AwaitingEmail = true
	alice.SetTaskPhase("midas", model.TaskPhaseClicked)

	bob := model.NewUser(2, "bob", joined, 2)
	bob.Referrals = 1
	bob.Email = "bob@example.com"
	bob.RewardsClaimed = 3
	bob.Banned = true

	return []*model.User{alice, bob}
}

func TestFileBackend_SaveLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "users.json")
	backend := NewFileBackend(path, "")

	users, err := backend.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)

	require.NoError(t, backend.Save(ctx, sampleUsers()))

	loaded, err := backend.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleUsers(), loaded)

	_, err = os.Stat(backend.BackupPath())
	assert.True(t, os.IsNotExist(err), "first save has nothing to back up")
}

func TestFileBackend_SaveKeepsBackup(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "users.json")
	backend := NewFileBackend(path, "")

	first := sampleUsers()
	require.NoError(t, backend.Save(ctx, first))

	second := sampleUsers()
	second[0].Points = 0
	require.NoError(t, backend.Save(ctx, second))

	backup, err := decodeFile(backend.BackupPath())
	require.NoError(t, err)
	assert.Equal(t, 155, backup[0].Points)

	current, err := backend.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, current[0].Points)

	require.NoError(t, backend.RestoreBackup(ctx))

	restored, err := backend.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, restored)
}

func TestFileBackend_LoadCorruptFileIsQuarantined(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "users.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"1": {"points": `), 0o600))

	backend := NewFileBackend(path, "")

	_, err := backend.Load(ctx)
	assert.ErrorIs(t, err, ErrCorrupt)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	quarantined, err := filepath.Glob(filepath.Join(dir, "users.json.corrupt-*"))
	require.NoError(t, err)
	assert.Len(t, quarantined, 1)

	// the store starts empty and the next save writes a fresh file
	store := NewStore(ctx, backend)
	err = store.Update(ctx, func(tx *Tx) error {
		_, err := tx.Create(7, "gina", joined)
		return err
	})
	require.NoError(t, err)
	assert.Zero(t, store.Health().PersistFailures)

	loaded, err := backend.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, int64(7), loaded[0].TelegramID)
}

func TestFileBackend_RestoreRejectsCorruptBackup(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "users.json")
	backupPath := filepath.Join(dir, "users.backup.json")
	require.NoError(t, os.WriteFile(backupPath, []byte("not json"), 0o600))

	backend := NewFileBackend(path, backupPath)

	assert.ErrorIs(t, backend.RestoreBackup(ctx), ErrCorrupt)

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestFileBackend_LoadLegacyStateNames(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "users.json")
	data := `{
    "42": {
        "display_name": "henry",
        "points": 20,
        "referral_count": 0,
        "referral_state": "pending",
        "task_state": {"midas": "completed"},
        "join_date": "2024-03-01T10:00:00Z"
    }
}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	users, err := NewFileBackend(path, "").Load(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)

	assert.Equal(t, model.PhasePending, users[0].ReferralPhase)
	assert.Equal(t, model.TaskPhaseCompleted, users[0].TaskPhase("midas"))
	assert.Equal(t, int64(0), users[0].Seq)
}

func decodeFile(path string) ([]*model.User, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return decodeLedger(data)
}
