package repository

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"points_bot/internal/model"
	"points_bot/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// fileRecord is the persisted layout of one user in the ledger file, which
// is a JSON object keyed by the decimal user id.
type fileRecord struct {
	DisplayName         string            `json:"display_name"`
	Points              int               `json:"points"`
	ReferralCount       int               `json:"referral_count"`
	ReferralState       string            `json:"referral_state"`
	ReferrerID          *int64            `json:"referrer_id,omitempty"`
	LastDailyClaim      string            `json:"last_daily_claim"`
	PendingEmailCapture bool              `json:"pending_email_capture"`
	Email               string            `json:"email"`
	RewardsClaimed      int               `json:"rewards_claimed"`
	TaskState           map[string]string `json:"task_state,omitempty"`
	Banned              bool              `json:"banned"`
	JoinDate            time.Time         `json:"join_date"`
	Seq                 int64             `json:"seq"`
}

type FileBackend struct {
	path       string
	backupPath string
}

func NewFileBackend(path, backupPath string) *FileBackend {
	if backupPath == "" {
		backupPath = path + ".bak"
	}
	return &FileBackend{
		path:       path,
		backupPath: backupPath,
	}
}

func (b *FileBackend) Path() string {
	return b.path
}

func (b *FileBackend) BackupPath() string {
	return b.backupPath
}

// Load reads the ledger file. A missing file is an empty ledger. A file that
// cannot be decoded is renamed aside so the next save does not rotate it
// into the backup slot, and ErrCorrupt is returned.
func (b *FileBackend) Load(_ context.Context) ([]*model.User, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "read ledger file %s", b.path)
	}

	users, err := decodeLedger(data)
	if err != nil {
		quarantine := fmt.Sprintf("%s.corrupt-%d", b.path, time.Now().Unix())
		if renameErr := os.Rename(b.path, quarantine); renameErr != nil {
			logger.Logger().Error("failed to quarantine corrupt ledger file",
				zap.String("path", b.path),
				zap.Error(renameErr))
		} else {
			logger.Logger().Warn("corrupt ledger file moved aside",
				zap.String("path", b.path),
				zap.String("quarantine", quarantine))
		}
		return nil, errors.Wrapf(ErrCorrupt, "decode %s: %v", b.path, err)
	}

	return users, nil
}

// Save copies the current file to the backup path, then replaces it with
// the new contents through a temp file and rename.
func (b *FileBackend) Save(_ context.Context, users []*model.User) error {
	data, err := encodeLedger(users)
	if err != nil {
		return errors.Wrap(err, "encode ledger")
	}

	if _, err := os.Stat(b.path); err == nil {
		if err := copyFile(b.path, b.backupPath); err != nil {
			return errors.Wrap(err, "backup ledger file")
		}
	} else if !os.IsNotExist(err) {
		return errors.Wrapf(err, "stat ledger file %s", b.path)
	}

	return writeFileAtomic(b.path, data)
}

// RestoreBackup replaces the ledger file with its backup copy.
func (b *FileBackend) RestoreBackup(_ context.Context) error {
	if _, err := os.Stat(b.backupPath); err != nil {
		return errors.Wrapf(err, "stat backup %s", b.backupPath)
	}

	data, err := os.ReadFile(b.backupPath)
	if err != nil {
		return errors.Wrapf(err, "read backup %s", b.backupPath)
	}
	if _, err := decodeLedger(data); err != nil {
		return errors.Wrapf(ErrCorrupt, "backup %s: %v", b.backupPath, err)
	}

	return writeFileAtomic(b.path, data)
}

func encodeLedger(users []*model.User) ([]byte, error) {
	records := make(map[string]fileRecord, len(users))
	for _, u := range users {
		tasks := make(map[string]string, len(u.Tasks))
		for id, p := range u.Tasks {
			tasks[id] = p.String()
		}
		records[strconv.FormatInt(u.TelegramID, 10)] = fileRecord{
			DisplayName:         u.DisplayName,
			Points:              u.Points,
			ReferralCount:       u.Referrals,
			ReferralState:       u.ReferralPhase.String(),
			ReferrerID:          u.ReferrerID,
			LastDailyClaim:      u.LastDailyClaim,
			PendingEmailCapture: u.AwaitingEmail,
			Email:               u.Email,
			RewardsClaimed:      u.RewardsClaimed,
			TaskState:           tasks,
			Banned:              u.Banned,
			JoinDate:            u.JoinDate,
			Seq:                 u.Seq,
		}
	}

	return json.MarshalIndent(records, "", "    ")
}

func decodeLedger(data []byte) ([]*model.User, error) {
	var records map[string]fileRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}

	users := make([]*model.User, 0, len(records))
	for key, r := range records {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user id %q: %w", key, err)
		}

		phase, err := model.ParsePhase(r.ReferralState)
		if err != nil {
			return nil, fmt.Errorf("user %d: %w", id, err)
		}

		tasks := make(map[string]model.Phase, len(r.TaskState))
		for taskID, s := range r.TaskState {
			p, err := model.ParsePhase(s)
			if err != nil {
				return nil, fmt.Errorf("user %d task %s: %w", id, taskID, err)
			}
			tasks[taskID] = p
		}

		users = append(users, &model.User{
			TelegramID:     id,
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
		})
	}

	sort.Slice(users, func(i, j int) bool { return users[i].Seq < users[j].Seq })

	return users, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), dst)
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "write temp file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "sync temp file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp file")
	}

	return errors.Wrap(os.Rename(tmp.Name(), path), "replace ledger file")
}
