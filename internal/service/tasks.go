package service

import (
	"context"
	"fmt"
	"strings"

	"points_bot/internal/model"
	"points_bot/internal/repository"
	"points_bot/pkg/logger"

	"go.uber.org/zap"
)

type TaskService struct {
	ledger Ledger
	tasks  []model.Task
}

func NewTaskService(ledger Ledger, tasks []model.Task) *TaskService {
	return &TaskService{
		ledger: ledger,
		tasks:  tasks,
	}
}

func (s *TaskService) List() []model.Task {
	out := make([]model.Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

func (s *TaskService) Task(taskID string) (model.Task, bool) {
	for _, t := range s.tasks {
		if t.ID == taskID {
			return t, true
		}
	}
	return model.Task{}, false
}

// MatchProof finds the task whose proof marker appears in text.
func (s *TaskService) MatchProof(text string) (model.Task, bool) {
	for _, t := range s.tasks {
		if t.ProofMarker != "" && strings.Contains(text, t.ProofMarker) {
			return t, true
		}
	}
	return model.Task{}, false
}

func (s *TaskService) Info(ctx context.Context, telegramID int64, taskID string) (model.Outcome, error) {
	task, ok := s.Task(taskID)
	if !ok {
		return nil, ErrTaskNotFound
	}

	var phase model.Phase
	err := s.ledger.View(ctx, func(tx *repository.Tx) error {
		user, err := lookupUser(tx, telegramID)
		if err != nil {
			return err
		}
		phase = user.TaskPhase(taskID)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get task status: %w", err)
	}

	return model.TaskInfo{Task: task, Phase: phase}, nil
}

// SubmitProof advances the task protocol of one user: the first submission
// registers a click, the second completes the task and awards its reward,
// later submissions change nothing.
func (s *TaskService) SubmitProof(ctx context.Context, telegramID int64, taskID, proof string) (model.Outcome, error) {
	task, ok := s.Task(taskID)
	if !ok {
		return nil, ErrTaskNotFound
	}

	var outcome model.Outcome
	err := s.ledger.Update(ctx, func(tx *repository.Tx) error {
		user, err := lookupUser(tx, telegramID)
		if err != nil {
			return err
		}

		phase := user.TaskPhase(taskID)
		protocol := twoPhase{
			award: func() { user.Points += task.Reward },
		}

		switch protocol.advance(&phase) {
		case stepRegistered:
			outcome = model.TaskFirstClick{Task: task}
		case stepConfirmed:
			outcome = model.TaskCompleted{
				Task:    task,
				Awarded: task.Reward,
				Balance: user.Points,
			}
		default:
			outcome = model.TaskAlreadyCompleted{Task: task}
			return nil
		}

		user.SetTaskPhase(taskID, phase)
		return tx.Put(user)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to submit task proof: %w", err)
	}

	logger.Logger().Debug("task proof submitted",
		zap.Int64("telegram_id", telegramID),
		zap.String("task_id", taskID),
		zap.String("outcome", outcome.Kind()),
		zap.Int("proof_length", len(proof)))

	return outcome, nil
}
