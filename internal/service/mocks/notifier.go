package mocks

import (
	"context"

	"points_bot/internal/model"

	"github.com/stretchr/testify/mock"
)

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, chatID int64, notice model.Outcome) error {
	args := m.Called(ctx, chatID, notice)
	return args.Error(0)
}
