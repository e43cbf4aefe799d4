package mocks

import (
	"context"
	"time"

	"github.com/benmeehan/loomwatch/internal/models"
	"github.com/stretchr/testify/mock"
)

// MockHistory is a mock implementation of the storage.History interface
type MockHistory struct {
	mock.Mock
}

func (m *MockHistory) SaveCycle(ctx context.Context, cycle models.DowntimeCycle) error {
	args := m.Called(ctx, cycle)
	return args.Error(0)
}

func (m *MockHistory) RecordEvent(ctx context.Context, event models.TransitionEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockHistory) Cycle(ctx context.Context, id string) (models.DowntimeCycle, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(models.DowntimeCycle), args.Error(1)
}

func (m *MockHistory) CyclesByMachine(ctx context.Context, machine string, from, to time.Time) ([]models.DowntimeCycle, error) {
	args := m.Called(ctx, machine, from, to)
	cycles, _ := args.Get(0).([]models.DowntimeCycle)
	return cycles, args.Error(1)
}

func (m *MockHistory) CyclesByPeriod(ctx context.Context, from, to time.Time) ([]models.DowntimeCycle, error) {
	args := m.Called(ctx, from, to)
	cycles, _ := args.Get(0).([]models.DowntimeCycle)
	return cycles, args.Error(1)
}

func (m *MockHistory) RecentEvents(ctx context.Context, machine string, limit int) ([]models.TransitionEvent, error) {
	args := m.Called(ctx, machine, limit)
	events, _ := args.Get(0).([]models.TransitionEvent)
	return events, args.Error(1)
}

func (m *MockHistory) Close() error {
	args := m.Called()
	return args.Error(0)
}
