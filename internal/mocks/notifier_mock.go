package mocks

import (
	"github.com/benmeehan/loomwatch/internal/models"
	"github.com/stretchr/testify/mock"
)

// MockNotifier is a mock implementation of the monitor.Notifier interface
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(n models.Notification) {
	m.Called(n)
}
