package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNewAlertDefaults(t *testing.T) {
	customerID := uuid.New()
	a := NewAlert(customerID, "ALERT-0001")

	assert.Equal(t, customerID, a.CustomerID)
	assert.Equal(t, "ALERT-0001", a.AlertID)
	assert.Equal(t, AlertStatusOpen, a.Status)
	assert.Equal(t, 1, a.EscalationLevel)
	assert.Equal(t, 3, a.Priority)
	assert.Equal(t, a.CreatedAt, a.UpdatedAt)
	assert.Equal(t, a.CreatedAt, a.TriggeredAt)
}
