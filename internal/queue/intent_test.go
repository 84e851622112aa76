package queue_test

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wallseat/payment-transaction-model/internal/domain"
	"github.com/wallseat/payment-transaction-model/internal/queue"
)

func TestDecodeIntentPreservesAmount(t *testing.T) {
	// 0.10 is the classic binary-float casualty; it must survive the wire
	// exactly as written.
	intent := domain.SettlementIntent{
		TransactionID: uuid.New(),
		SrcID:         7,
		DestID:        9,
		Amount:        decimal.RequireFromString("0.10"),
	}

	body, err := json.Marshal(intent)
	require.NoError(t, err)

	decoded, err := queue.DecodeIntent(body)
	require.NoError(t, err)

	assert.Equal(t, intent.TransactionID, decoded.TransactionID)
	assert.Equal(t, intent.SrcID, decoded.SrcID)
	assert.Equal(t, intent.DestID, decoded.DestID)
	assert.True(t, decoded.Amount.Equal(intent.Amount))
	assert.Equal(t, "0.1", decoded.Amount.String())
}

func TestDecodeIntentMalformed(t *testing.T) {
	_, err := queue.DecodeIntent([]byte(`{"transaction_id": 12}`))
	assert.Error(t, err)

	_, err = queue.DecodeIntent([]byte("not json at all"))
	assert.Error(t, err)
}
