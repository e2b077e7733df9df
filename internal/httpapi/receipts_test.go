package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"notify-gateway/internal/logstore"
	"notify-gateway/internal/notify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReceiptsHandlerAppendsDeliveredEntry(t *testing.T) {
	ctx := context.Background()
	store := logstore.NewMemoryStore(100)
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.Append(ctx, notify.Entry{
		ID:      "e1",
		Event:   notify.EventOTPSent,
		Channel: notify.ChSMS,
		Recipient: notify.RedactedRecipient{
			UserID: "user_1",
			Phone:  "***5678",
		},
		Status:    notify.StatusSent,
		Result:    notify.Result{Success: true, Channel: notify.ChSMS, MessageID: "sms_1", Timestamp: base},
		CreatedAt: base,
	}))

	handler := NewReceiptsHandler(store)

	recorder := postJSON(handler, "/v1/notification-receipts", `{"message_id": "sms_1", "delivered_at": 1785582000}`)

	require.Equal(t, http.StatusOK, recorder.Code)

	var response struct {
		Data ReceiptResponseData `json:"data"`
	}
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
	assert.NotEmpty(t, response.Data.EntryID)

	// 原条目不被修改,追加一条 delivered 状态的新条目
	entries, err := store.Query(ctx, logstore.QueryFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	delivered, err := store.Query(ctx, logstore.QueryFilter{Status: notify.StatusDelivered})
	require.NoError(t, err)
	require.Len(t, delivered, 1)

	entry := delivered[0]
	assert.Equal(t, response.Data.EntryID, entry.ID)
	assert.Equal(t, notify.EventOTPSent, entry.Event)
	assert.Equal(t, notify.ChSMS, entry.Channel)
	assert.Equal(t, "user_1", entry.Recipient.UserID)
	assert.Equal(t, "***5678", entry.Recipient.Phone)
	assert.Equal(t, "sms_1", entry.Result.MessageID)
	assert.Equal(t, time.Unix(1785582000, 0), entry.Result.Timestamp)

	original, err := store.Query(ctx, logstore.QueryFilter{Status: notify.StatusSent})
	require.NoError(t, err)
	require.Len(t, original, 1)
	assert.Equal(t, "e1", original[0].ID)
}

func TestReceiptsHandlerUnknownMessageID(t *testing.T) {
	handler := NewReceiptsHandler(logstore.NewMemoryStore(100))

	recorder := postJSON(handler, "/v1/notification-receipts", `{"message_id": "sms_missing"}`)

	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestReceiptsHandlerValidation(t *testing.T) {
	handler := NewReceiptsHandler(logstore.NewMemoryStore(100))

	recorder := postJSON(handler, "/v1/notification-receipts", `{not json`)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder = postJSON(handler, "/v1/notification-receipts", `{}`)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Contains(t, decodeResponse(t, recorder).Message, "message_id is required")
}
