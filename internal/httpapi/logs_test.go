package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"notify-gateway/internal/logstore"
	"notify-gateway/internal/notify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedLogStore(t *testing.T) *logstore.MemoryStore {
	t.Helper()
	store := logstore.NewMemoryStore(100)
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.Append(context.Background(), notify.Entry{
		ID:        "e1",
		Event:     notify.EventOTPSent,
		Channel:   notify.ChSMS,
		Recipient: notify.RedactedRecipient{UserID: "user_1"},
		Status:    notify.StatusSent,
		Result:    notify.Result{Success: true, Channel: notify.ChSMS, MessageID: "sms_1"},
		CreatedAt: base,
	}))
	require.NoError(t, store.Append(context.Background(), notify.Entry{
		ID:        "e2",
		Event:     notify.EventWelcome,
		Channel:   notify.ChEmail,
		Recipient: notify.RedactedRecipient{UserID: "user_2"},
		Status:    notify.StatusFailed,
		Result:    notify.Result{Success: false, Channel: notify.ChEmail, Error: "smtp down"},
		CreatedAt: base.Add(time.Hour),
	}))

	return store
}

func queryLogs(handler http.Handler, target string) *httptest.ResponseRecorder {
	request := httptest.NewRequest(http.MethodGet, target, nil)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	return recorder
}

func TestLogsHandlerQueryAll(t *testing.T) {
	handler := NewLogsHandler(seedLogStore(t))

	recorder := queryLogs(handler, "/v1/notification-logs")

	require.Equal(t, http.StatusOK, recorder.Code)

	var response struct {
		Code int              `json:"code"`
		Data LogsResponseData `json:"data"`
	}
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
	assert.Equal(t, 200, response.Code)
	assert.Equal(t, 2, response.Data.Total)
	require.Len(t, response.Data.Logs, 2)

	// 最新在前
	assert.Equal(t, "e2", response.Data.Logs[0].ID)
	assert.Equal(t, "e1", response.Data.Logs[1].ID)
}

func TestLogsHandlerFilters(t *testing.T) {
	handler := NewLogsHandler(seedLogStore(t))

	testCases := []struct {
		name        string
		target      string
		expectedIDs []string
	}{
		{
			name:        "按事件过滤",
			target:      "/v1/notification-logs?event=otp_sent",
			expectedIDs: []string{"e1"},
		},
		{
			name:        "按通道过滤",
			target:      "/v1/notification-logs?channel=email",
			expectedIDs: []string{"e2"},
		},
		{
			name:        "按用户过滤",
			target:      "/v1/notification-logs?user_id=user_1",
			expectedIDs: []string{"e1"},
		},
		{
			name:        "按状态过滤",
			target:      "/v1/notification-logs?status=failed",
			expectedIDs: []string{"e2"},
		},
		{
			name:        "limit 截断",
			target:      "/v1/notification-logs?limit=1",
			expectedIDs: []string{"e2"},
		},
		{
			name:        "Unix 秒时间下界",
			target:      "/v1/notification-logs?start=1785580200", // 2026-08-01T10:30:00Z
			expectedIDs: []string{"e2"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			recorder := queryLogs(handler, tc.target)
			require.Equal(t, http.StatusOK, recorder.Code)

			var response struct {
				Data LogsResponseData `json:"data"`
			}
			require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))

			ids := make([]string, 0, len(response.Data.Logs))
			for _, entry := range response.Data.Logs {
				ids = append(ids, entry.ID)
			}
			assert.Equal(t, tc.expectedIDs, ids)
		})
	}
}

func TestLogsHandlerInvalidParams(t *testing.T) {
	handler := NewLogsHandler(seedLogStore(t))

	recorder := queryLogs(handler, "/v1/notification-logs?limit=abc")
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder = queryLogs(handler, "/v1/notification-logs?start=not-a-time")
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestLogsHandlerRFC3339Time(t *testing.T) {
	handler := NewLogsHandler(seedLogStore(t))

	recorder := queryLogs(handler, "/v1/notification-logs?end=2026-08-01T10:30:00Z")
	require.Equal(t, http.StatusOK, recorder.Code)

	var response struct {
		Data LogsResponseData `json:"data"`
	}
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
	require.Len(t, response.Data.Logs, 1)
	assert.Equal(t, "e1", response.Data.Logs[0].ID)
}
