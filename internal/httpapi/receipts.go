package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"notify-gateway/internal/notify"

	"github.com/google/uuid"
)

// ==================== 存储接口 ====================

// ReceiptStore 回执处理所需的日志存储能力
// 日志条目不可修改,回执以追加 delivered 状态新条目的方式记录
type ReceiptStore interface {
	FindByMessageID(ctx context.Context, messageID string) (notify.Entry, bool)
	Append(ctx context.Context, entry notify.Entry) error
}

// ==================== 回执处理器 ====================

// ReceiptsHandler 送达回执处理器
// POST /v1/notification-receipts
// 外部通道(短信网关、推送网关)上报送达确认,关联原始发送记录
type ReceiptsHandler struct {
	store       ReceiptStore
	currentTime func() time.Time
}

// NewReceiptsHandler 创建回执处理器
func NewReceiptsHandler(store ReceiptStore) *ReceiptsHandler {
	return &ReceiptsHandler{
		store:       store,
		currentTime: time.Now,
	}
}

// ReceiptRequest 送达回执请求
type ReceiptRequest struct {
	MessageID   string `json:"message_id"`
	DeliveredAt int64  `json:"delivered_at,omitempty"` // Unix 秒,缺省为当前时间
}

// ReceiptResponseData 回执响应数据
type ReceiptResponseData struct {
	EntryID string `json:"entry_id"`
}

// ServeHTTP 实现 http.Handler 接口
func (handler *ReceiptsHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	setCORS(writer, "POST, OPTIONS")

	if request.Method == http.MethodOptions {
		return
	}

	if request.Method != http.MethodPost {
		writeError(writer, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	request.Body = http.MaxBytesReader(writer, request.Body, maxRequestBodySize)
	defer request.Body.Close()

	var receipt ReceiptRequest
	if err := json.NewDecoder(request.Body).Decode(&receipt); err != nil {
		writeError(writer, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if receipt.MessageID == "" {
		writeError(writer, "message_id is required", http.StatusBadRequest)
		return
	}

	original, found := handler.store.FindByMessageID(request.Context(), receipt.MessageID)
	if !found {
		writeError(writer, "no send record found for message_id", http.StatusNotFound)
		return
	}

	entry := handler.buildDeliveredEntry(original, receipt)
	if err := handler.store.Append(request.Context(), entry); err != nil {
		log.Printf("[RECEIPTS_HANDLER] 回执落日志失败: %v", err)
		writeError(writer, "record receipt failed", http.StatusInternalServerError)
		return
	}

	log.Printf("[RECEIPTS_HANDLER] 送达回执已记录: message_id=%s, entry=%s", receipt.MessageID, entry.ID)
	writeSuccess(writer, ReceiptResponseData{EntryID: entry.ID})
}

// buildDeliveredEntry 基于原始发送记录构造 delivered 状态的新条目
// 事件、通道与脱敏收件人沿用原条目,时间取回执时间
func (handler *ReceiptsHandler) buildDeliveredEntry(original notify.Entry, receipt ReceiptRequest) notify.Entry {
	deliveredAt := handler.currentTime()
	if receipt.DeliveredAt > 0 {
		deliveredAt = time.Unix(receipt.DeliveredAt, 0)
	}

	return notify.Entry{
		ID:        uuid.NewString(),
		Event:     original.Event,
		Channel:   original.Channel,
		Recipient: original.Recipient,
		Status:    notify.StatusDelivered,
		Result: notify.Result{
			Success:   true,
			Channel:   original.Channel,
			MessageID: receipt.MessageID,
			Timestamp: deliveredAt,
		},
		CreatedAt: handler.currentTime(),
	}
}
