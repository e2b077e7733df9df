package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"notify-gateway/internal/inbox"
)

// ==================== 收件箱处理器 ====================

// InboxHandler 收件箱处理器
// GET /v1/inbox 查询,POST /v1/inbox/read 标记已读
type InboxHandler struct {
	store inbox.Store
}

// NewInboxHandler 创建收件箱处理器
func NewInboxHandler(store inbox.Store) *InboxHandler {
	return &InboxHandler{store: store}
}

// InboxListData 收件箱查询响应数据
type InboxListData struct {
	Total    int64           `json:"total"`
	Messages []inbox.Message `json:"messages"`
}

// InboxReadRequest 标记已读请求
type InboxReadRequest struct {
	UserID string   `json:"user_id"`
	IDs    []string `json:"ids"`
}

// HandleQuery 处理收件箱查询
// 查询参数: user_id(必填), status(all|unread|read), offset, limit
func (handler *InboxHandler) HandleQuery(writer http.ResponseWriter, request *http.Request) {
	setCORS(writer, "GET, OPTIONS")

	if request.Method == http.MethodOptions {
		return
	}

	if request.Method != http.MethodGet {
		writeError(writer, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := request.URL.Query()
	userID := query.Get("user_id")
	if userID == "" {
		writeError(writer, "user_id is required", http.StatusBadRequest)
		return
	}

	status := query.Get("status")
	offset := parseIntWithDefault(query.Get("offset"), 0)
	limit := parseIntWithDefault(query.Get("limit"), 20)
	if limit > 100 {
		limit = 100
	}

	messages, total, err := handler.store.List(request.Context(), userID, status, offset, limit)
	if err != nil {
		log.Printf("[INBOX_HANDLER] 查询失败: %v", err)
		writeError(writer, "query inbox failed", http.StatusInternalServerError)
		return
	}

	writeSuccess(writer, InboxListData{
		Total:    total,
		Messages: messages,
	})
}

// HandleMarkRead 处理标记已读
func (handler *InboxHandler) HandleMarkRead(writer http.ResponseWriter, request *http.Request) {
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

	var readRequest InboxReadRequest
	if err := json.NewDecoder(request.Body).Decode(&readRequest); err != nil {
		writeError(writer, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if readRequest.UserID == "" {
		writeError(writer, "user_id is required", http.StatusBadRequest)
		return
	}

	if len(readRequest.IDs) == 0 {
		writeError(writer, "ids is required", http.StatusBadRequest)
		return
	}

	updated, err := handler.store.MarkRead(request.Context(), readRequest.UserID, readRequest.IDs)
	if err != nil {
		log.Printf("[INBOX_HANDLER] 标记已读失败: %v", err)
		writeError(writer, "mark read failed", http.StatusInternalServerError)
		return
	}

	writeSuccess(writer, map[string]int{"updated": updated})
}

// ==================== 工具函数 ====================

// parseIntWithDefault 解析整数，失败则返回默认值
func parseIntWithDefault(value string, defaultValue int64) int64 {
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil || parsed < 0 {
		return defaultValue
	}

	return parsed
}
