package httpapi

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"notify-gateway/internal/logstore"
	"notify-gateway/internal/notify"
)

// 查询参数错误
var (
	errInvalidLimit = errors.New("invalid limit parameter")
	errInvalidTime  = errors.New("invalid time parameter, expected unix seconds or RFC3339")
)

// ==================== 存储接口 ====================

// LogStore 审计日志查询接口
type LogStore interface {
	Query(ctx context.Context, filter logstore.QueryFilter) ([]notify.Entry, error)
}

// ==================== 日志查询处理器 ====================

// LogsHandler 审计日志查询处理器
// GET /v1/notification-logs
type LogsHandler struct {
	store LogStore
}

// NewLogsHandler 创建日志查询处理器
func NewLogsHandler(store LogStore) *LogsHandler {
	return &LogsHandler{store: store}
}

// LogsResponseData 日志查询响应数据
type LogsResponseData struct {
	Total int            `json:"total"`
	Logs  []notify.Entry `json:"logs"`
}

// ServeHTTP 实现 http.Handler 接口
// 支持的查询参数: event, channel, user_id, role, status, start, end, limit
// start/end 接受 Unix 秒或 RFC3339 时间
func (handler *LogsHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	setCORS(writer, "GET, OPTIONS")

	if request.Method == http.MethodOptions {
		return
	}

	if request.Method != http.MethodGet {
		writeError(writer, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	filter, err := parseLogsFilter(request)
	if err != nil {
		writeError(writer, err.Error(), http.StatusBadRequest)
		return
	}

	entries, err := handler.store.Query(request.Context(), filter)
	if err != nil {
		log.Printf("[LOGS_HANDLER] 查询失败: %v", err)
		writeError(writer, "query logs failed", http.StatusInternalServerError)
		return
	}

	writeSuccess(writer, LogsResponseData{
		Total: len(entries),
		Logs:  entries,
	})
}

// ==================== 参数解析 ====================

// parseLogsFilter 从查询参数构建过滤器
func parseLogsFilter(request *http.Request) (logstore.QueryFilter, error) {
	query := request.URL.Query()

	filter := logstore.QueryFilter{
		Event:   notify.Event(query.Get("event")),
		Channel: notify.Channel(query.Get("channel")),
		UserID:  query.Get("user_id"),
		Role:    query.Get("role"),
		Status:  notify.EntryStatus(query.Get("status")),
	}

	startDate, err := parseTimeParam(query.Get("start"))
	if err != nil {
		return logstore.QueryFilter{}, err
	}
	filter.StartDate = startDate

	endDate, err := parseTimeParam(query.Get("end"))
	if err != nil {
		return logstore.QueryFilter{}, err
	}
	filter.EndDate = endDate

	if limitValue := query.Get("limit"); limitValue != "" {
		limit, parseErr := strconv.Atoi(limitValue)
		if parseErr != nil || limit < 0 {
			return logstore.QueryFilter{}, errInvalidLimit
		}
		filter.Limit = limit
	}

	return filter, nil
}

// parseTimeParam 解析时间参数
// 优先按 Unix 秒解析,失败后尝试 RFC3339
func parseTimeParam(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}

	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		parsed := time.Unix(seconds, 0)
		return &parsed, nil
	}

	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return &parsed, nil
	}

	return nil, errInvalidTime
}
