// Package httpapi 提供基于 net/http 的 API 处理器
// 路由注册与中间件由 cmd/server 的 gin 路由层负责
package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"notify-gateway/internal/notify"
)

// ==================== 常量定义 ====================

const (
	maxRequestBodySize = 1 << 20 // 1MB
)

// ==================== 服务接口 ====================

// Service 通知服务统一接口
// 解耦 HTTP 层与业务实现
type Service interface {
	Send(ctx context.Context, payload notify.Payload) []notify.Result
	SendAsync(ctx context.Context, payload notify.Payload) (string, error)
}

// ==================== 响应类型 ====================

// Response 统一的 API 响应格式
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"msg"`
	Data    interface{} `json:"data,omitempty"`
}

// SendResponseData 同步发送响应数据
type SendResponseData struct {
	Results []notify.Result `json:"results"`
}

// AsyncSendResponseData 异步发送响应数据
type AsyncSendResponseData struct {
	RequestID string `json:"request_id"`
}

// ==================== 发送处理器 ====================

// SendHandler 同步发送处理器
// POST /v1/notifications
type SendHandler struct {
	service Service
}

// NewSendHandler 创建同步发送处理器
func NewSendHandler(service Service) *SendHandler {
	return &SendHandler{service: service}
}

// ServeHTTP 实现 http.Handler 接口
// 通道扇出本身不失败,单通道的失败体现在对应的结果项里,因此始终返回 200
func (handler *SendHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	setCORS(writer, "POST, OPTIONS")

	if request.Method == http.MethodOptions {
		return
	}

	if request.Method != http.MethodPost {
		writeError(writer, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	payload, ok := decodeAndValidatePayload(writer, request)
	if !ok {
		return
	}

	log.Printf("[SEND_HANDLER] 处理通知请求: event=%s, channels=%v", payload.Event, payload.Channels)

	results := handler.service.Send(request.Context(), payload)
	writeSuccess(writer, SendResponseData{Results: results})
}

// AsyncSendHandler 异步发送处理器
// POST /v1/notifications/async
type AsyncSendHandler struct {
	service Service
}

// NewAsyncSendHandler 创建异步发送处理器
func NewAsyncSendHandler(service Service) *AsyncSendHandler {
	return &AsyncSendHandler{service: service}
}

// ServeHTTP 实现 http.Handler 接口
// 请求入队成功即返回 202,真实投递结果之后通过日志查询接口获取
func (handler *AsyncSendHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	setCORS(writer, "POST, OPTIONS")

	if request.Method == http.MethodOptions {
		return
	}

	if request.Method != http.MethodPost {
		writeError(writer, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	payload, ok := decodeAndValidatePayload(writer, request)
	if !ok {
		return
	}

	requestID, err := handler.service.SendAsync(request.Context(), payload)
	if err != nil {
		log.Printf("[ASYNC_HANDLER] 入队失败: %v", err)
		writeError(writer, "async dispatch failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	log.Printf("[ASYNC_HANDLER] 请求已入队: request_id=%s, event=%s", requestID, payload.Event)

	writeJSON(writer, http.StatusAccepted, Response{
		Code:    http.StatusAccepted,
		Message: "accepted",
		Data:    AsyncSendResponseData{RequestID: requestID},
	})
}

// ==================== 请求解析与校验 ====================

// decodeAndValidatePayload 解析并校验通知请求
// 校验失败时写入错误响应并返回 false
func decodeAndValidatePayload(writer http.ResponseWriter, request *http.Request) (notify.Payload, bool) {
	request.Body = http.MaxBytesReader(writer, request.Body, maxRequestBodySize)
	defer request.Body.Close()

	var payload notify.Payload
	if err := json.NewDecoder(request.Body).Decode(&payload); err != nil {
		writeError(writer, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return notify.Payload{}, false
	}

	if payload.Event == "" {
		writeError(writer, "event is required", http.StatusBadRequest)
		return notify.Payload{}, false
	}

	if len(payload.Channels) == 0 {
		writeError(writer, notify.ErrEmptyChannels.Error(), http.StatusBadRequest)
		return notify.Payload{}, false
	}

	return payload, true
}

// ==================== 响应辅助函数 ====================

// setCORS 设置跨域响应头
func setCORS(writer http.ResponseWriter, allowedMethods string) {
	writer.Header().Set("Access-Control-Allow-Origin", "*")
	writer.Header().Set("Access-Control-Allow-Methods", allowedMethods)
	writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept")
}

// writeJSON 写入 JSON 响应
func writeJSON(writer http.ResponseWriter, statusCode int, response Response) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(statusCode)
	_ = json.NewEncoder(writer).Encode(response)
}

// writeSuccess 写入成功响应
func writeSuccess(writer http.ResponseWriter, data interface{}) {
	writeJSON(writer, http.StatusOK, Response{
		Code:    200,
		Message: "success",
		Data:    data,
	})
}

// writeError 写入错误响应
func writeError(writer http.ResponseWriter, message string, statusCode int) {
	writeJSON(writer, statusCode, Response{
		Code:    statusCode,
		Message: message,
		Data:    nil,
	})
}
