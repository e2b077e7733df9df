// Package template 实现 (事件, 通道) 到渲染函数的映射
// 渲染器是变量包的纯函数: 不做 I/O,不依赖可变全局状态
package template

import (
	"fmt"
	"regexp"

	"notify-gateway/internal/notify"
)

// ==================== 类型定义 ====================

// RenderFunc 模板渲染函数
// 输入已合并的变量包,输出通道内容
type RenderFunc func(variables map[string]string) notify.Content

// templateKey 模板表的键
type templateKey struct {
	event   notify.Event
	channel notify.Channel
}

// Registry 模板注册表
// 每个已识别的 (event, channel) 必须注册模板,未注册按解析失败处理
type Registry struct {
	templates map[templateKey]registration
}

// registration 一条模板注册信息
type registration struct {
	render   RenderFunc
	defaults map[string]string
}

// ==================== 构造与注册 ====================

// NewRegistry 创建空的模板注册表
func NewRegistry() *Registry {
	return &Registry{
		templates: make(map[templateKey]registration),
	}
}

// Register 注册模板
// defaults 为模板声明的变量默认值,解析时被请求变量同名覆盖
func (r *Registry) Register(event notify.Event, channel notify.Channel, defaults map[string]string, render RenderFunc) {
	r.templates[templateKey{event: event, channel: channel}] = registration{
		render:   render,
		defaults: defaults,
	}
}

// ==================== 解析 ====================

// Resolve 将 (event, channel, 变量包) 物化为通道内容
// 未注册的组合返回 ErrNoTemplate,是干净的失败信号,不 panic 不重试
func (r *Registry) Resolve(event notify.Event, channel notify.Channel, variables map[string]string) (notify.Content, error) {
	reg, registered := r.templates[templateKey{event: event, channel: channel}]
	if !registered {
		return notify.Content{}, fmt.Errorf("%w: event=%s channel=%s", notify.ErrNoTemplate, event, channel)
	}

	merged := applyDefaults(reg.defaults, variables)
	return reg.render(merged), nil
}

// applyDefaults 用模板默认值兜底请求变量
// 请求变量优先,默认值只填补缺失的键
func applyDefaults(defaults map[string]string, variables map[string]string) map[string]string {
	merged := make(map[string]string, len(defaults)+len(variables))

	for key, value := range defaults {
		merged[key] = value
	}
	for key, value := range variables {
		merged[key] = value
	}

	return merged
}

// ==================== 变量替换 ====================

var placeholderPattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Substitute 对文本做 {{var}} 占位符替换
// 缺失的变量渲染为空字符串而不是报错: 模板永远不因缺少可选上下文而失败
func Substitute(text string, variables map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		return variables[name]
	})
}
