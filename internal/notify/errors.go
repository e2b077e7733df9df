// notify/errors.go
package notify

import (
	"errors"
	"fmt"
)

// 定义公共错误变量
var (
	ErrNoProvider      = errors.New("no provider registered for channel")
	ErrNoTemplate      = errors.New("no template registered for event and channel")
	ErrChannelDisabled = errors.New("channel is disabled")
	ErrEmptyChannels   = errors.New("at least one channel is required")
	ErrUnknownEvent    = errors.New("unknown notification event")
)

// 通道必填字段缺失时返回的面向调用方的错误文案
// 这些文案是对外契约的一部分,修改前需要确认所有调用方
const (
	ErrMsgEmailRequired  = "Email address required for email notification"
	ErrMsgPhoneRequired  = "Phone number required for SMS notification"
	ErrMsgTokenRequired  = "Push token required for push notification"
	ErrMsgSMSLengthLimit = "Message exceeds SMS length limit (160 characters)"
)

// SMSMaxLength 短信正文长度上限(按字符计)
const SMSMaxLength = 160

// DisabledChannelError 构造通道被禁用的错误文案
func DisabledChannelError(ch Channel) string {
	return fmt.Sprintf("%s channel is disabled", ch)
}

// WrapError 带上下文的错误包装
func WrapError(err error, msg string) error {
	return fmt.Errorf("%s: %w", msg, err)
}
