package email

import (
	"fmt"
	"mime"
	"strings"
	"time"

	"notify-gateway/internal/config"
	"notify-gateway/internal/notify"
)

//
// 常量定义
//

const (
	mimeVersion  = "1.0"
	charsetUTF8  = "UTF-8"
	lineBreak    = "\r\n"
	boundaryMark = "notify-gateway-alt"

	defaultSubject = "(no subject)"

	mailerIdentifier = "NotifyGateway/1.0"
)

//
// 邮件构建器
//

// MessageBuilder 把渲染后的内容组装成 MIME 格式邮件
// 有 HTML 版本时生成 multipart/alternative,否则生成纯文本邮件
type MessageBuilder struct {
	cfg config.EmailProvider
}

// NewMessageBuilder 创建邮件构建器
func NewMessageBuilder(cfg config.EmailProvider) *MessageBuilder {
	return &MessageBuilder{cfg: cfg}
}

// Build 构建完整的邮件字节流(头部 + 正文)
func (builder *MessageBuilder) Build(toAddress string, content notify.Content) ([]byte, error) {
	if toAddress == "" {
		return nil, fmt.Errorf("to address cannot be empty")
	}

	subject := content.Subject
	if subject == "" {
		subject = defaultSubject
	}

	var message strings.Builder
	builder.writeCommonHeaders(&message, toAddress, subject)

	if content.HTML != "" {
		builder.writeAlternativeBody(&message, content.Text, content.HTML)
	} else {
		builder.writePlainBody(&message, content.Text)
	}

	return []byte(message.String()), nil
}

// writeCommonHeaders 写入 From/To/Subject 等公共头
// 主题使用 RFC 2047 Q 编码,兼容非 ASCII 字符
func (builder *MessageBuilder) writeCommonHeaders(message *strings.Builder, toAddress string, subject string) {
	from := builder.cfg.From
	if builder.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode(charsetUTF8, builder.cfg.FromName), builder.cfg.From)
	}

	writeHeader(message, "From", from)
	writeHeader(message, "To", toAddress)
	writeHeader(message, "Subject", mime.QEncoding.Encode(charsetUTF8, subject))
	writeHeader(message, "Date", time.Now().Format(time.RFC1123Z))
	writeHeader(message, "MIME-Version", mimeVersion)
	writeHeader(message, "X-Mailer", mailerIdentifier)
}

// writePlainBody 写入纯文本正文
func (builder *MessageBuilder) writePlainBody(message *strings.Builder, text string) {
	writeHeader(message, "Content-Type", fmt.Sprintf("text/plain; charset=%s", charsetUTF8))
	message.WriteString(lineBreak)
	message.WriteString(text)
	message.WriteString(lineBreak)
}

// writeAlternativeBody 写入 text + html 双版本正文
// 按 MIME 约定,优先级低的纯文本部分在前
func (builder *MessageBuilder) writeAlternativeBody(message *strings.Builder, text string, html string) {
	writeHeader(message, "Content-Type", fmt.Sprintf("multipart/alternative; boundary=%q", boundaryMark))
	message.WriteString(lineBreak)

	message.WriteString("--" + boundaryMark + lineBreak)
	writeHeader(message, "Content-Type", fmt.Sprintf("text/plain; charset=%s", charsetUTF8))
	message.WriteString(lineBreak)
	message.WriteString(text)
	message.WriteString(lineBreak)

	message.WriteString("--" + boundaryMark + lineBreak)
	writeHeader(message, "Content-Type", fmt.Sprintf("text/html; charset=%s", charsetUTF8))
	message.WriteString(lineBreak)
	message.WriteString(html)
	message.WriteString(lineBreak)

	message.WriteString("--" + boundaryMark + "--" + lineBreak)
}

// writeHeader 写入一行邮件头
func writeHeader(message *strings.Builder, name string, value string) {
	message.WriteString(name)
	message.WriteString(": ")
	message.WriteString(value)
	message.WriteString(lineBreak)
}
