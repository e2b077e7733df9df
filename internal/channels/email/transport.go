package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"time"

	"notify-gateway/internal/config"
)

// SMTP 协议默认端口常量
const (
	defaultSMTPPort         = 25  // 普通 SMTP 端口
	defaultSMTPSSLPort      = 465 // SSL/TLS 加密端口
	defaultSMTPSTARTTLSPort = 587 // STARTTLS 升级端口
	defaultDialTimeout      = 30 * time.Second
)

// SMTPTransport 负责底层 SMTP 连接、认证和投递
// 同时支持 SSL 直连与 STARTTLS 升级两种加密方式
type SMTPTransport struct {
	cfg config.EmailProvider
}

// NewSMTPTransport 创建 SMTP 传输实例
func NewSMTPTransport(cfg config.EmailProvider) *SMTPTransport {
	return &SMTPTransport{cfg: cfg}
}

// SendRaw 发送完整的 MIME 格式邮件
// 恰好一次投递尝试: 连接、认证、信封、数据,任一步失败立即返回
func (transport *SMTPTransport) SendRaw(ctx context.Context, rawMessage []byte, recipients []string) error {
	if len(recipients) == 0 {
		return errors.New("recipients list cannot be empty")
	}

	client, cleanup, err := transport.dial(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if auth := transport.auth(); auth != nil {
		// 部分 SMTP 服务器允许匿名发送,认证是可选的
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp authentication failed: %w", err)
		}
	}

	if err := client.Mail(transport.cfg.From); err != nil {
		return fmt.Errorf("MAIL FROM command failed: %w", err)
	}
	for _, recipient := range recipients {
		if recipient == "" {
			continue
		}
		if err := client.Rcpt(recipient); err != nil {
			return fmt.Errorf("RCPT TO command failed for %s: %w", recipient, err)
		}
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err = writer.Write(rawMessage); err != nil {
		return fmt.Errorf("failed to write message body: %w", err)
	}
	if err = writer.Close(); err != nil {
		return fmt.Errorf("failed to close message body: %w", err)
	}

	return nil
}

// dial 建立 SMTP 客户端连接
// 根据配置选择 SSL 直连或普通连接(可选 STARTTLS 升级),返回客户端和清理函数
func (transport *SMTPTransport) dial(ctx context.Context) (*smtp.Client, func(), error) {
	if transport.cfg.SMTPHost == "" {
		return nil, nil, errors.New("smtp host cannot be empty")
	}

	connection, err := transport.dialTCP(ctx)
	if err != nil {
		return nil, nil, err
	}

	if transport.cfg.UseSSL {
		// SSL 需要在 TCP 连接上直接完成 TLS 握手
		tlsConnection := tls.Client(connection, &tls.Config{ServerName: transport.cfg.SMTPHost})
		if err := tlsConnection.Handshake(); err != nil {
			_ = connection.Close()
			return nil, nil, fmt.Errorf("ssl handshake failed: %w", err)
		}

		client, err := smtp.NewClient(tlsConnection, transport.cfg.SMTPHost)
		if err != nil {
			_ = connection.Close()
			return nil, nil, fmt.Errorf("failed to create smtp client with ssl: %w", err)
		}
		return client, func() { _ = client.Quit(); _ = connection.Close() }, nil
	}

	client, err := smtp.NewClient(connection, transport.cfg.SMTPHost)
	if err != nil {
		_ = connection.Close()
		return nil, nil, fmt.Errorf("failed to create smtp client: %w", err)
	}

	// STARTTLS 在明文连接建立后升级为加密连接
	if transport.cfg.UseTLS {
		if err = client.StartTLS(&tls.Config{ServerName: transport.cfg.SMTPHost}); err != nil {
			_ = client.Quit()
			_ = connection.Close()
			return nil, nil, fmt.Errorf("starttls upgrade failed: %w", err)
		}
	}

	return client, func() { _ = client.Quit(); _ = connection.Close() }, nil
}

// dialTCP 建立底层 TCP 连接,优先沿用 context 的截止时间
func (transport *SMTPTransport) dialTCP(ctx context.Context) (net.Conn, error) {
	address := net.JoinHostPort(transport.cfg.SMTPHost, fmt.Sprintf("%d", transport.resolvePort()))

	if deadline, hasDeadline := ctx.Deadline(); hasDeadline {
		var dialer net.Dialer
		connection, err := dialer.DialContext(ctx, "tcp", address)
		if err != nil {
			return nil, fmt.Errorf("failed to dial smtp server %s: %w", address, err)
		}
		_ = connection.SetDeadline(deadline)
		return connection, nil
	}

	connection, err := net.DialTimeout("tcp", address, defaultDialTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to dial smtp server %s: %w", address, err)
	}
	return connection, nil
}

// resolvePort 根据安全协议推断端口,配置的端口优先
func (transport *SMTPTransport) resolvePort() int {
	if transport.cfg.SMTPPort > 0 {
		return transport.cfg.SMTPPort
	}
	if transport.cfg.UseSSL {
		return defaultSMTPSSLPort
	}
	if transport.cfg.UseTLS {
		return defaultSMTPSTARTTLSPort
	}
	return defaultSMTPPort
}

// auth 创建 SMTP 认证实例,未配置凭据时返回 nil
func (transport *SMTPTransport) auth() smtp.Auth {
	if transport.cfg.Username == "" || transport.cfg.Password == "" {
		return nil
	}
	return smtp.PlainAuth("", transport.cfg.Username, transport.cfg.Password, transport.cfg.SMTPHost)
}
