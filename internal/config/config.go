// Package config 提供基于 YAML 的应用配置加载与校验
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// 默认配置常量
const (
	// NSQ 队列默认配置
	DefaultNSQTopic       = "notification-requests"
	DefaultNSQChannel     = "notification-workers"
	DefaultNSQMaxInFlight = 128
	DefaultNSQConcurrency = 8
	DefaultNSQMaxAttempts = 5
	DefaultDLQTopicSuffix = ".DLQ"

	// 应用默认配置
	DefaultHTTPAddress    = ":8080"
	DefaultMode           = "simulated"
	DefaultRequestTimeout = 5 * time.Second
	DefaultIdempotencyTTL = 5 * time.Minute

	// 存储默认配置
	DefaultRedisNamespace  = "notify"
	DefaultLogCapacity     = 1000
	DefaultInboxMaxPerUser = 5000
	DefaultInboxTTL        = 365 * 24 * time.Hour

	// 部署模式常量
	ModeSimulated = "simulated"
	ModeLive      = "live"
)

// ProviderCommon 通道提供者公共配置
// 所有消息通道共享的基础配置
type ProviderCommon struct {
	Timeout time.Duration `yaml:"Timeout"` // 调用超时时间
}

// EmailProvider 邮件服务配置
// 包含 SMTP 连接、认证和发送参数
type EmailProvider struct {
	Enabled        bool             `yaml:"Enabled"`  // 是否启用通道
	From           string           `yaml:"From"`     // 发件人邮箱地址
	FromName       string           `yaml:"FromName"` // 发件人显示名称
	SMTPHost       string           `yaml:"SMTPHost"` // SMTP 服务器主机名
	SMTPPort       int              `yaml:"SMTPPort"` // SMTP 服务器端口
	Username       string           `yaml:"Username"` // SMTP 认证用户名
	Password       string           `yaml:"Password"` // SMTP 认证密码
	UseTLS         bool             `yaml:"UseTLS"`   // 是否启用 STARTTLS
	UseSSL         bool             `yaml:"UseSSL"`   // 是否使用 SSL 直连
	ProviderCommon `yaml:",inline"` // 公共配置
}

// SMSProvider 短信服务配置
type SMSProvider struct {
	Enabled        bool   `yaml:"Enabled"`    // 是否启用通道
	GatewayURL     string `yaml:"GatewayURL"` // 短信网关地址
	APIKey         string `yaml:"APIKey"`     // 网关认证密钥
	Sign           string `yaml:"Sign"`       // 短信签名
	ProviderCommon `yaml:",inline"`
}

// PushProvider 移动推送服务配置
type PushProvider struct {
	Enabled        bool   `yaml:"Enabled"`    // 是否启用通道
	Endpoint       string `yaml:"Endpoint"`   // 推送网关地址
	Credential     string `yaml:"Credential"` // 网关认证凭证
	ProviderCommon `yaml:",inline"`
}

// InAppProvider 站内信服务配置
type InAppProvider struct {
	Enabled bool `yaml:"Enabled"` // 是否启用通道
}

// Providers 所有消息通道配置集合
type Providers struct {
	Email EmailProvider `yaml:"Email"` // 邮件通道
	SMS   SMSProvider   `yaml:"SMS"`   // 短信通道
	Push  PushProvider  `yaml:"Push"`  // 推送通道
	InApp InAppProvider `yaml:"InApp"` // 站内信通道
}

// NSQ 消息队列配置
// 用于通知请求的异步处理
type NSQ struct {
	Topic                       string   `yaml:"Topic"`                       // 消息主题
	Channel                     string   `yaml:"Channel"`                     // 消费者通道
	NsqdTCPAddrs                []string `yaml:"NsqdTCPAddrs"`                // NSQD TCP 地址列表
	LookupdHTTPAddrs            []string `yaml:"LookupdHTTPAddrs"`            // Lookupd HTTP 地址列表
	MaxInFlight                 int      `yaml:"MaxInFlight"`                 // 最大并发消息数
	Concurrency                 int      `yaml:"Concurrency"`                 // 处理并发数
	ProducerAddr                string   `yaml:"ProducerAddr"`                // 生产者地址
	ConsumerEnabled             bool     `yaml:"ConsumerEnabled"`             // 是否启用消费
	DLQTopic                    string   `yaml:"DLQTopic"`                    // 死信队列主题
	MaxConsumeAttemptsBeforeDLQ int      `yaml:"MaxConsumeAttemptsBeforeDLQ"` // 进入死信队列前最大尝试次数
}

// App 应用全局配置
type App struct {
	Addr           string        `yaml:"Addr"`           // HTTP 监听地址
	Mode           string        `yaml:"Mode"`           // 部署模式: simulated | live
	RequestTimeout time.Duration `yaml:"RequestTimeout"` // HTTP 请求超时
	IdempotencyTTL time.Duration `yaml:"IdempotencyTTL"` // 幂等键过期时间
}

// Storage 存储配置
// 包含发送日志容量和 Redis 收件箱配置
type Storage struct {
	LogCapacity     int           `yaml:"LogCapacity"`     // 发送日志最大保留条数
	RedisAddr       string        `yaml:"RedisAddr"`       // Redis 地址,为空时收件箱退化为内存存储
	Namespace       string        `yaml:"Namespace"`       // Redis 键前缀
	InboxMaxPerUser int64         `yaml:"InboxMaxPerUser"` // 单用户收件箱最大消息数
	InboxTTL        time.Duration `yaml:"InboxTTL"`        // 收件箱消息过期时间
}

// Config 应用完整配置
type Config struct {
	App       App       `yaml:"App"`
	Storage   Storage   `yaml:"Storage"`
	NSQ       NSQ       `yaml:"NSQ"`
	Providers Providers `yaml:"Providers"`
}

// MustLoad 加载 YAML 配置文件
// 加载失败时直接 panic(用于应用启动阶段)
func MustLoad(configPath string) Config {
	fileContent, err := os.ReadFile(configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to read config file: %v", err))
	}

	var config Config
	if err := yaml.Unmarshal(fileContent, &config); err != nil {
		panic(fmt.Sprintf("failed to unmarshal config: %v", err))
	}

	if err := config.validate(); err != nil {
		panic(fmt.Sprintf("config validation failed: %v", err))
	}

	return config
}

// validate 校验配置并设置默认值
func (config *Config) validate() error {
	if err := config.validateAppConfig(); err != nil {
		return err
	}

	if err := config.validateStorageConfig(); err != nil {
		return err
	}

	if err := config.validateNSQConfig(); err != nil {
		return err
	}

	return nil
}

// validateAppConfig 校验应用配置并设置默认值
func (config *Config) validateAppConfig() error {
	if config.App.Addr == "" {
		config.App.Addr = DefaultHTTPAddress
	}

	if config.App.Mode == "" {
		config.App.Mode = DefaultMode
	}

	if config.App.Mode != ModeSimulated && config.App.Mode != ModeLive {
		return fmt.Errorf("invalid mode %q, expected %q or %q", config.App.Mode, ModeSimulated, ModeLive)
	}

	if config.App.RequestTimeout <= 0 {
		config.App.RequestTimeout = DefaultRequestTimeout
	}

	if config.App.IdempotencyTTL <= 0 {
		config.App.IdempotencyTTL = DefaultIdempotencyTTL
	}

	return nil
}

// validateStorageConfig 校验存储配置并设置默认值
func (config *Config) validateStorageConfig() error {
	if config.Storage.LogCapacity <= 0 {
		config.Storage.LogCapacity = DefaultLogCapacity
	}

	if config.Storage.Namespace == "" {
		config.Storage.Namespace = DefaultRedisNamespace
	}

	if config.Storage.InboxMaxPerUser <= 0 {
		config.Storage.InboxMaxPerUser = DefaultInboxMaxPerUser
	}

	if config.Storage.InboxTTL <= 0 {
		config.Storage.InboxTTL = DefaultInboxTTL
	}

	return nil
}

// validateNSQConfig 校验 NSQ 配置并设置默认值
func (config *Config) validateNSQConfig() error {
	if config.NSQ.Topic == "" {
		config.NSQ.Topic = DefaultNSQTopic
	}

	if config.NSQ.Channel == "" {
		config.NSQ.Channel = DefaultNSQChannel
	}

	if config.NSQ.MaxInFlight <= 0 {
		config.NSQ.MaxInFlight = DefaultNSQMaxInFlight
	}

	if config.NSQ.Concurrency <= 0 {
		config.NSQ.Concurrency = DefaultNSQConcurrency
	}

	if config.NSQ.MaxConsumeAttemptsBeforeDLQ <= 0 {
		config.NSQ.MaxConsumeAttemptsBeforeDLQ = DefaultNSQMaxAttempts
	}

	if config.NSQ.DLQTopic == "" {
		config.NSQ.DLQTopic = config.NSQ.Topic + DefaultDLQTopicSuffix
	}

	return nil
}
