package main

import (
	"log"

	"notify-gateway/internal/channels/email"
	pushchannel "notify-gateway/internal/channels/push"
	"notify-gateway/internal/channels/sms"
	"notify-gateway/internal/channels/web"
	"notify-gateway/internal/config"
	"notify-gateway/internal/idempotency"
	"notify-gateway/internal/inbox"
	"notify-gateway/internal/logstore"
	"notify-gateway/internal/notify"
	"notify-gateway/internal/queue"
	"notify-gateway/internal/template"

	redis "github.com/redis/go-redis/v9"
)

// AppContext 应用运行时上下文
// 聚合所有运行期依赖,统一管理生命周期
type AppContext struct {
	Config           config.Config
	Mode             notify.DeploymentMode
	RedisClient      *redis.Client
	InboxStore       inbox.Store
	LogStore         *logstore.MemoryStore
	Idempotency      idempotency.Checker
	TemplateRegistry *template.Registry
	ChannelRegistry  notify.Registry
	Dispatcher       *notify.Dispatcher
	Service          notify.Service
	Enqueuer         queue.Enqueuer
}

// Close 释放应用上下文持有的所有资源
// 按照依赖关系倒序释放,避免资源泄漏
func (appContext *AppContext) Close() {
	if appContext.Enqueuer != nil {
		appContext.Enqueuer.Close()
	}

	if appContext.RedisClient != nil {
		if err := appContext.RedisClient.Close(); err != nil {
			log.Printf("[AppContext] 关闭 Redis 客户端失败: %v", err)
		}
	}
}

//
// 应用初始化器
//

// ApplicationInitializer 应用初始化器
// 负责构建完整的应用运行上下文
type ApplicationInitializer struct {
	configuration config.Config
	mode          notify.DeploymentMode
	redisClient   *redis.Client
}

// NewApplicationInitializer 创建应用初始化器实例
func NewApplicationInitializer(configuration config.Config) *ApplicationInitializer {
	return &ApplicationInitializer{
		configuration: configuration,
		mode:          notify.DeploymentMode(configuration.App.Mode),
	}
}

// Initialize 初始化应用上下文
// 按照依赖关系依次初始化各个组件
func (initializer *ApplicationInitializer) Initialize() *AppContext {
	initializer.initializeRedis()

	logStore := logstore.NewMemoryStore(initializer.configuration.Storage.LogCapacity)
	inboxStore := initializer.createInboxStore()
	idempotencyChecker := initializer.createIdempotencyChecker()
	templateRegistry := template.NewDefaultRegistry()
	channelRegistry := initializer.createChannelRegistry(inboxStore)

	dispatcher := notify.NewDispatcher(channelRegistry, templateRegistry, logStore)

	enqueuer := initializer.createEnqueuer()
	if enqueuer != nil {
		dispatcher.SetEnqueuer(enqueuer)
	}

	service := notify.NewService(dispatcher)

	log.Printf("[Initializer] 应用初始化完成 (mode=%s)", initializer.mode)

	return &AppContext{
		Config:           initializer.configuration,
		Mode:             initializer.mode,
		RedisClient:      initializer.redisClient,
		InboxStore:       inboxStore,
		LogStore:         logStore,
		Idempotency:      idempotencyChecker,
		TemplateRegistry: templateRegistry,
		ChannelRegistry:  channelRegistry,
		Dispatcher:       dispatcher,
		Service:          service,
		Enqueuer:         enqueuer,
	}
}

// initializeRedis 初始化 Redis 客户端
// 未配置地址时跳过,收件箱与幂等检查退化为内存实现
func (initializer *ApplicationInitializer) initializeRedis() {
	if initializer.configuration.Storage.RedisAddr == "" {
		log.Println("[Initializer] 未配置 Redis,使用内存存储")
		return
	}

	initializer.redisClient = redis.NewClient(&redis.Options{
		Addr: initializer.configuration.Storage.RedisAddr,
	})

	log.Println("[Initializer] Redis 客户端初始化完成")
}

// createInboxStore 创建收件箱存储
func (initializer *ApplicationInitializer) createInboxStore() inbox.Store {
	options := inbox.Options{
		Namespace:  initializer.configuration.Storage.Namespace,
		MaxPerUser: initializer.configuration.Storage.InboxMaxPerUser,
		TTL:        initializer.configuration.Storage.InboxTTL,
	}

	if initializer.redisClient == nil {
		log.Println("[Initializer] 收件箱使用内存存储")
		return inbox.NewMemoryStore(options)
	}

	log.Println("[Initializer] 收件箱使用 Redis 存储")
	return inbox.NewRedisStore(initializer.redisClient, options)
}

// createIdempotencyChecker 创建幂等检查器
func (initializer *ApplicationInitializer) createIdempotencyChecker() idempotency.Checker {
	namespace := initializer.configuration.Storage.Namespace

	if initializer.redisClient == nil {
		log.Println("[Initializer] 幂等检查使用内存实现")
		return idempotency.NewMemoryChecker(namespace)
	}

	log.Println("[Initializer] 幂等检查使用 Redis")
	return idempotency.NewRedisChecker(initializer.redisClient, namespace)
}

// createChannelRegistry 创建消息通道注册表
// 所有通道按统一部署模式注入,通道禁用状态由各自配置控制
func (initializer *ApplicationInitializer) createChannelRegistry(inboxStore inbox.Store) notify.Registry {
	providers := initializer.configuration.Providers
	registry := notify.NewRegistry()

	registry.Register(email.New(providers.Email, initializer.mode))
	registry.Register(sms.New(providers.SMS, initializer.mode))
	registry.Register(pushchannel.New(providers.Push, initializer.mode))
	registry.Register(web.NewInApp(providers.InApp, inboxStore))

	log.Println("[Initializer] 消息通道注册完成")
	return registry
}

// createEnqueuer 创建异步队列生产者
// 未配置生产者地址时返回 nil,此时仅支持同步发送
func (initializer *ApplicationInitializer) createEnqueuer() queue.Enqueuer {
	producerAddr := initializer.configuration.NSQ.ProducerAddr
	if producerAddr == "" {
		log.Println("[Initializer] 未配置 NSQ 生产者,异步发送不可用")
		return nil
	}

	producer, err := queue.NewNSQProducer(producerAddr, initializer.configuration.NSQ.Topic)
	if err != nil {
		log.Fatalf("[Initializer] 创建队列生产者失败: %v", err)
	}

	log.Println("[Initializer] 队列生产者创建成功")
	return producer
}

//
// 外部调用接口
//

// InitAppContext 初始化应用上下文
func InitAppContext(configuration config.Config) *AppContext {
	initializer := NewApplicationInitializer(configuration)
	return initializer.Initialize()
}
