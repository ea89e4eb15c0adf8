// Package mq 提供基于 Watermill 库的统一消息队列操作接口。
// 支持发布/订阅模式，并通过工厂模式抽象不同的 MQ 实现。
//
// 支持的 MQ 类型：
//   - gochannel（进程内，单机采集设备默认）
//   - NATS（支持 JetStream，多设备共享部署）
//
// 该包提供封装了 Publisher 和 Subscriber 的 Client，记录快照与保存事件的
// 发布和订阅方法。
//
// 使用示例：
//
//	ctx := context.Background()
//	client, err := mq.New(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	// 发布记录快照
//	msg := message.NewMessage(watermill.NewUUID(), payload)
//	err = client.Publish(ctx, "sbdb.record.snapshot", msg)
//
//	// 订阅快照主题
//	ch, err := client.Subscribe(ctx, "sbdb.record.snapshot")
package mq

import (
	"context"
	"fmt"
	"sync"

	watermill "github.com/ThreeDotsLabs/watermill"
	wmetrics "github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/JSB847123/simple-business-database/pkg/configs"
	nlog "github.com/JSB847123/simple-business-database/pkg/log"
	"github.com/JSB847123/simple-business-database/pkg/metrics"
)

// Factory 定义创建 Publisher + Subscriber 的工厂函数.
type Factory func(ctx context.Context, cfg *configs.MQConfig, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber, error)

var (
	factories = map[configs.MQType]Factory{}
)

// RegisterFactory 注册指定 MQType 的工厂.
func RegisterFactory(t configs.MQType, f Factory) {
	factories[t] = f
}

// GetRegisteredMQTypes 返回当前构建中已注册的 MQ 类型.
func GetRegisteredMQTypes() []configs.MQType {
	types := make([]configs.MQType, 0, len(factories))
	for t := range factories {
		types = append(types, t)
	}

	return types
}

// Client 封装 watermill Publisher 与 Subscriber.
type Client struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	router     *message.Router
}

// Publisher 返回底层 Publisher，供需要注入发布能力的组件使用.
func (c *Client) Publisher() message.Publisher {
	return c.publisher
}

// Subscriber 返回底层 Subscriber.
func (c *Client) Subscriber() message.Subscriber {
	return c.subscriber
}

// Publish 便捷发布.
func (c *Client) Publish(ctx context.Context, topic string, msgs ...*message.Message) error {
	if c == nil || c.publisher == nil {
		return fmt.Errorf("mq publisher not initialized")
	}

	for _, m := range msgs {
		if err := c.publisher.Publish(topic, m); err != nil {
			return err
		}
	}

	return nil
}

// Subscribe 便捷订阅.
func (c *Client) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	if c == nil || c.subscriber == nil {
		return nil, fmt.Errorf("mq subscriber not initialized")
	}

	ch, err := c.subscriber.Subscribe(ctx, topic)
	if err != nil {
		return nil, err
	}

	return ch, nil
}

// Close 关闭资源.
// gochannel 模式下 publisher 与 subscriber 为同一实例，其 Close 幂等，重复关闭安全.
func (c *Client) Close() error {
	var err error

	if c.publisher != nil {
		if e := c.publisher.Close(); e != nil {
			err = e
		}
	}

	if c.subscriber != nil {
		if e := c.subscriber.Close(); e != nil {
			err = e
		}
	}

	if c.router != nil {
		// 停止 router，确保所有 handler 停止运行
		if e := c.router.Close(); e != nil {
			err = e
		}
	}

	return err
}

var (
	mqOnce sync.Once
	mqInst *Client
	mqErr  error
)

// New 初始化消息队列（单例）.
func New(ctx context.Context) (*Client, error) {
	mqOnce.Do(func() {
		cfg := configs.GetConfig().MQ

		logger := &zerologAdapter{l: nlog.Logger()}

		client, err := NewWithConfig(ctx, &cfg, logger)
		if err != nil {
			mqErr = err
			return
		}

		mqInst = client

		nlog.Logger().Info().Str("type", string(cfg.Type)).Msg("MQ 管理器已初始化")
	})

	return mqInst, mqErr
}

// NewWithConfig 按给定配置创建 Client，不走单例.
// 诊断命令与测试用它构造独立的消息通道.
func NewWithConfig(ctx context.Context, cfg *configs.MQConfig, logger watermill.LoggerAdapter) (*Client, error) {
	factory, ok := factories[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unsupported mq type: %s", cfg.Type)
	}

	if logger == nil {
		logger = &zerologAdapter{l: nlog.Logger()}
	}

	pub, sub, err := factory(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init mq (%s): %w", cfg.Type, err)
	}

	var router *message.Router

	if configs.GetConfig().Metrics.Enabled {
		// 复用应用级 Prometheus registry，MQ 指标与业务指标同端点暴露
		router, err = message.NewRouter(message.RouterConfig{}, logger)
		if err != nil {
			return nil, fmt.Errorf("create router: %w", err)
		}

		go func() {
			if runErr := router.Run(ctx); runErr != nil {
				nlog.Logger().Error().Err(runErr).Msg("router run error")
			}
		}()

		metricsBuilder := wmetrics.NewPrometheusMetricsBuilder(metrics.GetRegistry(), "sbdb", "mq")
		metricsBuilder.AddPrometheusRouterMetrics(router)

		pub, err = metricsBuilder.DecoratePublisher(pub)
		if err != nil {
			return nil, fmt.Errorf("decorate publisher with metrics: %w", err)
		}

		sub, err = metricsBuilder.DecorateSubscriber(sub)
		if err != nil {
			return nil, fmt.Errorf("decorate subscriber with metrics: %w", err)
		}
	}

	return &Client{publisher: pub, subscriber: sub, router: router}, nil
}
