// Package mq 提供进程内 gochannel 消息队列实现。
// 单机采集设备无外部 broker，记录快照与保存事件在进程内流转，
// Persistent 模式下晚订阅的消费者也能收到此前发布的消息。
package mq

import (
	"context"

	watermill "github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/JSB847123/simple-business-database/pkg/configs"
)

// init 注册 gochannel 工厂.
func init() {
	RegisterFactory(configs.MQTypeGoChannel, goChannelFactory)
}

// goChannelFactory 创建进程内 Publisher & Subscriber.
// 返回的是同一个 GoChannel 实例，发布与订阅共享一条内存通道.
func goChannelFactory(
	ctx context.Context,
	cfg *configs.MQConfig,
	logger watermill.LoggerAdapter) (
	message.Publisher, message.Subscriber, error) {
	ch := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: cfg.GoChannel.OutputChannelBuffer,
		Persistent:          cfg.GoChannel.Persistent,
	}, logger)

	return ch, ch, nil
}
