package configs

import (
	"github.com/spf13/viper"
)

// MQType 消息队列类型.
type MQType string

const (
	MQTypeGoChannel MQType = "gochannel"
	MQTypeNATS      MQType = "nats"

	DefaultMQURL              = "localhost:4222"
	DefaultMQUser             = ""
	DefaultMQPassword         = ""
	DefaultMaxReconnects      = 5          // 默认最大重连次数.
	DefaultReconnectWait      = 5          // 默认重连等待时间（秒）.
	DefaultMQClientID         = "sbdb-app" // 默认客户端ID
	DefaultGoChanBuffer       = 64         // 默认进程内通道缓冲大小
	DefaultStreamName         = "sbdb"     // 默认 JetStream 流名称
	DefaultSubjectPrefix      = "sbdb."    // 默认主题前缀
	DefaultDurablePrefix      = "sbdb-dur" // 默认持久化消费者前缀
	DefaultConsumerAckWait    = 30         // 默认消费者确认等待时间 (秒)
	DefaultConsumerMaxDeliver = 3          // 默认消费者最大投递次数
)

// MQConfig 消息队列配置.
// 单机采集设备默认使用进程内 gochannel；多设备共享部署可切换到 NATS JetStream.
type MQConfig struct {
	Type      MQType            `mapstructure:"type"      rule:"oneof=gochannel nats"`
	Common    MQCommonConfig    `mapstructure:"common"`
	GoChannel MQGoChannelConfig `mapstructure:"gochannel"`
	NATS      MQNATSConfig      `mapstructure:"nats"`
}

// MQCommonConfig 通用MQ配置.
type MQCommonConfig struct {
	URL           string `mapstructure:"url"            rule:"hostname_port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	ClientID      string `mapstructure:"client_id"`
	MaxReconnects int    `mapstructure:"max_reconnects" rule:"min=0,max=100"`
	ReconnectWait int    `mapstructure:"reconnect_wait" rule:"min=1,max=300"`
}

// MQGoChannelConfig 进程内 gochannel 配置.
type MQGoChannelConfig struct {
	OutputChannelBuffer int64 `mapstructure:"output_channel_buffer" rule:"min=0"`
	Persistent          bool  `mapstructure:"persistent"`
}

// MQNATSConfig NATS MQ 配置.
type MQNATSConfig struct {
	JetStreamEnabled       bool   `mapstructure:"jetstream_enabled"`
	StreamName             string `mapstructure:"stream_name"`
	SubjectPrefix          string `mapstructure:"subject_prefix"`
	JetStreamAutoProvision bool   `mapstructure:"jetstream_auto_provision"`
	JetStreamDurablePrefix string `mapstructure:"jetstream_durable_prefix"`
	ConsumerAckWait        int    `mapstructure:"consumer_ack_wait"`
	ConsumerMaxDeliver     int    `mapstructure:"consumer_max_deliver"`
}

// GetMQType 返回当前配置的消息队列类型.
func (c *MQConfig) GetMQType() MQType {
	return c.Type
}

// setDefaults 设置MQ配置的默认值.
func (c *MQConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("mq.type", MQTypeGoChannel)

	// Common 默认值
	v.SetDefault("mq.common.url", DefaultMQURL)
	v.SetDefault("mq.common.user", DefaultMQUser)
	v.SetDefault("mq.common.password", DefaultMQPassword)
	v.SetDefault("mq.common.client_id", DefaultMQClientID)
	v.SetDefault("mq.common.max_reconnects", DefaultMaxReconnects)
	v.SetDefault("mq.common.reconnect_wait", DefaultReconnectWait)

	// GoChannel 默认值
	v.SetDefault("mq.gochannel.output_channel_buffer", DefaultGoChanBuffer)
	v.SetDefault("mq.gochannel.persistent", true)

	// NATS 默认值
	v.SetDefault("mq.nats.jetstream_enabled", true)
	v.SetDefault("mq.nats.stream_name", DefaultStreamName)
	v.SetDefault("mq.nats.subject_prefix", DefaultSubjectPrefix)
	v.SetDefault("mq.nats.jetstream_auto_provision", true)
	v.SetDefault("mq.nats.jetstream_durable_prefix", DefaultDurablePrefix)
	v.SetDefault("mq.nats.consumer_ack_wait", DefaultConsumerAckWait)
	v.SetDefault("mq.nats.consumer_max_deliver", DefaultConsumerMaxDeliver)
}
