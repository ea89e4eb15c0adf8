// Package configs 管理应用程序配置，包括数据库、各存储层级和消息队列的配置信息.
// configs 包支持多种配置格式（YAML、JSON、TOML、dotenv）并启用热重载.
//
// Example:
//
//	import "path/to/configs"
//
//	err := configs.InitConfig("./")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	config := configs.GetConfig()
//	fmt.Println(config.Server.Port)
//
// Example accessing DB config:
//
//	config := configs.GetConfig()
//	dbConfig := config.DB
//	dsn := dbConfig.GetDSN()
//	fmt.Println("DSN:", dsn)
//
// Example accessing KV (legacy tier) config:
//
//	config := configs.GetConfig()
//	kvConfig := config.KV
//	fmt.Println("KV type:", kvConfig.GetKVType())
//
// Example accessing Codec config:
//
//	config := configs.GetConfig()
//	codecConfig := config.Codec
//	fmt.Println("max dimension:", codecConfig.MaxDimensionPx)
package configs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// AppVersion 应用版本.
const AppVersion = "1.1.0"

type (
	// AppConfig 全局应用程序配置.
	AppConfig struct {
		Server    ServerConfig    `mapstructure:"server"`     // ServerConfig 控制台服务器配置
		DB        DBConfig        `mapstructure:"db"`         // DBConfig 主存储（Blob Store）数据库配置
		KV        KVConfig        `mapstructure:"kv"`         // KVConfig 旧版扁平存储层级配置
		Emergency EmergencyConfig `mapstructure:"emergency"`  // EmergencyConfig 应急快照存储层级配置
		MQ        MQConfig        `mapstructure:"mq"`         // MQConfig 消息队列配置
		Log       LogConfig       `mapstructure:"log"`        // LogConfig 日志相关配置
		Metrics   MetricsConfig   `mapstructure:"metrics"`    // MetricsConfig 监控指标配置
		Tracing   TracingConfig   `mapstructure:"tracing"`    // TracingConfig 分布式追踪配置
		Codec     CodecConfig     `mapstructure:"codec"`      // CodecConfig 照片压缩编码配置
		Writer    WriterConfig    `mapstructure:"writer"`     // WriterConfig 记录写入器配置
		Sync      SyncConfig      `mapstructure:"sync"`       // SyncConfig 远端 CRUD API 同步配置
		RateLimit RateLimitConfig `mapstructure:"rate_limit"` // RateLimitConfig 控制台速率限制配置
	}
)

var (
	// globalConfig 全局配置实例.
	globalConfig AppConfig
	// appViper 全局 Viper 实例.
	appViper *viper.Viper
)

// InitConfig 加载应用程序配置，支持多种格式(yaml、json、toml、dotenv)并启用热重载.
func InitConfig(path string) error {
	appViper = viper.New()
	// 设置默认值
	setAllDefaults(appViper)

	// 检查path是否是文件
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		// 是文件，使用SetConfigFile，Viper会自动检测类型
		appViper.SetConfigFile(path)
	} else {
		// 是目录，设置配置名和路径
		appViper.SetConfigName("config")
		appViper.AddConfigPath(path)
		appViper.AddConfigPath(path + "/configs")

		exts := []string{"yaml", "yml", "json", "toml", "env", "dotenv"}

		for _, ext := range exts {
			cfg := filepath.Join(path, "config."+ext)
			if _, err := os.Stat(cfg); err == nil {
				appViper.SetConfigFile(cfg)

				break
			}
		}
	}

	appViper.AutomaticEnv()
	appViper.SetEnvPrefix("SBDB")

	// 读取配置；现场设备上允许完全没有配置文件，只用默认值和环境变量
	if err := appViper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	// 解析到全局配置
	if err := appViper.Unmarshal(&globalConfig); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	reloadConfigs(appViper, globalConfig.Server.ReloadConfig)

	return nil
}

// setAllDefaults 设置所有配置的默认值.
func setAllDefaults(v *viper.Viper) {
	var serverConfig ServerConfig

	var dbConfig DBConfig

	var kvConfig KVConfig

	var emergencyConfig EmergencyConfig

	var mqConfig MQConfig

	var logConfig LogConfig

	var metricsConfig MetricsConfig

	var tracingConfig TracingConfig

	var codecConfig CodecConfig

	var writerConfig WriterConfig

	var syncConfig SyncConfig

	var rateLimitConfig RateLimitConfig

	serverConfig.setDefaults(v)
	dbConfig.setDefaults(v)
	kvConfig.setDefaults(v)
	emergencyConfig.setDefaults(v)
	mqConfig.setDefaults(v)
	logConfig.setDefaults(v)
	metricsConfig.setDefaults(v)
	tracingConfig.setDefaults(v)
	codecConfig.setDefaults(v)
	writerConfig.setDefaults(v)
	syncConfig.setDefaults(v)
	rateLimitConfig.setDefaults(v)
}

func reloadConfigs(v *viper.Viper, isHotReload bool) {
	if !isHotReload {
		return
	}
	// 启用配置热重载
	v.OnConfigChange(func(e fsnotify.Event) {
		fmt.Println("Config file changed:", e.Name)
		fmt.Println("Reloading configuration...")

		if err := v.Unmarshal(&globalConfig); err != nil {
			fmt.Printf("Error reloading config: %v\n", err)
		}
	})
	v.WatchConfig()
}

// GetConfig 返回全局配置实例.
func GetConfig() *AppConfig {
	return &globalConfig
}

func GetViper() *viper.Viper {
	return appViper
}
