// Package metrics 提供监控指标功能.
// 支持Prometheus标准，收集应用和系统指标.
//
// Example:
//
//	import "github.com/JSB847123/simple-business-database/pkg/metrics"
//
//	err := metrics.InitMetrics(config.Metrics)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// 记录指标
//	metrics.RecordSaves.WithLabelValues("ok").Inc()
//	metrics.MigrationPhotos.WithLabelValues("migrated").Inc()
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JSB847123/simple-business-database/pkg/configs"
)

// 全局指标变量.
var (
	// RequestCounter HTTP请求计数器.
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint"},
	)

	// RequestDuration HTTP请求持续时间.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// RecordSaves 记录保存计数，按结果分类（ok/quota/error）.
	RecordSaves = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sbdb_record_saves_total",
			Help: "Total number of record save attempts by outcome",
		},
		[]string{"outcome"},
	)

	// MigrationPhotos 迁移照片计数，按结果分类（migrated/failed）.
	MigrationPhotos = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sbdb_migration_photos_total",
			Help: "Total number of photos processed by the legacy migration",
		},
		[]string{"result"},
	)

	// MigrationBytes 迁移的照片字节总量.
	MigrationBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sbdb_migration_bytes_total",
			Help: "Total bytes of photo data moved out of legacy records",
		},
	)

	// SnapshotPublishes 应急快照发布计数，按触发方式分类（cron/flush/manual）.
	SnapshotPublishes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sbdb_snapshot_publishes_total",
			Help: "Total number of emergency snapshot publishes by trigger",
		},
		[]string{"trigger"},
	)

	// QuotaUsedBytes 当前照片负载占用的配额字节数.
	QuotaUsedBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sbdb_quota_used_bytes",
			Help: "Bytes of photo payload currently counted against the quota",
		},
	)

	// registry Prometheus注册表.
	registry = prometheus.NewRegistry()
)

// InitMetrics 初始化Metrics.
func InitMetrics(config configs.MetricsConfig) error {
	if !config.Enabled {
		return nil
	}

	// 注册标准收集器
	if config.RuntimeMetrics {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	// 注册自定义指标
	registry.MustRegister(
		RequestCounter, RequestDuration,
		RecordSaves, MigrationPhotos, MigrationBytes,
		SnapshotPublishes, QuotaUsedBytes,
	)

	return nil
}

// StartMetricsServer 启动Metrics HTTP服务器.
func StartMetricsServer(config configs.MetricsConfig, debugEngine *gin.Engine) error {
	if !config.Enabled {
		return nil
	}

	debugEngine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	return nil
}

// GetRegistry 获取Prometheus注册表.
func GetRegistry() *prometheus.Registry {
	return registry
}
