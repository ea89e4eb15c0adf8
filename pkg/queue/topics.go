// Package queue 定义消息主题常量与分组，供发布/订阅使用.
package queue

// 主题命名规范：sbdb.<域>.<动作>[.<状态>]，尽量稳定且向后兼容.
// 域：record(记录)、migration(照片迁移)、sync(服务器同步)
// 动作/状态：saved/snapshot/deleted、started/completed/failed、pushed

const (
	// 记录领域.
	TopicRecordSaved    = "sbdb.record.saved"    // 记录已写入主存储
	TopicRecordSnapshot = "sbdb.record.snapshot" // 全量记录快照，应急层级消费
	TopicRecordDeleted  = "sbdb.record.deleted"  // 记录及其照片已删除

	// 照片迁移领域.
	TopicMigrationStarted   = "sbdb.migration.started"   // 迁移扫描开始
	TopicMigrationCompleted = "sbdb.migration.completed" // 迁移完成（含部分失败）
	TopicMigrationFailed    = "sbdb.migration.failed"    // 迁移整体失败（旧层级不可达等）

	// 服务器同步领域.
	TopicSyncPushed = "sbdb.sync.pushed" // 本地记录已推送到同步服务器
	TopicSyncFailed = "sbdb.sync.failed" // 推送失败（熔断或网络错误）
)

// 主题分组，用于批量订阅或诊断展示.
var (
	// 记录相关主题集合.
	RecordTopics = []string{
		TopicRecordSaved, TopicRecordSnapshot, TopicRecordDeleted,
	}

	// 迁移相关主题集合.
	MigrationTopics = []string{
		TopicMigrationStarted, TopicMigrationCompleted, TopicMigrationFailed,
	}

	// 同步相关主题集合.
	SyncTopics = []string{
		TopicSyncPushed, TopicSyncFailed,
	}
)
