package types

// StoreStats 主存储聚合统计.
type StoreStats struct {
	RecordCount     int   `json:"record_count"`
	PhotoCount      int   `json:"photo_count"`
	TotalPhotoBytes int64 `json:"total_photo_bytes"`
}

// StatsResponse 控制台统计响应：主存储统计加配额与工作列表视图.
type StatsResponse struct {
	Store           StoreStats `json:"store"`
	WorkingRecords  int        `json:"working_records"`
	QuotaUsedBytes  int64      `json:"quota_used_bytes"`
	QuotaTotalBytes int64      `json:"quota_total_bytes"`
}

// TierHealth 单个存储层级的探测结果.
type TierHealth struct {
	Tier      string `json:"tier"`
	Healthy   bool   `json:"healthy"`
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// DiagnoseReport 三层存储的诊断汇总.
// 除探针键外只读，不会改动任何业务数据.
type DiagnoseReport struct {
	Tiers           []TierHealth     `json:"tiers"`
	RecordCounts    map[string]int   `json:"record_counts"`
	ByteSizes       map[string]int64 `json:"byte_sizes"`
	QuotaUsedBytes  int64            `json:"quota_used_bytes"`
	QuotaTotalBytes int64            `json:"quota_total_bytes"`
}

// MigrationReport 旧版照片迁移的结果汇总.
type MigrationReport struct {
	State              string `json:"state"`
	SuccessCount       int    `json:"success_count"`
	FailedCount        int    `json:"failed_count"`
	TotalBytesMigrated int64  `json:"total_bytes_migrated"`
}
