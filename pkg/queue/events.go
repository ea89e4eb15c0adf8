package queue

import "github.com/ThreeDotsLabs/watermill/message"

// -------------------------- 基于业务封装 events --------------------------

// PublishRecordSaved 发布 sbdb.record.saved 事件。
// 记录写入主存储后通知下游（同步推送、统计等）。
// 可通过可选项 opts 注入 TraceID、Producer 等头部信息。
func PublishRecordSaved(pub message.Publisher, payload RecordSavedPayload, opts ...func(*EventHeader)) error {
	msg, err := NewWatermillMessage(TopicRecordSaved, payload, opts...)
	if err != nil {
		return err
	}

	return pub.Publish(TopicRecordSaved, msg)
}

// ParseRecordSaved 将 Watermill 消息解析为强类型 Envelope（RecordSavedPayload）。
func ParseRecordSaved(msg *message.Message) (Message[RecordSavedPayload], error) {
	return ParseWatermillMessage[RecordSavedPayload](msg)
}

// PublishRecordDeleted 发布 sbdb.record.deleted 事件。
func PublishRecordDeleted(pub message.Publisher, payload RecordDeletedPayload, opts ...func(*EventHeader)) error {
	msg, err := NewWatermillMessage(TopicRecordDeleted, payload, opts...)
	if err != nil {
		return err
	}

	return pub.Publish(TopicRecordDeleted, msg)
}

// PublishRecordSnapshot 发布 sbdb.record.snapshot 事件。
// 携带全量记录列表，应急工作者消费后写入隔离的快照存储。
func PublishRecordSnapshot(pub message.Publisher, payload RecordSnapshotPayload, opts ...func(*EventHeader)) error {
	msg, err := NewWatermillMessage(TopicRecordSnapshot, payload, opts...)
	if err != nil {
		return err
	}

	return pub.Publish(TopicRecordSnapshot, msg)
}

// ParseRecordSnapshot 将 Watermill 消息解析为强类型 Envelope（RecordSnapshotPayload）。
func ParseRecordSnapshot(msg *message.Message) (Message[RecordSnapshotPayload], error) {
	return ParseWatermillMessage[RecordSnapshotPayload](msg)
}

// PublishMigrationStarted 发布 sbdb.migration.started 事件。
func PublishMigrationStarted(pub message.Publisher, payload MigrationStartedPayload, opts ...func(*EventHeader)) error {
	msg, err := NewWatermillMessage(TopicMigrationStarted, payload, opts...)
	if err != nil {
		return err
	}

	return pub.Publish(TopicMigrationStarted, msg)
}

// PublishMigrationCompleted 发布 sbdb.migration.completed 事件。
// 部分照片失败不影响完成事件，失败数随负载一起发布。
func PublishMigrationCompleted(pub message.Publisher, payload MigrationCompletedPayload, opts ...func(*EventHeader)) error {
	msg, err := NewWatermillMessage(TopicMigrationCompleted, payload, opts...)
	if err != nil {
		return err
	}

	return pub.Publish(TopicMigrationCompleted, msg)
}

// PublishMigrationFailed 发布 sbdb.migration.failed 事件。
func PublishMigrationFailed(pub message.Publisher, payload MigrationFailedPayload, opts ...func(*EventHeader)) error {
	msg, err := NewWatermillMessage(TopicMigrationFailed, payload, opts...)
	if err != nil {
		return err
	}

	return pub.Publish(TopicMigrationFailed, msg)
}

// PublishSyncPushed 发布 sbdb.sync.pushed 事件。
func PublishSyncPushed(pub message.Publisher, payload SyncPushedPayload, opts ...func(*EventHeader)) error {
	msg, err := NewWatermillMessage(TopicSyncPushed, payload, opts...)
	if err != nil {
		return err
	}

	return pub.Publish(TopicSyncPushed, msg)
}

// PublishSyncFailed 发布 sbdb.sync.failed 事件。
func PublishSyncFailed(pub message.Publisher, payload SyncFailedPayload, opts ...func(*EventHeader)) error {
	msg, err := NewWatermillMessage(TopicSyncFailed, payload, opts...)
	if err != nil {
		return err
	}

	return pub.Publish(TopicSyncFailed, msg)
}
