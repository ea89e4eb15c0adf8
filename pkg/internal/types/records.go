package types

// ListRecordsQuery 记录列表过滤参数.
type ListRecordsQuery struct {
	Page         int    `form:"page"         json:"page"                   rule:"min=0"`
	Limit        int    `form:"limit"        json:"limit"                  rule:"min=0,max=1000"`
	LocationType string `form:"locationType" json:"locationType,omitempty"`
	Search       string `form:"search"       json:"search,omitempty"`
	StartDate    string `form:"startDate"    json:"startDate,omitempty"` // YYYY-MM-DD
	EndDate      string `form:"endDate"      json:"endDate,omitempty"`   // YYYY-MM-DD
}

// AttachPhotoResult 单张照片的挂载结果.
type AttachPhotoResult struct {
	FileName string `json:"file_name"`
	PhotoID  string `json:"photo_id,omitempty"`
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
}

// AttachPhotosResponse 批量挂照片的响应；单张失败只计数，批次不会整体中断.
type AttachPhotosResponse struct {
	Succeeded int                 `json:"succeeded"`
	Failed    int                 `json:"failed"`
	Results   []AttachPhotoResult `json:"results"`
}

// FlushResult 退出前保底落盘的结果.
type FlushResult struct {
	Saved    bool   `json:"saved"`
	Snapshot bool   `json:"snapshot"`
	Error    string `json:"error,omitempty"`
}

// SyncPushReport 单向推送到同步服务器的结果汇总.
type SyncPushReport struct {
	Pushed        int `json:"pushed"`
	Failed        int `json:"failed"`
	PhotosPushed  int `json:"photos_pushed"`
	PhotoFailures int `json:"photo_failures"`
}
