// Package model 定义商业数据库的领域模型：采集记录、楼层、照片及其存储行.
package model

// 楼层名称闭集，"other" 为哨兵值，选中时必须填写自定义名称.
const (
	FloorB1    = "B1"
	Floor1F    = "1F"
	Floor2F    = "2F"
	Floor3F    = "3F"
	Floor4F    = "4F"
	Floor5F    = "5F"
	FloorRF    = "RF"
	FloorOther = "other"
)

// MaxPhotosPerFloor 每层楼最多可挂的照片数.
const MaxPhotosPerFloor = 5

// FloorNames 楼层选项的展示顺序.
var FloorNames = []string{FloorB1, Floor1F, Floor2F, Floor3F, Floor4F, Floor5F, FloorRF, FloorOther}

// Record 一条采集记录（一个地点）.
// Timestamp 在创建时写入后不再变化，LastSaved 每次保存时刷新.
type Record struct {
	ID           string  `json:"id"                     rule:"required"`
	Address      Address `json:"address"`
	LocationType string  `json:"locationType,omitempty"`
	CheckItems   string  `json:"checkItems,omitempty"`
	Floors       []Floor `json:"floors"                 rule:"dive"`
	Notes        string  `json:"notes,omitempty"`
	Timestamp    int64   `json:"timestamp"              rule:"required"`
	LastSaved    int64   `json:"lastSaved,omitempty"`
}

// Address 地点地址信息.
type Address struct {
	AddressAndName string `json:"addressAndName"`
}

// Floor 记录内的一个楼层条目.
type Floor struct {
	ID              string  `json:"id"                        rule:"required"`
	FloorName       string  `json:"floorName"                 rule:"required,oneof=B1 1F 2F 3F 4F 5F RF other"`
	CustomFloorName string  `json:"customFloorName,omitempty"`
	FloorInfo       string  `json:"floorInfo"`
	Photos          []Photo `json:"photos"                    rule:"max=5,dive"`
	IsCompleted     bool    `json:"isCompleted,omitempty"`
}

// Photo 楼层照片；URL 在迁移前是内联 data URL，迁移后为空或远端地址.
type Photo struct {
	ID        string `json:"id"              rule:"required"`
	Name      string `json:"name"`
	URL       string `json:"url,omitempty"`
	Size      int64  `json:"size,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Clone 返回记录的深拷贝，楼层与照片切片均独立，改动互不影响.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}

	out := *r
	if r.Floors != nil {
		out.Floors = make([]Floor, len(r.Floors))

		for i := range r.Floors {
			f := r.Floors[i]
			if f.Photos != nil {
				f.Photos = append([]Photo(nil), f.Photos...)
			}

			out.Floors[i] = f
		}
	}

	return &out
}

// EffectiveSaved 返回排序用的时间：优先 LastSaved，未保存过则退回创建时间.
func (r *Record) EffectiveSaved() int64 {
	if r.LastSaved > 0 {
		return r.LastSaved
	}

	return r.Timestamp
}

// FindFloor 按楼层 ID 查找，找不到返回 nil.
func (r *Record) FindFloor(floorID string) *Floor {
	for i := range r.Floors {
		if r.Floors[i].ID == floorID {
			return &r.Floors[i]
		}
	}

	return nil
}

// PhotoCount 返回记录内所有楼层的照片总数.
func (r *Record) PhotoCount() int {
	n := 0
	for i := range r.Floors {
		n += len(r.Floors[i].Photos)
	}

	return n
}

// EffectiveName 返回展示用楼层名，哨兵值替换为自定义名称.
func (f *Floor) EffectiveName() string {
	if f.FloorName == FloorOther && f.CustomFloorName != "" {
		return f.CustomFloorName
	}

	return f.FloorName
}

// CanComplete 判断楼层是否满足完成条件：
// 有楼层信息或至少一张照片；选了 "other" 还必须填自定义名称.
func (f *Floor) CanComplete() bool {
	if f.FloorName == FloorOther && f.CustomFloorName == "" {
		return false
	}

	return f.FloorInfo != "" || len(f.Photos) > 0
}

// FindPhoto 按照片 ID 查找，找不到返回 nil.
func (f *Floor) FindPhoto(photoID string) *Photo {
	for i := range f.Photos {
		if f.Photos[i].ID == photoID {
			return &f.Photos[i]
		}
	}

	return nil
}
