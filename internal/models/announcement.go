package models

// Announcement 代表管理员发布的全站公告。
// 只有管理员可以创建和删除，所有已审核用户可见。
type Announcement struct {
	BaseModel
	AuthorID uint   `gorm:"not null;index" json:"authorId"`
	Title    string `gorm:"type:varchar(255);not null" json:"title"`
	Body     string `gorm:"type:text;not null" json:"body"`

	// 关联关系
	Author User `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
}

// TableName 指定 Announcement 模型的表名。
func (Announcement) TableName() string {
	return "announcements"
}
