package models

import "time"

// Post 代表社区动态流中的一条动态。
type Post struct {
	BaseModel
	AuthorID uint   `gorm:"not null;index" json:"authorId"`
	Content  string `gorm:"type:text;not null" json:"content"`
	ImageURL string `gorm:"type:varchar(255)" json:"imageUrl,omitempty"`

	// 关联关系
	Author   User      `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Likes    []Like    `gorm:"foreignKey:PostID" json:"likes,omitempty"`
	Comments []Comment `gorm:"foreignKey:PostID" json:"comments,omitempty"`
}

// TableName 指定 Post 模型的表名。
func (Post) TableName() string {
	return "posts"
}

// Like records that a user liked a post. The composite unique index makes
// a second like by the same user a duplicate-key error, which the service
// treats as an idempotent no-op. Likes are hard-deleted on unlike.
type Like struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_like_post_user" json:"postId"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_like_post_user" json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// TableName 指定 Like 模型的表名。
func (Like) TableName() string {
	return "likes"
}

// Comment 代表动态下的一条评论。
type Comment struct {
	BaseModel
	PostID   uint   `gorm:"not null;index" json:"postId"`
	AuthorID uint   `gorm:"not null;index" json:"authorId"`
	Content  string `gorm:"type:text;not null" json:"content"`

	// 关联关系
	Author User `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
}

// TableName 指定 Comment 模型的表名。
func (Comment) TableName() string {
	return "comments"
}

// PostWithCounts is a feed DTO: a post plus its author's public info,
// aggregate counts, and whether the viewer already liked it.
type PostWithCounts struct {
	Post
	AuthorInfo   *UserBasicInfo `json:"authorInfo,omitempty"`
	LikeCount    int64          `json:"likeCount"`
	CommentCount int64          `json:"commentCount"`
	LikedByMe    bool           `json:"likedByMe"`
}
