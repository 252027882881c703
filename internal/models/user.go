package models

// UserRole 定义用户在社区中的身份。
type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleAlumni  UserRole = "alumni"
	RoleAdmin   UserRole = "admin"
)

// User 代表校友社区中的一个注册用户。
// 新注册的账号默认未通过审核 (Approved=false)，在管理员批准之前
// 无法访问社区功能（连接、动态、私信等）。
type User struct {
	BaseModel
	Username       string   `gorm:"type:varchar(100);uniqueIndex;not null" json:"username"`
	PasswordHash   string   `gorm:"type:varchar(255);not null" json:"-"` // 不暴露密码哈希
	Email          string   `gorm:"type:varchar(100);uniqueIndex" json:"email,omitempty"`
	Nickname       string   `gorm:"type:varchar(100)" json:"nickname,omitempty"`
	AvatarURL      string   `gorm:"type:varchar(255)" json:"avatarUrl,omitempty"`
	Bio            string   `gorm:"type:text" json:"bio,omitempty"`
	Role           UserRole `gorm:"type:varchar(20);not null;default:'student'" json:"role"`
	Approved       bool     `gorm:"not null;default:false;index" json:"approved"`
	GraduationYear int      `gorm:"default:0" json:"graduationYear,omitempty"`
	Major          string   `gorm:"type:varchar(100)" json:"major,omitempty"`

	// 关联关系
	Posts []Post `gorm:"foreignKey:AuthorID" json:"posts,omitempty"` // 用户发布的动态
}

// UserBasicInfo holds minimal public information about a user.
// Used when embedding the counterparty of a connection, the author of a
// post, etc.
type UserBasicInfo struct {
	ID        uint     `json:"id"`
	Username  string   `json:"username"`
	Nickname  string   `json:"nickname,omitempty"`
	AvatarURL string   `json:"avatarUrl,omitempty"`
	Role      UserRole `json:"role,omitempty"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// TableName 指定 User 模型的表名。
func (User) TableName() string {
	return "users"
}
