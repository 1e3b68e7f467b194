package db

import (
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// User 定义了用户模型
// ShowInFeed 控制是否出现在公共动态流，ReminderEnabled 控制每日提醒扫描
type User struct {
	gorm.Model
	Username        string `gorm:"unique;not null"`
	Password        string `gorm:"not null"`
	Name            string
	ShowInFeed      bool `gorm:"default:true"`
	ReminderEnabled bool `gorm:"default:true"`
	Timezone        string
	LastActiveAt    *time.Time
}

// Friendship 表示一对好友关系，UserID < FriendID 保证每对只存一行
type Friendship struct {
	gorm.Model
	UserID   uint `gorm:"index:idx_friend_pair,unique;not null"`
	FriendID uint `gorm:"index:idx_friend_pair,unique;not null"`
}

// GoalInvite 表示一条待处理的共享目标邀请
// Token 为对外暴露的 uuid，GoalData 保存目标参数与已生成计划的 JSON 快照
// 接受或拒绝后删除
type GoalInvite struct {
	gorm.Model
	Token      string `gorm:"size:36;uniqueIndex;not null"`
	FromUserID uint   `gorm:"index;not null"`
	ToUserID   uint   `gorm:"index;not null"`
	GoalData   string `gorm:"type:text"`
}

// EnsureUser 存在性检查：若提供的用户名与密码均非空且不存在对应账号，则创建一个 bcrypt 哈希的用户。
func EnsureUser(username, password string) error {
	trimmedUser := strings.TrimSpace(username)
	trimmedPassword := strings.TrimSpace(password)
	if trimmedUser == "" || trimmedPassword == "" {
		return nil
	}

	if DB == nil {
		return errors.New("database not initialized")
	}

	var existing User
	if err := DB.Where("username = ?", trimmedUser).First(&existing).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(trimmedPassword), bcrypt.DefaultCost)
		if err != nil {
			return err
		}

		return DB.Create(&User{Username: trimmedUser, Password: string(hashed), Name: trimmedUser}).Error
	}

	return nil
}
