package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/daypace/internal/db"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	// ErrUserNotFound 在用户不存在时返回
	ErrUserNotFound = errors.New("user not found")
	// ErrUsernameTaken 在注册用户名已被占用时返回
	ErrUsernameTaken = errors.New("username already taken")
	// ErrInvalidCredentials 在登录校验失败时返回
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrAlreadyFriends 表示好友关系已存在
	ErrAlreadyFriends = errors.New("already friends")
)

// UserSettingsInput 定义可更新的用户偏好，nil 字段保持不变
type UserSettingsInput struct {
	ShowInFeed      *bool
	ReminderEnabled *bool
	Timezone        string
}

// UserService 负责账号注册、登录校验与好友关系
type UserService struct {
	db *gorm.DB
}

// NewUserService 构造 UserService
func NewUserService(gdb *gorm.DB) *UserService {
	return &UserService{db: gdb}
}

// Register 创建新账号，密码以 bcrypt 哈希存储。
func (s *UserService) Register(username, password, name string) (*db.User, error) {
	username = strings.TrimSpace(username)
	name = strings.TrimSpace(name)
	if username == "" || strings.TrimSpace(password) == "" {
		return nil, fmt.Errorf("username and password are required")
	}
	if name == "" {
		name = username
	}

	var existing db.User
	if err := s.db.Where("username = ?", username).First(&existing).Error; err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("check username: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := db.User{Username: username, Password: string(hashed), Name: name}
	if err := s.db.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	return &user, nil
}

// Authenticate 校验用户名密码，成功时刷新最近活跃时间。
func (s *UserService) Authenticate(username, password string) (*db.User, error) {
	var user db.User
	if err := s.db.Where("username = ?", strings.TrimSpace(username)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	if err := s.db.Model(&user).Update("last_active_at", now).Error; err != nil {
		return nil, fmt.Errorf("touch user: %w", err)
	}
	user.LastActiveAt = &now

	return &user, nil
}

// Get 按 ID 读取用户。
func (s *UserService) Get(userID uint) (*db.User, error) {
	var user db.User
	if err := s.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// UpdateSettings 更新用户偏好，仅覆盖显式提供的字段。
func (s *UserService) UpdateSettings(userID uint, input UserSettingsInput) (*db.User, error) {
	user, err := s.Get(userID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if input.ShowInFeed != nil {
		updates["show_in_feed"] = *input.ShowInFeed
		user.ShowInFeed = *input.ShowInFeed
	}
	if input.ReminderEnabled != nil {
		updates["reminder_enabled"] = *input.ReminderEnabled
		user.ReminderEnabled = *input.ReminderEnabled
	}
	if tz := strings.TrimSpace(input.Timezone); tz != "" {
		updates["timezone"] = tz
		user.Timezone = tz
	}

	if len(updates) == 0 {
		return user, nil
	}

	if err := s.db.Model(user).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("update settings: %w", err)
	}

	return user, nil
}

// AddFriend 按用户名建立好友关系，每对用户只存一行。
func (s *UserService) AddFriend(userID uint, friendUsername string) (*db.User, error) {
	var friend db.User
	if err := s.db.Where("username = ?", strings.TrimSpace(friendUsername)).First(&friend).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load friend: %w", err)
	}

	if friend.ID == userID {
		return nil, fmt.Errorf("cannot befriend yourself")
	}

	exists, err := areFriends(s.db, userID, friend.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrAlreadyFriends
	}

	low, high := userID, friend.ID
	if low > high {
		low, high = high, low
	}
	if err := s.db.Create(&db.Friendship{UserID: low, FriendID: high}).Error; err != nil {
		return nil, fmt.Errorf("create friendship: %w", err)
	}

	return &friend, nil
}

// ListFriends 返回用户的全部好友。
func (s *UserService) ListFriends(userID uint) ([]db.User, error) {
	var links []db.Friendship
	if err := s.db.Where("user_id = ? OR friend_id = ?", userID, userID).Find(&links).Error; err != nil {
		return nil, fmt.Errorf("list friendships: %w", err)
	}

	ids := make([]uint, 0, len(links))
	for _, link := range links {
		if link.UserID == userID {
			ids = append(ids, link.FriendID)
		} else {
			ids = append(ids, link.UserID)
		}
	}

	if len(ids) == 0 {
		return []db.User{}, nil
	}

	var friends []db.User
	if err := s.db.Where("id IN ?", ids).Order("username ASC").Find(&friends).Error; err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}

	return friends, nil
}
