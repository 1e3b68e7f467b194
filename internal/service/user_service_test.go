package service

import (
	"errors"
	"testing"

	"github.com/daypace/internal/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupUserTestDB(t *testing.T) func() {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := gdb.AutoMigrate(&db.User{}, &db.Friendship{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	db.DB = gdb

	return func() {
		sqlDB, err := db.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}

func TestRegisterAndAuthenticate(t *testing.T) {
	cleanup := setupUserTestDB(t)
	defer cleanup()

	svc := NewUserService(db.DB)

	user, err := svc.Register("alice", "secret123", "Alice")
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if user.ID == 0 {
		t.Fatal("expected user to have ID")
	}
	// 密码不得明文存储
	if user.Password == "secret123" {
		t.Fatal("expected password to be hashed")
	}
	// 默认开启公开展示与提醒
	var stored db.User
	if err := db.DB.First(&stored, user.ID).Error; err != nil {
		t.Fatalf("failed to reload user: %v", err)
	}
	if !stored.ShowInFeed || !stored.ReminderEnabled {
		t.Fatalf("unexpected defaults: %+v", stored)
	}

	if _, err := svc.Register("alice", "other", "Other"); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}

	authed, err := svc.Authenticate("alice", "secret123")
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	if authed.ID != user.ID {
		t.Fatalf("expected same user, got %d", authed.ID)
	}
	if authed.LastActiveAt == nil {
		t.Fatal("expected last active timestamp to be set")
	}

	if _, err := svc.Authenticate("alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Authenticate("nobody", "secret123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}

func TestUpdateSettingsPartial(t *testing.T) {
	cleanup := setupUserTestDB(t)
	defer cleanup()

	svc := NewUserService(db.DB)
	user, err := svc.Register("alice", "secret123", "Alice")
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	hide := false
	updated, err := svc.UpdateSettings(user.ID, UserSettingsInput{ShowInFeed: &hide, Timezone: "Asia/Shanghai"})
	if err != nil {
		t.Fatalf("UpdateSettings returned error: %v", err)
	}
	if updated.ShowInFeed {
		t.Fatal("expected show_in_feed off")
	}
	if updated.Timezone != "Asia/Shanghai" {
		t.Fatalf("unexpected timezone: %q", updated.Timezone)
	}
	// 未提供的字段保持原值
	if !updated.ReminderEnabled {
		t.Fatal("expected reminder setting unchanged")
	}
}

func TestAddFriendAndList(t *testing.T) {
	cleanup := setupUserTestDB(t)
	defer cleanup()

	svc := NewUserService(db.DB)
	alice, _ := svc.Register("alice", "secret123", "Alice")
	bob, _ := svc.Register("bob", "secret123", "Bob")

	friend, err := svc.AddFriend(alice.ID, "bob")
	if err != nil {
		t.Fatalf("AddFriend returned error: %v", err)
	}
	if friend.ID != bob.ID {
		t.Fatalf("unexpected friend: %+v", friend)
	}

	// 关系是双向的，反向添加视为重复
	if _, err := svc.AddFriend(bob.ID, "alice"); !errors.Is(err, ErrAlreadyFriends) {
		t.Fatalf("expected ErrAlreadyFriends, got %v", err)
	}

	aliceFriends, err := svc.ListFriends(alice.ID)
	if err != nil {
		t.Fatalf("ListFriends returned error: %v", err)
	}
	bobFriends, err := svc.ListFriends(bob.ID)
	if err != nil {
		t.Fatalf("ListFriends returned error: %v", err)
	}
	if len(aliceFriends) != 1 || aliceFriends[0].ID != bob.ID {
		t.Fatalf("unexpected alice friends: %+v", aliceFriends)
	}
	if len(bobFriends) != 1 || bobFriends[0].ID != alice.ID {
		t.Fatalf("unexpected bob friends: %+v", bobFriends)
	}

	if _, err := svc.AddFriend(alice.ID, "nobody"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := svc.AddFriend(alice.ID, "alice"); err == nil {
		t.Fatal("expected error when befriending self")
	}
}
