package service

import (
	"testing"
	"time"

	"github.com/daypace/internal/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupActivityTestDB(t *testing.T) func() {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := gdb.AutoMigrate(&db.User{}, &db.Goal{}, &db.Task{}, &db.Activity{}); err != nil {
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

func TestRecordRespectsShowInFeed(t *testing.T) {
	cleanup := setupActivityTestDB(t)
	defer cleanup()

	public := db.User{Username: "alice", Password: "x", Name: "Alice", ShowInFeed: true}
	private := db.User{Username: "bob", Password: "x", Name: "Bob"}
	db.DB.Create(&public)
	db.DB.Create(&private)
	// default:true 的布尔字段无法在 Create 时置为 false，改用显式更新
	db.DB.Model(&private).Update("show_in_feed", false)

	svc := NewActivityService(db.DB)

	if err := svc.Record(public.ID, 1, db.ActivityTypeCompleted, "Alice completed day 1"); err != nil {
		t.Fatalf("Record returned error: %v", err)
	}
	// 关闭公开展示时静默跳过，不报错
	if err := svc.Record(private.ID, 1, db.ActivityTypeCompleted, "Bob completed day 1"); err != nil {
		t.Fatalf("Record for private user returned error: %v", err)
	}

	var count int64
	db.DB.Model(&db.Activity{}).Count(&count)
	if count != 1 {
		t.Fatalf("expected 1 recorded activity, got %d", count)
	}

	feed, err := svc.Feed(20, 0)
	if err != nil {
		t.Fatalf("Feed returned error: %v", err)
	}
	if len(feed) != 1 || feed[0].UserName != "Alice" {
		t.Fatalf("unexpected feed: %+v", feed)
	}
}

func TestFeedPagination(t *testing.T) {
	cleanup := setupActivityTestDB(t)
	defer cleanup()

	user := db.User{Username: "alice", Password: "x", Name: "Alice", ShowInFeed: true}
	db.DB.Create(&user)

	svc := NewActivityService(db.DB)
	for i := 0; i < 5; i++ {
		if err := svc.Record(user.ID, 1, db.ActivityTypeCompleted, "entry"); err != nil {
			t.Fatalf("Record returned error: %v", err)
		}
	}

	page, err := svc.Feed(2, 0)
	if err != nil {
		t.Fatalf("Feed returned error: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected page of 2, got %d", len(page))
	}

	rest, err := svc.Feed(10, 2)
	if err != nil {
		t.Fatalf("Feed returned error: %v", err)
	}
	if len(rest) != 3 {
		t.Fatalf("expected 3 remaining entries, got %d", len(rest))
	}
}

func TestMyActivity(t *testing.T) {
	cleanup := setupActivityTestDB(t)
	defer cleanup()

	alice := db.User{Username: "alice", Password: "x", Name: "Alice", ShowInFeed: true}
	bob := db.User{Username: "bob", Password: "x", Name: "Bob", ShowInFeed: true}
	db.DB.Create(&alice)
	db.DB.Create(&bob)

	svc := NewActivityService(db.DB)
	svc.Record(alice.ID, 1, db.ActivityTypeStarted, "Alice started")
	svc.Record(bob.ID, 2, db.ActivityTypeStarted, "Bob started")

	mine, err := svc.MyActivity(alice.ID)
	if err != nil {
		t.Fatalf("MyActivity returned error: %v", err)
	}
	if len(mine) != 1 || mine[0].Message != "Alice started" {
		t.Fatalf("unexpected activity list: %+v", mine)
	}
}

func TestDailyStats(t *testing.T) {
	cleanup := setupActivityTestDB(t)
	defer cleanup()

	now := time.Now()
	yesterday := now.AddDate(0, 0, -1)

	active := db.User{Username: "alice", Password: "x", Name: "Alice", ShowInFeed: true, LastActiveAt: &now}
	idle := db.User{Username: "bob", Password: "x", Name: "Bob", ShowInFeed: true, LastActiveAt: &yesterday}
	hidden := db.User{Username: "carol", Password: "x", Name: "Carol"}
	db.DB.Create(&active)
	db.DB.Create(&idle)
	db.DB.Create(&hidden)
	db.DB.Model(&hidden).Update("show_in_feed", false)

	// alice 今天完成了一个任务，bob 昨天完成过
	db.DB.Create(&db.Task{GoalID: 1, UserID: active.ID, DayNumber: 1, Title: "t", Status: db.TaskStatusCompleted, ScheduledDate: now, CompletedAt: &now})
	db.DB.Create(&db.Task{GoalID: 2, UserID: idle.ID, DayNumber: 1, Title: "t", Status: db.TaskStatusCompleted, ScheduledDate: yesterday, CompletedAt: &yesterday})

	svc := NewActivityService(db.DB)
	stats, err := svc.Stats(now)
	if err != nil {
		t.Fatalf("Stats returned error: %v", err)
	}

	if stats.UsersCompletedToday != 1 {
		t.Fatalf("expected 1 user completed today, got %d", stats.UsersCompletedToday)
	}
	if stats.UsersActiveToday != 1 {
		t.Fatalf("expected 1 active user, got %d", stats.UsersActiveToday)
	}
	if stats.CommunitySize != 2 {
		t.Fatalf("expected community size 2, got %d", stats.CommunitySize)
	}
}
