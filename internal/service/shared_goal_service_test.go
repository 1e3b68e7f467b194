package service

import (
	"context"
	"errors"
	"testing"

	"github.com/daypace/internal/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupSharedGoalTestDB(t *testing.T) func() {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := gdb.AutoMigrate(&db.User{}, &db.Friendship{}, &db.GoalInvite{}, &db.Goal{}, &db.Task{}, &db.Activity{}); err != nil {
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

func seedFriends(t *testing.T) (alice, bob db.User) {
	t.Helper()
	alice = db.User{Username: "alice", Password: "x", Name: "Alice"}
	bob = db.User{Username: "bob", Password: "x", Name: "Bob"}
	if err := db.DB.Create(&alice).Error; err != nil {
		t.Fatalf("failed to create alice: %v", err)
	}
	if err := db.DB.Create(&bob).Error; err != nil {
		t.Fatalf("failed to create bob: %v", err)
	}
	if err := db.DB.Create(&db.Friendship{UserID: alice.ID, FriendID: bob.ID}).Error; err != nil {
		t.Fatalf("failed to create friendship: %v", err)
	}
	return alice, bob
}

func sharedGoalInput() GoalInput {
	return GoalInput{
		Type:         db.GoalTypeLearning,
		Title:        "French basics",
		TotalDays:    5,
		DailyMinutes: 30,
	}
}

func TestInviteRequiresFriendship(t *testing.T) {
	cleanup := setupSharedGoalTestDB(t)
	defer cleanup()

	alice := db.User{Username: "alice", Password: "x", Name: "Alice"}
	carol := db.User{Username: "carol", Password: "x", Name: "Carol"}
	db.DB.Create(&alice)
	db.DB.Create(&carol)

	svc := NewSharedGoalService(db.DB, stubPlanGenerator{})
	if _, err := svc.Invite(context.Background(), alice.ID, carol.ID, sharedGoalInput()); !errors.Is(err, ErrNotFriends) {
		t.Fatalf("expected ErrNotFriends, got %v", err)
	}
}

func TestInviteSinglePendingPerPair(t *testing.T) {
	cleanup := setupSharedGoalTestDB(t)
	defer cleanup()

	alice, bob := seedFriends(t)
	svc := NewSharedGoalService(db.DB, stubPlanGenerator{})

	invite, err := svc.Invite(context.Background(), alice.ID, bob.ID, sharedGoalInput())
	if err != nil {
		t.Fatalf("Invite returned error: %v", err)
	}
	if invite.Token == "" {
		t.Fatal("expected invite token")
	}

	if _, err := svc.Invite(context.Background(), alice.ID, bob.ID, sharedGoalInput()); !errors.Is(err, ErrInvitePending) {
		t.Fatalf("expected ErrInvitePending, got %v", err)
	}

	views, err := svc.ListInvites(bob.ID)
	if err != nil {
		t.Fatalf("ListInvites returned error: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("expected 1 invite, got %d", len(views))
	}
	if views[0].FromName != "Alice" || views[0].Title != "French basics" {
		t.Fatalf("unexpected invite view: %+v", views[0])
	}
}

func TestAcceptCreatesLinkedGoals(t *testing.T) {
	cleanup := setupSharedGoalTestDB(t)
	defer cleanup()

	alice, bob := seedFriends(t)
	svc := NewSharedGoalService(db.DB, stubPlanGenerator{days: []RawPlanDay{
		{DayNumber: 1, Topic: "Greetings and introductions"},
		{DayNumber: 2, Topic: "Numbers 1-100"},
	}})

	invite, err := svc.Invite(context.Background(), alice.ID, bob.ID, sharedGoalInput())
	if err != nil {
		t.Fatalf("Invite returned error: %v", err)
	}

	result, err := svc.Accept(context.Background(), bob.ID, invite.Token)
	if err != nil {
		t.Fatalf("Accept returned error: %v", err)
	}

	// 双方各得一个目标，互相链接
	if result.Goal.UserID != bob.ID || result.PartnerGoal.UserID != alice.ID {
		t.Fatalf("unexpected goal ownership: %+v / %+v", result.Goal, result.PartnerGoal)
	}
	if !result.Goal.IsShared || !result.PartnerGoal.IsShared {
		t.Fatal("expected both goals marked shared")
	}
	if result.Goal.PartnerGoalID == nil || *result.Goal.PartnerGoalID != result.PartnerGoal.ID {
		t.Fatalf("expected accepter goal linked to sender goal")
	}
	if result.PartnerGoal.PartnerGoalID == nil || *result.PartnerGoal.PartnerGoalID != result.Goal.ID {
		t.Fatalf("expected sender goal linked back")
	}

	// 同一份计划重放为两套独立任务
	var bobTasks, aliceTasks int64
	db.DB.Model(&db.Task{}).Where("goal_id = ?", result.Goal.ID).Count(&bobTasks)
	db.DB.Model(&db.Task{}).Where("goal_id = ?", result.PartnerGoal.ID).Count(&aliceTasks)
	if bobTasks != 5 || aliceTasks != 5 {
		t.Fatalf("expected 5 tasks each, got bob=%d alice=%d", bobTasks, aliceTasks)
	}

	// 邀请已删除
	if _, err := svc.Accept(context.Background(), bob.ID, invite.Token); !errors.Is(err, ErrInviteNotFound) {
		t.Fatalf("expected ErrInviteNotFound on second accept, got %v", err)
	}
}

func TestSharedProgressIsIndependent(t *testing.T) {
	cleanup := setupSharedGoalTestDB(t)
	defer cleanup()

	alice, bob := seedFriends(t)
	svc := NewSharedGoalService(db.DB, stubPlanGenerator{})

	invite, err := svc.Invite(context.Background(), alice.ID, bob.ID, sharedGoalInput())
	if err != nil {
		t.Fatalf("Invite returned error: %v", err)
	}
	result, err := svc.Accept(context.Background(), bob.ID, invite.Token)
	if err != nil {
		t.Fatalf("Accept returned error: %v", err)
	}

	// Bob 完成第 1 天，Alice 的目标不受影响
	tasks := NewTaskService(db.DB)
	today, err := tasks.Today(bob.ID)
	if err != nil {
		t.Fatalf("Today returned error: %v", err)
	}
	if _, err := tasks.Complete(bob.ID, today.Task.ID); err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}

	var aliceGoal db.Goal
	if err := db.DB.First(&aliceGoal, result.PartnerGoal.ID).Error; err != nil {
		t.Fatalf("failed to load alice goal: %v", err)
	}
	if aliceGoal.CompletedDays != 0 || aliceGoal.CurrentDay != 1 {
		t.Fatalf("expected alice progress untouched, got %+v", aliceGoal)
	}

	// 对方进度只读可见
	goals := NewGoalService(db.DB, nil)
	progress, err := goals.PartnerProgress(alice.ID, result.PartnerGoal.ID)
	if err != nil {
		t.Fatalf("PartnerProgress returned error: %v", err)
	}
	if progress.PartnerName != "Bob" {
		t.Fatalf("unexpected partner name: %q", progress.PartnerName)
	}
	if progress.CompletedDays != 1 {
		t.Fatalf("expected bob completed days 1, got %d", progress.CompletedDays)
	}
	if len(progress.Tasks) != 5 {
		t.Fatalf("expected 5 task summaries, got %d", len(progress.Tasks))
	}
}

func TestDeclineInvite(t *testing.T) {
	cleanup := setupSharedGoalTestDB(t)
	defer cleanup()

	alice, bob := seedFriends(t)
	svc := NewSharedGoalService(db.DB, stubPlanGenerator{})

	invite, err := svc.Invite(context.Background(), alice.ID, bob.ID, sharedGoalInput())
	if err != nil {
		t.Fatalf("Invite returned error: %v", err)
	}

	if err := svc.Decline(bob.ID, invite.Token); err != nil {
		t.Fatalf("Decline returned error: %v", err)
	}
	if err := svc.Decline(bob.ID, invite.Token); !errors.Is(err, ErrInviteNotFound) {
		t.Fatalf("expected ErrInviteNotFound, got %v", err)
	}

	// 拒绝后不产生任何目标
	var goalCount int64
	db.DB.Model(&db.Goal{}).Count(&goalCount)
	if goalCount != 0 {
		t.Fatalf("expected no goals after decline, got %d", goalCount)
	}
}
