package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/daypace/internal/db"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrInviteNotFound 在邀请不存在或不属于当前用户时返回
	ErrInviteNotFound = errors.New("goal invite not found")
	// ErrNotFriends 表示只能邀请好友共建目标
	ErrNotFriends = errors.New("users are not friends")
	// ErrInvitePending 表示对同一好友已有未处理的邀请
	ErrInvitePending = errors.New("invite already pending")
)

// inviteGoalData 是随邀请持久化的目标参数与计划快照
type inviteGoalData struct {
	Type         string       `json:"type"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	TotalDays    int          `json:"totalDays"`
	DailyMinutes int          `json:"dailyMinutes"`
	Plan         []RawPlanDay `json:"plan"`
}

// InviteView 是返回给接收方的邀请摘要
type InviteView struct {
	Token        string
	FromUserID   uint
	FromName     string
	Type         string
	Title        string
	Description  string
	TotalDays    int
	DailyMinutes int
	CreatedAt    time.Time
}

// AcceptResult 返回接受邀请后创建的两个目标
type AcceptResult struct {
	Goal        db.Goal
	PartnerGoal db.Goal
}

// SharedGoalService 负责共享目标的邀请与接受。
// 计划在发出邀请时生成一次，接受时把同一份快照各自重放为两套独立任务；
// 创建之后双方进度互不同步，对方进度只读。
type SharedGoalService struct {
	db         *gorm.DB
	generator  PlanGenerator
	normalizer *PlanNormalizer
}

// NewSharedGoalService 构造 SharedGoalService。
func NewSharedGoalService(gdb *gorm.DB, generator PlanGenerator) *SharedGoalService {
	return &SharedGoalService{db: gdb, generator: generator, normalizer: NewPlanNormalizer()}
}

// Invite 向好友发出共享目标邀请，计划内容随邀请生成并固化。
func (s *SharedGoalService) Invite(ctx context.Context, fromUserID, friendID uint, input GoalInput) (*db.GoalInvite, error) {
	if err := validateGoalInput(&input); err != nil {
		return nil, err
	}

	friends, err := areFriends(s.db, fromUserID, friendID)
	if err != nil {
		return nil, err
	}
	if !friends {
		return nil, ErrNotFriends
	}

	var existing int64
	if err := s.db.Model(&db.GoalInvite{}).
		Where("from_user_id = ? AND to_user_id = ?", fromUserID, friendID).
		Count(&existing).Error; err != nil {
		return nil, fmt.Errorf("check pending invites: %w", err)
	}
	if existing > 0 {
		return nil, ErrInvitePending
	}

	req := PlanRequest{
		Type:         input.Type,
		Title:        strings.TrimSpace(input.Title),
		Description:  strings.TrimSpace(input.Description),
		TotalDays:    input.TotalDays,
		DailyMinutes: input.DailyMinutes,
	}

	rawDays, err := s.generator.GeneratePlan(ctx, req)
	if err != nil || len(rawDays) == 0 {
		rawDays = FallbackPlan(req)
	}

	data, err := json.Marshal(inviteGoalData{
		Type:         req.Type,
		Title:        req.Title,
		Description:  req.Description,
		TotalDays:    req.TotalDays,
		DailyMinutes: req.DailyMinutes,
		Plan:         rawDays,
	})
	if err != nil {
		return nil, fmt.Errorf("encode invite data: %w", err)
	}

	invite := db.GoalInvite{
		Token:      uuid.NewString(),
		FromUserID: fromUserID,
		ToUserID:   friendID,
		GoalData:   string(data),
	}
	if err := s.db.Create(&invite).Error; err != nil {
		return nil, fmt.Errorf("create invite: %w", err)
	}

	return &invite, nil
}

// ListInvites 返回用户收到的全部待处理邀请。
func (s *SharedGoalService) ListInvites(userID uint) ([]InviteView, error) {
	var invites []db.GoalInvite
	if err := s.db.Where("to_user_id = ?", userID).Order("created_at DESC").Find(&invites).Error; err != nil {
		return nil, fmt.Errorf("list invites: %w", err)
	}

	views := make([]InviteView, 0, len(invites))
	for _, invite := range invites {
		var data inviteGoalData
		if err := json.Unmarshal([]byte(invite.GoalData), &data); err != nil {
			continue
		}

		var from db.User
		if err := s.db.First(&from, invite.FromUserID).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("load invite sender: %w", err)
		}

		views = append(views, InviteView{
			Token:        invite.Token,
			FromUserID:   invite.FromUserID,
			FromName:     from.Name,
			Type:         data.Type,
			Title:        data.Title,
			Description:  data.Description,
			TotalDays:    data.TotalDays,
			DailyMinutes: data.DailyMinutes,
			CreatedAt:    invite.CreatedAt,
		})
	}

	return views, nil
}

// Accept 接受邀请：为双方各建一个目标并互相链接，
// 同一份计划快照重放为两套内容相同、进度独立的任务集，邀请随之删除。
func (s *SharedGoalService) Accept(ctx context.Context, userID uint, token string) (*AcceptResult, error) {
	var invite db.GoalInvite
	if err := s.db.Where("token = ? AND to_user_id = ?", token, userID).First(&invite).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInviteNotFound
		}
		return nil, fmt.Errorf("load invite: %w", err)
	}

	var data inviteGoalData
	if err := json.Unmarshal([]byte(invite.GoalData), &data); err != nil {
		return nil, fmt.Errorf("decode invite data: %w", err)
	}

	req := PlanRequest{
		Type:         data.Type,
		Title:        data.Title,
		Description:  data.Description,
		TotalDays:    data.TotalDays,
		DailyMinutes: data.DailyMinutes,
	}

	rawDays := data.Plan
	if len(rawDays) == 0 {
		rawDays = FallbackPlan(req)
	}
	specs := s.normalizer.NormalizePlan(req, rawDays)

	snapshot, err := json.Marshal(rawDays)
	if err != nil {
		return nil, fmt.Errorf("encode plan snapshot: %w", err)
	}

	startDate := startOfDay(time.Now())
	senderID := invite.FromUserID

	var senderGoal, accepterGoal db.Goal

	err = s.db.Transaction(func(tx *gorm.DB) error {
		senderGoal = db.Goal{
			UserID:        senderID,
			Type:          req.Type,
			Title:         req.Title,
			Description:   req.Description,
			TotalDays:     req.TotalDays,
			DailyMinutes:  req.DailyMinutes,
			StartDate:     startDate,
			CurrentDay:    1,
			IsActive:      true,
			IsShared:      true,
			PartnerID:     &userID,
			GeneratedPlan: string(snapshot),
		}
		if err := tx.Create(&senderGoal).Error; err != nil {
			return fmt.Errorf("create sender goal: %w", err)
		}

		accepterGoal = db.Goal{
			UserID:        userID,
			Type:          req.Type,
			Title:         req.Title,
			Description:   req.Description,
			TotalDays:     req.TotalDays,
			DailyMinutes:  req.DailyMinutes,
			StartDate:     startDate,
			CurrentDay:    1,
			IsActive:      true,
			IsShared:      true,
			PartnerID:     &senderID,
			PartnerGoalID: &senderGoal.ID,
			GeneratedPlan: string(snapshot),
		}
		if err := tx.Create(&accepterGoal).Error; err != nil {
			return fmt.Errorf("create accepter goal: %w", err)
		}

		// 回填对称链接
		if err := tx.Model(&senderGoal).Update("partner_goal_id", accepterGoal.ID).Error; err != nil {
			return fmt.Errorf("link sender goal: %w", err)
		}
		senderGoal.PartnerGoalID = &accepterGoal.ID

		senderTasks := BuildTasks(senderGoal.ID, senderID, specs, startDate)
		if err := tx.Create(&senderTasks).Error; err != nil {
			return fmt.Errorf("create sender tasks: %w", err)
		}

		accepterTasks := BuildTasks(accepterGoal.ID, userID, specs, startDate)
		if err := tx.Create(&accepterTasks).Error; err != nil {
			return fmt.Errorf("create accepter tasks: %w", err)
		}

		if err := tx.Delete(&invite).Error; err != nil {
			return fmt.Errorf("remove invite: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &AcceptResult{Goal: accepterGoal, PartnerGoal: senderGoal}, nil
}

// Decline 拒绝并删除邀请。
func (s *SharedGoalService) Decline(userID uint, token string) error {
	res := s.db.Where("token = ? AND to_user_id = ?", token, userID).Delete(&db.GoalInvite{})
	if res.Error != nil {
		return fmt.Errorf("decline invite: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrInviteNotFound
	}
	return nil
}

func areFriends(gdb *gorm.DB, a, b uint) (bool, error) {
	var count int64
	if err := gdb.Model(&db.Friendship{}).
		Where("(user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)", a, b, b, a).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("check friendship: %w", err)
	}
	return count > 0, nil
}
