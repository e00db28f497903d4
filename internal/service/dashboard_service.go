package service

import (
	"context"
	"time"

	"github.com/carbonlog/internal/carbon"
	"github.com/carbonlog/internal/db"
	"golang.org/x/sync/errgroup"
)

// Dashboard 汇总首页所需的全部数据
type Dashboard struct {
	Profile    UserProfile
	Weekly     carbon.Summary
	Recent     []db.Activity
	Challenges []db.UserChallenge
}

// DashboardService 并发加载仪表盘各区块
type DashboardService struct {
	users      *UserService
	activities *ActivityService
	challenges *ChallengeService
}

// NewDashboardService 构造 DashboardService
func NewDashboardService(users *UserService, activities *ActivityService, challenges *ChallengeService) *DashboardService {
	return &DashboardService{users: users, activities: activities, challenges: challenges}
}

// Load 加载用户仪表盘，任一区块失败即返回错误
func (s *DashboardService) Load(ctx context.Context, userID uint, window carbon.Window, recentLimit int) (*Dashboard, error) {
	var dashboard Dashboard
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		profile, err := s.users.Profile(userID)
		if err != nil {
			return err
		}
		dashboard.Profile = *profile
		return nil
	})

	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		summary, err := s.activities.Summary(userID, window)
		if err != nil {
			return err
		}
		dashboard.Weekly = summary
		return nil
	})

	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		recent, err := s.activities.Recent(userID, recentLimit)
		if err != nil {
			return err
		}
		dashboard.Recent = recent
		return nil
	})

	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		entries, err := s.challenges.ListForUser(userID)
		if err != nil {
			return err
		}
		dashboard.Challenges = entries
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &dashboard, nil
}

// WeekWindow 返回包含 now 的自然周窗口
func WeekWindow(now time.Time) carbon.Window {
	return carbon.Window{Kind: carbon.WindowCalendarWeek, Reference: now}
}
