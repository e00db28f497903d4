package carbon

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// ProgressState 是用户挑战的进度快照
type ProgressState struct {
	Progress    decimal.Decimal
	IsCompleted bool
	CompletedAt *time.Time
}

// ProgressUpdate 为一次进度评估的结果。
// Completed 仅在本次更新触发 未完成->完成 的转换时为 true，调用方据此发放挑战积分。
type ProgressUpdate struct {
	State     ProgressState
	Completed bool
}

// EvaluateProgress 根据上报的进度值计算新的挑战状态。
//
// 进度由客户端独立上报，存储值取 max(当前, 上报)，保证单调不减。
// 完成状态是终态：一旦完成不会回退，CompletedAt 只在转换时写入一次。
func EvaluateProgress(state ProgressState, target decimal.Decimal, reported float64, now time.Time) (ProgressUpdate, error) {
	if math.IsNaN(reported) || math.IsInf(reported, 0) {
		return ProgressUpdate{}, invalidInput("update progress", "progress must be a finite number")
	}
	if reported < 0 {
		return ProgressUpdate{}, invalidInput("update progress", "progress must not be negative, got %v", reported)
	}

	next := state
	value := decimal.NewFromFloat(reported)
	if value.GreaterThan(state.Progress) {
		next.Progress = value
	}

	if state.IsCompleted {
		return ProgressUpdate{State: next}, nil
	}

	if next.Progress.GreaterThanOrEqual(target) {
		completedAt := now
		next.IsCompleted = true
		next.CompletedAt = &completedAt
		return ProgressUpdate{State: next, Completed: true}, nil
	}

	return ProgressUpdate{State: next}, nil
}
