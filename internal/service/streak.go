package service

import (
	"mathquest_backend/internal/model"
	"time"
)

// UpdateStreak 按自然日推进用户的连续学习状态机：
// 无历史→1；同一天→不变（日期也不推进）；隔一天→+1；隔多天→重置为1。
// 必须在成就评估之前调用，阈值条件才能看到更新后的值。
func UpdateStreak(user *model.User, now time.Time) {
	if user.LastActivityDate == nil {
		user.StreakCount = 1
		user.LastActivityDate = &now
		return
	}

	switch days := daysBetween(*user.LastActivityDate, now); {
	case days == 0:
		// 同一天的重复活动不计入连续天数
		return
	case days == 1:
		user.StreakCount++
	default:
		user.StreakCount = 1
	}
	user.LastActivityDate = &now
}

// daysBetween 两个时刻相隔的自然日数，统一转换到前者的时区后截断到日期
func daysBetween(a, b time.Time) int {
	b = b.In(a.Location())
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, a.Location())
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, a.Location())
	return int(db.Sub(da).Hours() / 24)
}
