package model

import (
	"math"
	"time"
)

type UserRole string

const (
	Student UserRole = "student"
	Teacher UserRole = "teacher"
	Admin   UserRole = "admin"
)

// swagger:model User
type User struct {
	BaseModel
	Name             string        `gorm:"size:100;not null" json:"Name"`
	Email            string        `gorm:"size:100;unique;not null" json:"Email"`
	Password         string        `gorm:"size:100;not null" json:"-"`
	Role             UserRole      `gorm:"type:varchar(20);default:'student'" json:"Role"`
	XP               int           `gorm:"default:0" json:"XP"`
	Level            int           `gorm:"default:1" json:"Level"`
	StreakCount      int           `gorm:"default:0" json:"StreakCount"`
	LastActivityDate *time.Time    `json:"LastActivityDate"`
	Achievements     []Achievement `gorm:"foreignKey:UserID" json:"Achievements,omitempty"`
	// Version 乐观锁版本号，聚合每次落库时 +1
	Version   uint      `gorm:"default:0" json:"-"`
	LastLogin time.Time `json:"LastLogin"`
	LastSeen  time.Time `json:"LastSeen"`
}

func (User) TableName() string {
	return "users"
}

// CalculateLevel 等级由XP导出：floor(sqrt(xp/100)) + 1
func (u *User) CalculateLevel() int {
	if u.XP <= 0 {
		return 1
	}
	return int(math.Sqrt(float64(u.XP)/100)) + 1
}

// XPForNextLevel 达到下一等级所需的总XP
func (u *User) XPForNextLevel() int {
	return u.Level * u.Level * 100
}
