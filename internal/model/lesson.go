package model

// Lesson 课程是前置关系DAG中的节点；Prerequisites 仅保存直接前置
type Lesson struct {
	BaseModel
	Title        string     `gorm:"size:100;not null"`
	Topic        string     `gorm:"size:100;not null;index"`
	Subtopic     string     `gorm:"size:100"`
	Difficulty   Difficulty `gorm:"type:varchar(20);default:'beginner';not null"`
	Description  string     `gorm:"size:500"`
	Content      string     `gorm:"type:text"`
	TemplatePath string     `gorm:"size:255"`
	XPReward     int        `gorm:"default:10"`
	Order        int        `gorm:"column:lesson_order;default:0"`
	// EstimatedTime 预计完成时长（分钟），时间奖励的基准
	EstimatedTime int       `gorm:"default:15"`
	IsActive      bool      `gorm:"default:true;index"`
	Prerequisites []*Lesson `gorm:"many2many:lesson_prerequisites;joinForeignKey:LessonID;joinReferences:PrerequisiteID"`
}

func (Lesson) TableName() string {
	return "lessons"
}

// PrerequisiteIDs 直接前置课程的ID集合
func (l *Lesson) PrerequisiteIDs() []uint {
	ids := make([]uint, 0, len(l.Prerequisites))
	for _, p := range l.Prerequisites {
		ids = append(ids, p.ID)
	}
	return ids
}
