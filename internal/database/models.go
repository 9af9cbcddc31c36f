package database

import (
	"time"

	"gorm.io/datatypes"
)

// DayFormat 是整个系统中日历日期的字符串形式（本地日，无时间部分）。
const DayFormat = "2006-01-02"

// User 表示系统中的账号信息。
type User struct {
	ID           uint      `gorm:"primaryKey"`
	Email        string    `gorm:"uniqueIndex;size:255"`
	PasswordHash string    `gorm:"size:255"`
	Name         string    `gorm:"size:100"`
	Bio          *string   `gorm:"type:text"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Routines     []Routine `gorm:"constraint:OnDelete:CASCADE"`
}

// Routine 表示用户定义的训练计划，名称在同一用户下唯一。
type Routine struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"uniqueIndex:uniq_user_routine_name"`
	Name      string `gorm:"uniqueIndex:uniq_user_routine_name;size:100"`
	CreatedAt time.Time
	UpdatedAt time.Time
	Days      []RoutineDay `gorm:"constraint:OnDelete:CASCADE"`
}

// RoutineDay 表示某个计划在某个日历日的一次训练记录。
// 同一 (routine, date) 至多一条。
type RoutineDay struct {
	ID          uint           `gorm:"primaryKey"`
	RoutineID   uint           `gorm:"uniqueIndex:uniq_routine_date"`
	UserID      uint           `gorm:"index"`
	SessionDate datatypes.Date `gorm:"uniqueIndex:uniq_routine_date;type:date"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Workouts    []RoutineDayWorkout `gorm:"constraint:OnDelete:CASCADE"`
}

// Day returns the session date as a YYYY-MM-DD string.
func (d RoutineDay) Day() string {
	return time.Time(d.SessionDate).Format(DayFormat)
}

// RoutineDayWorkout 表示训练日中的一个动作条目。
// Position 是展示顺序，允许重复。
type RoutineDayWorkout struct {
	ID           uint    `gorm:"primaryKey"`
	RoutineDayID uint    `gorm:"index:idx_day_position"`
	WorkoutName  string  `gorm:"size:100"`
	Position     int     `gorm:"index:idx_day_position;column:position;default:0"`
	Notes        *string `gorm:"type:text"`
	Sets         []RoutineDaySet `gorm:"constraint:OnDelete:CASCADE"`
}

// RoutineDaySet 表示动作条目下的一组。重量可为空（徒手），次数必填。
type RoutineDaySet struct {
	ID                  uint     `gorm:"primaryKey"`
	RoutineDayWorkoutID uint     `gorm:"index"`
	SetOrder            int      `gorm:"default:0"`
	Weight              *float64 `gorm:"type:decimal(5,2)"`
	Reps                int
}

// WorkoutPersonalRecord 是 (user, workout name, position) 槽位上的历史最大重量。
// 它独立于具体计划存在，删除计划不会删除记录；RoutineDayID 仅是展示用的回链，
// 指向的训练日被删除后由后台任务清空。
type WorkoutPersonalRecord struct {
	ID           uint           `gorm:"primaryKey"`
	UserID       uint           `gorm:"uniqueIndex:uniq_user_workout_position"`
	WorkoutName  string         `gorm:"uniqueIndex:uniq_user_workout_position;size:100"`
	Position     int            `gorm:"uniqueIndex:uniq_user_workout_position;column:position"`
	MaxWeight    float64        `gorm:"type:decimal(5,2)"`
	AchievedAt   datatypes.Date `gorm:"index;type:date"`
	RoutineDayID *uint          `gorm:"index"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AchievedDay returns the record's achieved date as a YYYY-MM-DD string.
func (r WorkoutPersonalRecord) AchievedDay() string {
	return time.Time(r.AchievedAt).Format(DayFormat)
}
