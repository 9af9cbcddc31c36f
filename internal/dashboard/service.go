package dashboard

import (
	"context"
	"fmt"
	"sort"

	"gorm.io/gorm"

	"fitlog/internal/database"
)

// Service 汇总训练日历的活动与成就视图。
// 所有查询都按用户批量读取，匹配与分组在内存中完成。
type Service struct {
	db *gorm.DB
}

// NewService 构造 Service。
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// maxAchievements 限制成就列表的长度：倒序扫描时取前 5 个达标的训练日。
const maxAchievements = 5

// DayActivity 是日历中单个格子的展示数据。
// 一个日期可能出现多行（当天练了多个计划），也可能只有空占位行。
type DayActivity struct {
	Date                 string            `json:"date"`
	Activity             int               `json:"activity"`
	RoutineName          *string           `json:"routine_name"`
	RoutineID            *uint             `json:"routine_pk"`
	RoutineDayID         *uint             `json:"routine_day_pk"`
	Achievement          *float64          `json:"achievement"`
	HasMaxWeightAchieved bool              `json:"has_max_weight_achieved"`
	MaxWeightRecords     []MaxWeightRecord `json:"max_weight_records"`
	IsNewRoutine         bool              `json:"is_new_routine"`
}

// MaxWeightRecord 表示当日刷新个人纪录的动作。
type MaxWeightRecord struct {
	WorkoutName string  `json:"workout_name"`
	Position    int     `json:"order"`
	MaxWeight   float64 `json:"max_weight"`
}

// AchievementDetail 是成就列表中的一条：某训练日相对上一次同计划训练的总提升。
type AchievementDetail struct {
	Date         string               `json:"date"`
	RoutineName  string               `json:"routine_name"`
	RoutineID    uint                 `json:"routine_pk"`
	RoutineDayID uint                 `json:"routine_day_pk"`
	Achievement  float64              `json:"achievement"`
	Workouts     []AchievementWorkout `json:"workouts"`
}

// AchievementWorkout 表示单个动作的容量提升明细。
type AchievementWorkout struct {
	WorkoutName    string  `json:"workout_name"`
	Position       int     `json:"order"`
	WeightIncrease float64 `json:"weight_increase"`
	PreviousVolume float64 `json:"previous_max_weight"`
	CurrentVolume  float64 `json:"current_max_weight"`
}

// workoutKey 在跨训练日匹配动作时使用：动作名 + 展示顺序。
type workoutKey struct {
	name     string
	position int
}

// Activities 返回 [startDate, endDate] 内每个日历日的活动行。
// 没有训练的日期返回 activity=0 的占位行；同一天练了多个计划时
// 每个计划各占一行，按计划 ID 升序。
func (s *Service) Activities(ctx context.Context, userID uint, startDate, endDate string) ([]DayActivity, error) {
	dates, err := DateRange(startDate, endDate)
	if err != nil {
		return nil, err
	}

	// 一次读出用户的全部训练日：区间内的行本身，加上区间外的历史，
	// 后者是“上一次同计划训练”与“最早训练日”判断的依据。
	days, err := s.loadDays(ctx, userID, "session_date ASC, id ASC")
	if err != nil {
		return nil, err
	}

	routines, err := s.loadRoutines(ctx, userID)
	if err != nil {
		return nil, err
	}

	records, err := s.loadRecords(ctx, userID)
	if err != nil {
		return nil, err
	}

	prevDay := previousByDay(days)
	firstDay := firstDayByRoutine(days)

	grouped := make(map[string][]DayActivity)
	for i := range days {
		d := &days[i]
		day := d.Day()
		if day < startDate || day > endDate {
			continue
		}

		row := DayActivity{
			Date:         day,
			Activity:     1,
			RoutineID:    &d.RoutineID,
			RoutineDayID: &d.ID,
		}
		if rt, ok := routines[d.RoutineID]; ok {
			name := rt.Name
			row.RoutineName = &name
			if LocalDay(rt.CreatedAt) == day || firstDay[d.RoutineID] == day {
				row.IsNewRoutine = true
			}
		} else if firstDay[d.RoutineID] == day {
			row.IsNewRoutine = true
		}

		// 有上一次训练时成就是具体数字（可能为 0），否则保持 null。
		if prev, ok := prevDay[d.ID]; ok {
			delta := compareSessions(d.Workouts, prev.Workouts)
			row.Achievement = &delta.total
		}

		if recs := dayRecords(d, records); len(recs) > 0 {
			row.HasMaxWeightAchieved = true
			row.MaxWeightRecords = recs
		}

		if (row.Achievement != nil && *row.Achievement > 0) || row.HasMaxWeightAchieved || row.IsNewRoutine {
			row.Activity = 2
		}

		grouped[day] = append(grouped[day], row)
	}

	result := make([]DayActivity, 0, len(dates))
	for _, date := range dates {
		rows := grouped[date]
		if len(rows) == 0 {
			result = append(result, DayActivity{Date: date})
			continue
		}
		sort.SliceStable(rows, func(i, j int) bool {
			return *rows[i].RoutineID < *rows[j].RoutineID
		})
		result = append(result, rows...)
	}
	return result, nil
}

// Achievements 返回最近的至多 5 个有正成就的训练日，按日期倒序扫描，
// 不做日期过滤，也不挑“最高的 5 个”。
func (s *Service) Achievements(ctx context.Context, userID uint) ([]AchievementDetail, error) {
	days, err := s.loadDays(ctx, userID, "session_date ASC, id ASC")
	if err != nil {
		return nil, err
	}

	routines, err := s.loadRoutines(ctx, userID)
	if err != nil {
		return nil, err
	}

	prevDay := previousByDay(days)

	achievements := make([]AchievementDetail, 0, maxAchievements)
	for i := len(days) - 1; i >= 0; i-- {
		d := &days[i]
		prev, ok := prevDay[d.ID]
		if !ok {
			continue
		}

		delta := compareSessions(d.Workouts, prev.Workouts)
		if delta.total <= 0 {
			continue
		}

		detail := AchievementDetail{
			Date:         d.Day(),
			RoutineID:    d.RoutineID,
			RoutineDayID: d.ID,
			Achievement:  delta.total,
			Workouts:     delta.workouts,
		}
		if rt, ok := routines[d.RoutineID]; ok {
			detail.RoutineName = rt.Name
		}

		achievements = append(achievements, detail)
		if len(achievements) == maxAchievements {
			break
		}
	}
	return achievements, nil
}

func (s *Service) loadDays(ctx context.Context, userID uint, order string) ([]database.RoutineDay, error) {
	var days []database.RoutineDay
	if err := s.db.WithContext(ctx).
		Preload("Workouts.Sets").
		Where("user_id = ?", userID).
		Order(order).
		Find(&days).Error; err != nil {
		return nil, fmt.Errorf("load routine days: %w", err)
	}
	return days, nil
}

func (s *Service) loadRoutines(ctx context.Context, userID uint) (map[uint]database.Routine, error) {
	var routines []database.Routine
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Find(&routines).Error; err != nil {
		return nil, fmt.Errorf("load routines: %w", err)
	}
	byID := make(map[uint]database.Routine, len(routines))
	for _, rt := range routines {
		byID[rt.ID] = rt
	}
	return byID, nil
}

func (s *Service) loadRecords(ctx context.Context, userID uint) (map[workoutKey]database.WorkoutPersonalRecord, error) {
	var records []database.WorkoutPersonalRecord
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("load personal records: %w", err)
	}
	byKey := make(map[workoutKey]database.WorkoutPersonalRecord, len(records))
	for _, rec := range records {
		byKey[workoutKey{rec.WorkoutName, rec.Position}] = rec
	}
	return byKey, nil
}

// previousByDay 为每个训练日找出同计划、日期严格更早的最近一次训练。
// days 必须已按 session_date 升序排好；(routine, date) 唯一，
// 所以同计划的上一个元素即是上一次训练。
func previousByDay(days []database.RoutineDay) map[uint]*database.RoutineDay {
	lastSeen := make(map[uint]*database.RoutineDay)
	prev := make(map[uint]*database.RoutineDay)
	for i := range days {
		d := &days[i]
		if p, ok := lastSeen[d.RoutineID]; ok {
			prev[d.ID] = p
		}
		lastSeen[d.RoutineID] = d
	}
	return prev
}

// firstDayByRoutine 返回每个计划最早的训练日期；days 已按日期升序。
func firstDayByRoutine(days []database.RoutineDay) map[uint]string {
	first := make(map[uint]string)
	for i := range days {
		d := &days[i]
		if _, ok := first[d.RoutineID]; !ok {
			first[d.RoutineID] = d.Day()
		}
	}
	return first
}

type sessionDelta struct {
	total    float64
	workouts []AchievementWorkout
}

// compareSessions 按 (动作名, 顺序) 匹配两次训练的動作条目，
// 只累计容量增加的条目；没匹配上或下降的条目贡献 0。
func compareSessions(current, previous []database.RoutineDayWorkout) sessionDelta {
	prevVolumes := make(map[workoutKey]float64, len(previous))
	for i := range previous {
		w := &previous[i]
		key := workoutKey{w.WorkoutName, w.Position}
		if _, ok := prevVolumes[key]; !ok {
			prevVolumes[key] = workoutVolume(w.Sets)
		}
	}

	var delta sessionDelta
	for i := range current {
		w := &current[i]
		prevVolume, ok := prevVolumes[workoutKey{w.WorkoutName, w.Position}]
		if !ok {
			continue
		}
		curVolume := workoutVolume(w.Sets)
		if curVolume <= prevVolume {
			continue
		}
		increase := curVolume - prevVolume
		delta.total += increase
		delta.workouts = append(delta.workouts, AchievementWorkout{
			WorkoutName:    w.WorkoutName,
			Position:       w.Position,
			WeightIncrease: increase,
			PreviousVolume: prevVolume,
			CurrentVolume:  curVolume,
		})
	}
	return delta
}

// workoutVolume 计算一个动作条目的容量：Σ(重量或0 × 次数)。
// 空重量按 0 计，组数照常计入。
func workoutVolume(sets []database.RoutineDaySet) float64 {
	var volume float64
	for _, set := range sets {
		weight := 0.0
		if set.Weight != nil {
			weight = *set.Weight
		}
		volume += weight * float64(set.Reps)
	}
	return volume
}

// dayRecords 找出该训练日刷新的个人纪录：记录的回链指向这一天，
// 或记录达成日期等于这一天。这是对已写入纪录的展示检查，
// 不在这里比较重量。
func dayRecords(d *database.RoutineDay, records map[workoutKey]database.WorkoutPersonalRecord) []MaxWeightRecord {
	var out []MaxWeightRecord
	for i := range d.Workouts {
		w := &d.Workouts[i]
		if len(w.Sets) == 0 {
			continue
		}
		rec, ok := records[workoutKey{w.WorkoutName, w.Position}]
		if !ok {
			continue
		}
		if (rec.RoutineDayID != nil && *rec.RoutineDayID == d.ID) || rec.AchievedDay() == d.Day() {
			out = append(out, MaxWeightRecord{
				WorkoutName: w.WorkoutName,
				Position:    w.Position,
				MaxWeight:   rec.MaxWeight,
			})
		}
	}
	return out
}
