package routines

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"fitlog/internal/database"
	"fitlog/internal/tasks"
)

var (
	ErrRoutineNotFound = errors.New("routine not found")
	ErrDayNotFound     = errors.New("no session recorded for that date")
	ErrDuplicateName   = errors.New("routine name already exists")
	ErrEmptyName       = errors.New("routine name must not be empty")
	ErrInvalidDate     = errors.New("invalid date, expected YYYY-MM-DD")
)

var dayPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// TaskEnqueuer 抽象 asynq 客户端，便于在测试中省略队列。
type TaskEnqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Service 负责计划的增删改查和训练日的整日保存。
// 保存训练日时会在同一事务里维护个人纪录（详见 saveRecord）。
type Service struct {
	db    *gorm.DB
	queue TaskEnqueuer
}

// NewService 构造 Service；queue 可以为 nil，此时删除计划后不做纪录回链清理。
func NewService(db *gorm.DB, queue TaskEnqueuer) *Service {
	return &Service{db: db, queue: queue}
}

// SetInput 是保存训练日时一组的输入。
type SetInput struct {
	Weight *float64 `json:"weight"`
	Reps   int      `json:"reps" binding:"required,gt=0"`
}

// WorkoutInput 是保存训练日时一个动作条目的输入。
type WorkoutInput struct {
	WorkoutName string     `json:"workout_name" binding:"required"`
	Position    int        `json:"order"`
	Notes       *string    `json:"notes"`
	Sets        []SetInput `json:"sets" binding:"dive"`
}

// SetView / WorkoutView / DayView 是持久化后的返回形状，字段名沿用外部 API 约定。
type SetView struct {
	ID     uint     `json:"routine_day_set_pk"`
	Weight *float64 `json:"weight"`
	Reps   int      `json:"reps"`
}

type WorkoutView struct {
	ID          uint      `json:"routine_day_workout_pk"`
	WorkoutName string    `json:"workout_name"`
	Position    int       `json:"order"`
	Notes       *string   `json:"notes"`
	Sets        []SetView `json:"sets"`
}

type DayView struct {
	ID          uint          `json:"routine_day_pk"`
	SessionDate string        `json:"session_date"`
	Workouts    []WorkoutView `json:"workouts"`
}

type RoutineView struct {
	ID   uint   `json:"routine_pk"`
	Name string `json:"routine_name"`
}

// RoutineSummary 是计划列表项：计划加上最近一次训练的内容。
type RoutineSummary struct {
	ID              uint          `json:"routine_pk"`
	Name            string        `json:"routine_name"`
	LastSessionDate *string       `json:"last_session_date"`
	Workouts        []WorkoutView `json:"workouts"`
}

// CreateResult 是创建计划的返回：计划本身和当天种下的训练日。
type CreateResult struct {
	Routine RoutineView `json:"routine"`
	Day     DayView     `json:"routine_day"`
}

// Create 新建计划并用传入的动作种下今天的训练日，整体在一个事务中。
func (s *Service) Create(ctx context.Context, userID uint, name string, workouts []WorkoutInput) (*CreateResult, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, ErrEmptyName
	}

	var result *CreateResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing database.Routine
		err := tx.Where("user_id = ? AND name = ?", userID, trimmed).First(&existing).Error
		if err == nil {
			return ErrDuplicateName
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("check routine name: %w", err)
		}

		routine := database.Routine{UserID: userID, Name: trimmed}
		if err := tx.Create(&routine).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateName
			}
			return fmt.Errorf("create routine: %w", err)
		}

		day := database.RoutineDay{
			RoutineID:   routine.ID,
			UserID:      userID,
			SessionDate: datatypes.Date(todayLocal()),
		}
		if err := tx.Create(&day).Error; err != nil {
			return fmt.Errorf("create routine day: %w", err)
		}

		views, err := insertWorkouts(tx, day.ID, workouts)
		if err != nil {
			return err
		}

		result = &CreateResult{
			Routine: RoutineView{ID: routine.ID, Name: routine.Name},
			Day: DayView{
				ID:          day.ID,
				SessionDate: day.Day(),
				Workouts:    views,
			},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// List 返回用户的全部计划，每个带最近一次训练日。
// 计划和训练日各一次批量查询，不按计划逐个查。
func (s *Service) List(ctx context.Context, userID uint) ([]RoutineSummary, error) {
	var routines []database.Routine
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&routines).Error; err != nil {
		return nil, fmt.Errorf("load routines: %w", err)
	}

	summaries := make([]RoutineSummary, 0, len(routines))
	if len(routines) == 0 {
		return summaries, nil
	}

	ids := make([]uint, 0, len(routines))
	for _, rt := range routines {
		ids = append(ids, rt.ID)
	}

	var days []database.RoutineDay
	if err := s.db.WithContext(ctx).
		Preload("Workouts.Sets").
		Where("routine_id IN ?", ids).
		Order("session_date DESC, id DESC").
		Find(&days).Error; err != nil {
		return nil, fmt.Errorf("load routine days: %w", err)
	}

	latest := make(map[uint]*database.RoutineDay, len(routines))
	for i := range days {
		d := &days[i]
		if _, ok := latest[d.RoutineID]; !ok {
			latest[d.RoutineID] = d
		}
	}

	for _, rt := range routines {
		summary := RoutineSummary{
			ID:       rt.ID,
			Name:     rt.Name,
			Workouts: []WorkoutView{},
		}
		if d, ok := latest[rt.ID]; ok {
			date := d.Day()
			summary.LastSessionDate = &date
			summary.Workouts = workoutViews(d.Workouts)
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// Today 返回今天的训练日；还没记录时 day 为 nil，调用方据此返回空的动作列表。
func (s *Service) Today(ctx context.Context, userID, routineID uint) (*RoutineView, *DayView, error) {
	return s.dayByDate(ctx, userID, routineID, todayString())
}

// DayByDate 返回指定日期的训练日，不存在时报 ErrDayNotFound。
func (s *Service) DayByDate(ctx context.Context, userID, routineID uint, date string) (*DayView, error) {
	if !dayPattern.MatchString(date) {
		return nil, ErrInvalidDate
	}
	_, day, err := s.dayByDate(ctx, userID, routineID, date)
	if err != nil {
		return nil, err
	}
	if day == nil {
		return nil, ErrDayNotFound
	}
	return day, nil
}

// SaveToday 以今天（服务器本地日）为日期保存训练内容。
func (s *Service) SaveToday(ctx context.Context, userID, routineID uint, workouts []WorkoutInput) (*DayView, error) {
	return s.SaveDay(ctx, userID, routineID, todayString(), workouts)
}

// SaveDay 整日替换训练内容并在同一事务里维护个人纪录。
// 对相同输入幂等：重复提交会得到同样的持久化状态。
func (s *Service) SaveDay(ctx context.Context, userID, routineID uint, date string, workouts []WorkoutInput) (*DayView, error) {
	if !dayPattern.MatchString(date) {
		return nil, ErrInvalidDate
	}
	parsed, err := time.ParseInLocation(database.DayFormat, date, time.Local)
	if err != nil {
		return nil, ErrInvalidDate
	}

	routine, err := s.routineForUser(ctx, routineID, userID)
	if err != nil {
		return nil, err
	}

	var view *DayView
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var day database.RoutineDay
		err := tx.Where("routine_id = ? AND session_date = ?", routine.ID, datatypes.Date(parsed)).
			First(&day).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			day = database.RoutineDay{
				RoutineID:   routine.ID,
				UserID:      userID,
				SessionDate: datatypes.Date(parsed),
			}
			if err := tx.Create(&day).Error; err != nil {
				return fmt.Errorf("create routine day: %w", err)
			}
		case err != nil:
			return fmt.Errorf("find routine day: %w", err)
		}

		if err := deleteDayWorkouts(tx, day.ID); err != nil {
			return err
		}

		views, err := insertWorkouts(tx, day.ID, workouts)
		if err != nil {
			return err
		}

		for _, in := range workouts {
			if err := saveRecord(tx, userID, &day, in); err != nil {
				return err
			}
		}

		view = &DayView{ID: day.ID, SessionDate: date, Workouts: views}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// Rename 修改计划名，校验空名与重名。
func (s *Service) Rename(ctx context.Context, userID, routineID uint, name string) (*RoutineView, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, ErrEmptyName
	}

	var view *RoutineView
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var routine database.Routine
		err := tx.Where("id = ? AND user_id = ?", routineID, userID).First(&routine).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRoutineNotFound
		}
		if err != nil {
			return fmt.Errorf("find routine: %w", err)
		}

		if trimmed == routine.Name {
			view = &RoutineView{ID: routine.ID, Name: routine.Name}
			return nil
		}

		var duplicate database.Routine
		err = tx.Where("user_id = ? AND name = ?", userID, trimmed).First(&duplicate).Error
		if err == nil {
			return ErrDuplicateName
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("check routine name: %w", err)
		}

		if err := tx.Model(&routine).Update("name", trimmed).Error; err != nil {
			return fmt.Errorf("rename routine: %w", err)
		}
		view = &RoutineView{ID: routine.ID, Name: trimmed}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// Delete 删除计划及其全部训练日、动作和组，随后异步清理个人纪录
// 中指向已删训练日的回链。级联在事务里显式执行，不依赖数据库外键行为。
func (s *Service) Delete(ctx context.Context, userID, routineID uint) error {
	routine, err := s.routineForUser(ctx, routineID, userID)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var dayIDs []uint
		if err := tx.Model(&database.RoutineDay{}).
			Where("routine_id = ?", routine.ID).
			Pluck("id", &dayIDs).Error; err != nil {
			return fmt.Errorf("load routine day ids: %w", err)
		}

		if len(dayIDs) > 0 {
			var workoutIDs []uint
			if err := tx.Model(&database.RoutineDayWorkout{}).
				Where("routine_day_id IN ?", dayIDs).
				Pluck("id", &workoutIDs).Error; err != nil {
				return fmt.Errorf("load workout ids: %w", err)
			}
			if len(workoutIDs) > 0 {
				if err := tx.Where("routine_day_workout_id IN ?", workoutIDs).
					Delete(&database.RoutineDaySet{}).Error; err != nil {
					return fmt.Errorf("delete sets: %w", err)
				}
				if err := tx.Where("id IN ?", workoutIDs).
					Delete(&database.RoutineDayWorkout{}).Error; err != nil {
					return fmt.Errorf("delete workouts: %w", err)
				}
			}
			if err := tx.Where("id IN ?", dayIDs).
				Delete(&database.RoutineDay{}).Error; err != nil {
				return fmt.Errorf("delete routine days: %w", err)
			}
		}

		if err := tx.Delete(&database.Routine{}, routine.ID).Error; err != nil {
			return fmt.Errorf("delete routine: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.queue != nil {
		task, err := tasks.NewRecordsReconcileTask(userID)
		if err == nil {
			_, err = s.queue.Enqueue(task, asynq.MaxRetry(5))
		}
		if err != nil {
			// 回链清理是尽力而为，失败不影响删除本身
			return nil
		}
	}
	return nil
}

func (s *Service) dayByDate(ctx context.Context, userID, routineID uint, date string) (*RoutineView, *DayView, error) {
	routine, err := s.routineForUser(ctx, routineID, userID)
	if err != nil {
		return nil, nil, err
	}

	parsed, err := time.ParseInLocation(database.DayFormat, date, time.Local)
	if err != nil {
		return nil, nil, ErrInvalidDate
	}

	var day database.RoutineDay
	err = s.db.WithContext(ctx).
		Preload("Workouts.Sets").
		Where("routine_id = ? AND session_date = ?", routine.ID, datatypes.Date(parsed)).
		First(&day).Error
	routineView := &RoutineView{ID: routine.ID, Name: routine.Name}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return routineView, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("find routine day: %w", err)
	}

	return routineView, &DayView{
		ID:          day.ID,
		SessionDate: day.Day(),
		Workouts:    workoutViews(day.Workouts),
	}, nil
}

func (s *Service) routineForUser(ctx context.Context, routineID, userID uint) (*database.Routine, error) {
	var routine database.Routine
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", routineID, userID).
		First(&routine).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRoutineNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find routine: %w", err)
	}
	return &routine, nil
}

func deleteDayWorkouts(tx *gorm.DB, dayID uint) error {
	var workoutIDs []uint
	if err := tx.Model(&database.RoutineDayWorkout{}).
		Where("routine_day_id = ?", dayID).
		Pluck("id", &workoutIDs).Error; err != nil {
		return fmt.Errorf("load old workout ids: %w", err)
	}
	if len(workoutIDs) == 0 {
		return nil
	}
	if err := tx.Where("routine_day_workout_id IN ?", workoutIDs).
		Delete(&database.RoutineDaySet{}).Error; err != nil {
		return fmt.Errorf("delete old sets: %w", err)
	}
	if err := tx.Where("id IN ?", workoutIDs).
		Delete(&database.RoutineDayWorkout{}).Error; err != nil {
		return fmt.Errorf("delete old workouts: %w", err)
	}
	return nil
}

func insertWorkouts(tx *gorm.DB, dayID uint, workouts []WorkoutInput) ([]WorkoutView, error) {
	views := make([]WorkoutView, 0, len(workouts))
	for _, in := range workouts {
		workout := database.RoutineDayWorkout{
			RoutineDayID: dayID,
			WorkoutName:  in.WorkoutName,
			Position:     in.Position,
			Notes:        in.Notes,
		}
		if err := tx.Create(&workout).Error; err != nil {
			return nil, fmt.Errorf("create workout: %w", err)
		}

		setViews := make([]SetView, 0, len(in.Sets))
		for idx, setIn := range in.Sets {
			set := database.RoutineDaySet{
				RoutineDayWorkoutID: workout.ID,
				SetOrder:            idx,
				Weight:              setIn.Weight,
				Reps:                setIn.Reps,
			}
			if err := tx.Create(&set).Error; err != nil {
				return nil, fmt.Errorf("create set: %w", err)
			}
			setViews = append(setViews, SetView{ID: set.ID, Weight: set.Weight, Reps: set.Reps})
		}

		views = append(views, WorkoutView{
			ID:          workout.ID,
			WorkoutName: workout.WorkoutName,
			Position:    workout.Position,
			Notes:       workout.Notes,
			Sets:        setViews,
		})
	}
	sort.SliceStable(views, func(i, j int) bool { return views[i].Position < views[j].Position })
	return views, nil
}

// saveRecord 维护 (user, workout name, position) 槽位的个人纪录：
// 当日最大重量为 0 时跳过；没有纪录则创建；严格大于才覆盖，
// 平纪录保留最初的达成日和回链。
func saveRecord(tx *gorm.DB, userID uint, day *database.RoutineDay, in WorkoutInput) error {
	maxWeight := 0.0
	for _, set := range in.Sets {
		if set.Weight != nil && *set.Weight > maxWeight {
			maxWeight = *set.Weight
		}
	}
	if maxWeight <= 0 {
		return nil
	}

	var record database.WorkoutPersonalRecord
	err := tx.Where("user_id = ? AND workout_name = ? AND position = ?", userID, in.WorkoutName, in.Position).
		First(&record).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		record = database.WorkoutPersonalRecord{
			UserID:       userID,
			WorkoutName:  in.WorkoutName,
			Position:     in.Position,
			MaxWeight:    maxWeight,
			AchievedAt:   day.SessionDate,
			RoutineDayID: &day.ID,
		}
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("create personal record: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("find personal record: %w", err)
	case maxWeight > record.MaxWeight:
		if err := tx.Model(&record).Updates(map[string]any{
			"max_weight":     maxWeight,
			"achieved_at":    day.SessionDate,
			"routine_day_id": day.ID,
		}).Error; err != nil {
			return fmt.Errorf("update personal record: %w", err)
		}
	}
	return nil
}

func workoutViews(workouts []database.RoutineDayWorkout) []WorkoutView {
	views := make([]WorkoutView, 0, len(workouts))
	for i := range workouts {
		w := &workouts[i]
		setViews := make([]SetView, 0, len(w.Sets))
		sets := append([]database.RoutineDaySet(nil), w.Sets...)
		sort.SliceStable(sets, func(i, j int) bool { return sets[i].SetOrder < sets[j].SetOrder })
		for _, set := range sets {
			setViews = append(setViews, SetView{ID: set.ID, Weight: set.Weight, Reps: set.Reps})
		}
		views = append(views, WorkoutView{
			ID:          w.ID,
			WorkoutName: w.WorkoutName,
			Position:    w.Position,
			Notes:       w.Notes,
			Sets:        setViews,
		})
	}
	sort.SliceStable(views, func(i, j int) bool { return views[i].Position < views[j].Position })
	return views
}

func todayLocal() time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)
}

func todayString() string {
	return todayLocal().Format(database.DayFormat)
}
