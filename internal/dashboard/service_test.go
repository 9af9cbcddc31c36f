package dashboard

import (
	"context"
	"testing"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"fitlog/internal/database"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func day(t *testing.T, s string) datatypes.Date {
	t.Helper()
	parsed, err := time.ParseInLocation(database.DayFormat, s, time.Local)
	if err != nil {
		t.Fatalf("parse day %q: %v", s, err)
	}
	return datatypes.Date(parsed)
}

func weight(v float64) *float64 { return &v }

func seedRoutine(t *testing.T, db *gorm.DB, userID uint, name string, createdAt time.Time) database.Routine {
	t.Helper()
	rt := database.Routine{UserID: userID, Name: name, CreatedAt: createdAt}
	if err := db.Create(&rt).Error; err != nil {
		t.Fatalf("seed routine: %v", err)
	}
	return rt
}

func seedSession(t *testing.T, db *gorm.DB, userID, routineID uint, date string, workouts ...database.RoutineDayWorkout) database.RoutineDay {
	t.Helper()
	d := database.RoutineDay{
		RoutineID:   routineID,
		UserID:      userID,
		SessionDate: day(t, date),
		Workouts:    workouts,
	}
	if err := db.Create(&d).Error; err != nil {
		t.Fatalf("seed session %s: %v", date, err)
	}
	return d
}

func benchWorkout(w float64, reps, sets int) database.RoutineDayWorkout {
	out := database.RoutineDayWorkout{WorkoutName: "Bench Press", Position: 0}
	for i := 0; i < sets; i++ {
		out.Sets = append(out.Sets, database.RoutineDaySet{SetOrder: i, Weight: weight(w), Reps: reps})
	}
	return out
}

func TestActivitiesEmptyRangeReturnsPlaceholders(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)

	rows, err := svc.Activities(context.Background(), 1, "2025-03-01", "2025-03-03")
	if err != nil {
		t.Fatalf("activities: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 placeholder rows got %d", len(rows))
	}
	for i, want := range []string{"2025-03-01", "2025-03-02", "2025-03-03"} {
		row := rows[i]
		if row.Date != want {
			t.Fatalf("rows[%d].Date = %q, want %q", i, row.Date, want)
		}
		if row.Activity != 0 || row.RoutineID != nil || row.Achievement != nil {
			t.Fatalf("rows[%d] is not an empty placeholder: %+v", i, row)
		}
	}
}

func TestActivitiesFirstSessionHasNullAchievement(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)

	rt := seedRoutine(t, db, 1, "Push Day", time.Date(2025, 1, 1, 10, 0, 0, 0, time.Local))
	seedSession(t, db, 1, rt.ID, "2025-03-10", benchWorkout(60, 5, 3))

	rows, err := svc.Activities(context.Background(), 1, "2025-03-10", "2025-03-10")
	if err != nil {
		t.Fatalf("activities: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row got %d", len(rows))
	}
	row := rows[0]
	if row.Achievement != nil {
		t.Fatalf("first session must have null achievement, got %v", *row.Achievement)
	}
	// 最早的训练日视为新计划
	if !row.IsNewRoutine {
		t.Fatal("earliest session should be flagged as a new routine")
	}
	if row.Activity != 2 {
		t.Fatalf("expected activity 2 got %d", row.Activity)
	}
	if row.RoutineName == nil || *row.RoutineName != "Push Day" {
		t.Fatalf("unexpected routine name: %v", row.RoutineName)
	}
}

func TestActivitiesZeroAchievementIsNotNull(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)

	rt := seedRoutine(t, db, 1, "Push Day", time.Date(2025, 1, 1, 10, 0, 0, 0, time.Local))
	seedSession(t, db, 1, rt.ID, "2025-03-10", benchWorkout(60, 5, 3))
	seedSession(t, db, 1, rt.ID, "2025-03-12", benchWorkout(60, 5, 3))

	rows, err := svc.Activities(context.Background(), 1, "2025-03-12", "2025-03-12")
	if err != nil {
		t.Fatalf("activities: %v", err)
	}
	row := rows[0]
	if row.Achievement == nil {
		t.Fatal("repeat session must have a numeric achievement")
	}
	if *row.Achievement != 0 {
		t.Fatalf("expected zero achievement got %v", *row.Achievement)
	}
	if row.Activity != 1 {
		t.Fatalf("expected activity 1 got %d", row.Activity)
	}
}

func TestActivitiesPositiveDelta(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)

	rt := seedRoutine(t, db, 1, "Push Day", time.Date(2025, 1, 1, 10, 0, 0, 0, time.Local))
	// 60kg x 5 x 3 = 900, 65kg x 5 x 3 = 975, 提升 75
	seedSession(t, db, 1, rt.ID, "2025-03-10", benchWorkout(60, 5, 3))
	seedSession(t, db, 1, rt.ID, "2025-03-12", benchWorkout(65, 5, 3))

	rows, err := svc.Activities(context.Background(), 1, "2025-03-12", "2025-03-12")
	if err != nil {
		t.Fatalf("activities: %v", err)
	}
	row := rows[0]
	if row.Achievement == nil || *row.Achievement != 75 {
		t.Fatalf("expected achievement 75 got %v", row.Achievement)
	}
	if row.Activity != 2 {
		t.Fatalf("expected activity 2 got %d", row.Activity)
	}
}

func TestActivitiesBaselineOutsideRange(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)

	rt := seedRoutine(t, db, 1, "Push Day", time.Date(2025, 1, 1, 10, 0, 0, 0, time.Local))
	seedSession(t, db, 1, rt.ID, "2025-02-01", benchWorkout(60, 5, 3))
	seedSession(t, db, 1, rt.ID, "2025-03-12", benchWorkout(65, 5, 3))

	rows, err := svc.Activities(context.Background(), 1, "2025-03-12", "2025-03-12")
	if err != nil {
		t.Fatalf("activities: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected only in-range rows got %d", len(rows))
	}
	row := rows[0]
	// 基线在查询区间之外也要参与比较
	if row.Achievement == nil || *row.Achievement != 75 {
		t.Fatalf("expected achievement 75 from out-of-range baseline, got %v", row.Achievement)
	}
}

func TestActivitiesMultipleRoutinesSameDate(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)

	push := seedRoutine(t, db, 1, "Push Day", time.Date(2025, 1, 1, 10, 0, 0, 0, time.Local))
	pull := seedRoutine(t, db, 1, "Pull Day", time.Date(2025, 1, 1, 11, 0, 0, 0, time.Local))
	seedSession(t, db, 1, pull.ID, "2025-03-12", benchWorkout(40, 8, 3))
	seedSession(t, db, 1, push.ID, "2025-03-12", benchWorkout(60, 5, 3))

	rows, err := svc.Activities(context.Background(), 1, "2025-03-11", "2025-03-13")
	if err != nil {
		t.Fatalf("activities: %v", err)
	}
	// 占位 + 两行训练 + 占位
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows got %d: %+v", len(rows), rows)
	}
	if rows[0].Date != "2025-03-11" || rows[0].Activity != 0 {
		t.Fatalf("expected leading placeholder, got %+v", rows[0])
	}
	if rows[1].Date != "2025-03-12" || rows[2].Date != "2025-03-12" {
		t.Fatalf("expected two rows for 2025-03-12, got %+v", rows[1:3])
	}
	if *rows[1].RoutineID != push.ID || *rows[2].RoutineID != pull.ID {
		t.Fatalf("same-date rows must be ordered by routine id: %v then %v", *rows[1].RoutineID, *rows[2].RoutineID)
	}
	if rows[3].Date != "2025-03-13" || rows[3].Activity != 0 {
		t.Fatalf("expected trailing placeholder, got %+v", rows[3])
	}
}

func TestActivitiesMaxWeightDisplay(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)

	rt := seedRoutine(t, db, 1, "Push Day", time.Date(2025, 1, 1, 10, 0, 0, 0, time.Local))
	seedSession(t, db, 1, rt.ID, "2025-03-10", benchWorkout(60, 5, 3))
	second := seedSession(t, db, 1, rt.ID, "2025-03-12", benchWorkout(65, 5, 3))

	// 纪录回链指向第二个训练日
	rec := database.WorkoutPersonalRecord{
		UserID:       1,
		WorkoutName:  "Bench Press",
		Position:     0,
		MaxWeight:    65,
		AchievedAt:   day(t, "2025-03-12"),
		RoutineDayID: &second.ID,
	}
	if err := db.Create(&rec).Error; err != nil {
		t.Fatalf("seed record: %v", err)
	}

	rows, err := svc.Activities(context.Background(), 1, "2025-03-10", "2025-03-12")
	if err != nil {
		t.Fatalf("activities: %v", err)
	}

	byDay := map[string]DayActivity{}
	for _, row := range rows {
		if row.RoutineDayID != nil {
			byDay[row.Date] = row
		}
	}

	if byDay["2025-03-10"].HasMaxWeightAchieved {
		t.Fatal("older session must not display the record")
	}
	got := byDay["2025-03-12"]
	if !got.HasMaxWeightAchieved {
		t.Fatal("record-linked session must display the record")
	}
	if len(got.MaxWeightRecords) != 1 || got.MaxWeightRecords[0].MaxWeight != 65 {
		t.Fatalf("unexpected record rows: %+v", got.MaxWeightRecords)
	}
}

func TestActivitiesRecordShownByAchievedDateAfterRelink(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)

	rt := seedRoutine(t, db, 1, "Push Day", time.Date(2025, 1, 1, 10, 0, 0, 0, time.Local))
	seedSession(t, db, 1, rt.ID, "2025-03-12", benchWorkout(65, 5, 3))

	// 回链已被清空（原计划被删），仅靠达成日期匹配
	rec := database.WorkoutPersonalRecord{
		UserID:      1,
		WorkoutName: "Bench Press",
		Position:    0,
		MaxWeight:   65,
		AchievedAt:  day(t, "2025-03-12"),
	}
	if err := db.Create(&rec).Error; err != nil {
		t.Fatalf("seed record: %v", err)
	}

	rows, err := svc.Activities(context.Background(), 1, "2025-03-12", "2025-03-12")
	if err != nil {
		t.Fatalf("activities: %v", err)
	}
	if !rows[0].HasMaxWeightAchieved {
		t.Fatal("record must be displayed when achieved date matches the session date")
	}
}

func TestActivitiesWorkoutWithoutSetsNeverShowsRecord(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)

	rt := seedRoutine(t, db, 1, "Push Day", time.Date(2025, 1, 1, 10, 0, 0, 0, time.Local))
	d := seedSession(t, db, 1, rt.ID, "2025-03-12",
		database.RoutineDayWorkout{WorkoutName: "Bench Press", Position: 0})

	rec := database.WorkoutPersonalRecord{
		UserID:       1,
		WorkoutName:  "Bench Press",
		Position:     0,
		MaxWeight:    65,
		AchievedAt:   day(t, "2025-03-12"),
		RoutineDayID: &d.ID,
	}
	if err := db.Create(&rec).Error; err != nil {
		t.Fatalf("seed record: %v", err)
	}

	rows, err := svc.Activities(context.Background(), 1, "2025-03-12", "2025-03-12")
	if err != nil {
		t.Fatalf("activities: %v", err)
	}
	if rows[0].HasMaxWeightAchieved {
		t.Fatal("a workout without sets must not display a record")
	}
}

func TestActivitiesNewRoutineByCreationDate(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)

	created := time.Date(2025, 3, 12, 18, 45, 0, 0, time.Local)
	rt := seedRoutine(t, db, 1, "Leg Day", created)
	seedSession(t, db, 1, rt.ID, "2025-03-12", benchWorkout(80, 5, 3))
	seedSession(t, db, 1, rt.ID, "2025-03-14", benchWorkout(80, 5, 3))

	rows, err := svc.Activities(context.Background(), 1, "2025-03-12", "2025-03-14")
	if err != nil {
		t.Fatalf("activities: %v", err)
	}
	byDay := map[string]DayActivity{}
	for _, row := range rows {
		if row.RoutineDayID != nil {
			byDay[row.Date] = row
		}
	}
	if !byDay["2025-03-12"].IsNewRoutine {
		t.Fatal("session on the routine creation day must be flagged new")
	}
	if byDay["2025-03-14"].IsNewRoutine {
		t.Fatal("later session must not be flagged new")
	}
}

func TestAchievementsLimitAndOrder(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)

	rt := seedRoutine(t, db, 1, "Push Day", time.Date(2025, 1, 1, 10, 0, 0, 0, time.Local))
	// 8 次训练逐次加重：7 个正成就，只保留最近 5 个
	for i := 0; i < 8; i++ {
		date := time.Date(2025, 3, 1+i, 0, 0, 0, 0, time.Local).Format(database.DayFormat)
		seedSession(t, db, 1, rt.ID, date, benchWorkout(60+float64(i)*2.5, 5, 3))
	}

	items, err := svc.Achievements(context.Background(), 1)
	if err != nil {
		t.Fatalf("achievements: %v", err)
	}
	if len(items) != 5 {
		t.Fatalf("expected 5 achievements got %d", len(items))
	}
	if items[0].Date != "2025-03-08" || items[4].Date != "2025-03-04" {
		t.Fatalf("expected newest-first window 03-08..03-04, got %s..%s", items[0].Date, items[4].Date)
	}
	for _, item := range items {
		// 每次加 2.5kg x 5 reps x 3 sets = 37.5
		if item.Achievement != 37.5 {
			t.Fatalf("expected 37.5 delta got %v on %s", item.Achievement, item.Date)
		}
		if item.RoutineName != "Push Day" {
			t.Fatalf("unexpected routine name %q", item.RoutineName)
		}
	}
}

func TestAchievementsSkipNonPositiveAndFirstSessions(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)

	rt := seedRoutine(t, db, 1, "Push Day", time.Date(2025, 1, 1, 10, 0, 0, 0, time.Local))
	seedSession(t, db, 1, rt.ID, "2025-03-01", benchWorkout(60, 5, 3)) // 首练，无基线
	seedSession(t, db, 1, rt.ID, "2025-03-03", benchWorkout(55, 5, 3)) // 退步
	seedSession(t, db, 1, rt.ID, "2025-03-05", benchWorkout(55, 5, 3)) // 持平
	seedSession(t, db, 1, rt.ID, "2025-03-07", benchWorkout(60, 5, 3)) // 提升 75

	items, err := svc.Achievements(context.Background(), 1)
	if err != nil {
		t.Fatalf("achievements: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected exactly 1 achievement got %d: %+v", len(items), items)
	}
	item := items[0]
	if item.Date != "2025-03-07" || item.Achievement != 75 {
		t.Fatalf("unexpected achievement: %+v", item)
	}
	if len(item.Workouts) != 1 {
		t.Fatalf("expected 1 workout detail got %d", len(item.Workouts))
	}
	w := item.Workouts[0]
	if w.PreviousVolume != 825 || w.CurrentVolume != 900 || w.WeightIncrease != 75 {
		t.Fatalf("unexpected workout detail: %+v", w)
	}
}

func TestAchievementsBodyweightSetsCountAsZeroWeight(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)

	rt := seedRoutine(t, db, 1, "Core Day", time.Date(2025, 1, 1, 10, 0, 0, 0, time.Local))
	plank := func(extra *float64, reps int) database.RoutineDayWorkout {
		return database.RoutineDayWorkout{
			WorkoutName: "Weighted Plank",
			Position:    0,
			Sets:        []database.RoutineDaySet{{SetOrder: 0, Weight: extra, Reps: reps}},
		}
	}
	seedSession(t, db, 1, rt.ID, "2025-03-01", plank(nil, 10))
	seedSession(t, db, 1, rt.ID, "2025-03-03", plank(weight(5), 10))

	items, err := svc.Achievements(context.Background(), 1)
	if err != nil {
		t.Fatalf("achievements: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 achievement got %d", len(items))
	}
	// 徒手组按 0 重量计：0 -> 5x10
	if items[0].Achievement != 50 {
		t.Fatalf("expected 50 got %v", items[0].Achievement)
	}
}
