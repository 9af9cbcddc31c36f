package worker

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"fitlog/internal/database"
	"fitlog/internal/tasks"
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

func TestProcessTaskClearsOnlyDanglingReferences(t *testing.T) {
	db := newTestDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	aliveDay := database.RoutineDay{RoutineID: 1, UserID: 1, SessionDate: day(t, "2025-03-10")}
	if err := db.Create(&aliveDay).Error; err != nil {
		t.Fatalf("seed day: %v", err)
	}
	deletedDayID := aliveDay.ID + 100

	linked := database.WorkoutPersonalRecord{
		UserID: 1, WorkoutName: "Bench Press", Position: 0,
		MaxWeight: 65, AchievedAt: day(t, "2025-03-10"), RoutineDayID: &aliveDay.ID,
	}
	dangling := database.WorkoutPersonalRecord{
		UserID: 1, WorkoutName: "Squat", Position: 1,
		MaxWeight: 100, AchievedAt: day(t, "2025-02-01"), RoutineDayID: &deletedDayID,
	}
	unlinked := database.WorkoutPersonalRecord{
		UserID: 1, WorkoutName: "Deadlift", Position: 2,
		MaxWeight: 120, AchievedAt: day(t, "2025-01-15"),
	}
	otherUser := database.WorkoutPersonalRecord{
		UserID: 2, WorkoutName: "Squat", Position: 1,
		MaxWeight: 90, AchievedAt: day(t, "2025-02-01"), RoutineDayID: &deletedDayID,
	}
	for _, rec := range []*database.WorkoutPersonalRecord{&linked, &dangling, &unlinked, &otherUser} {
		if err := db.Create(rec).Error; err != nil {
			t.Fatalf("seed record: %v", err)
		}
	}

	task, err := tasks.NewRecordsReconcileTask(1)
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	h := NewRecordsTaskHandler(db, logger)
	if err := h.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("process task: %v", err)
	}

	reload := func(id uint) database.WorkoutPersonalRecord {
		var rec database.WorkoutPersonalRecord
		if err := db.First(&rec, id).Error; err != nil {
			t.Fatalf("reload record %d: %v", id, err)
		}
		return rec
	}

	if got := reload(dangling.ID); got.RoutineDayID != nil {
		t.Fatal("dangling reference must be cleared")
	} else if got.MaxWeight != 100 || got.AchievedDay() != "2025-02-01" {
		t.Fatalf("reconcile must not touch weight or achieved date: %+v", got)
	}
	if got := reload(linked.ID); got.RoutineDayID == nil || *got.RoutineDayID != aliveDay.ID {
		t.Fatal("live reference must be preserved")
	}
	if got := reload(unlinked.ID); got.RoutineDayID != nil {
		t.Fatal("already-unlinked record must stay unlinked")
	}
	// 其他用户的纪录不在本次任务范围内
	if got := reload(otherUser.ID); got.RoutineDayID == nil {
		t.Fatal("other users' records must be untouched")
	}
}

func TestProcessTaskRejectsMalformedPayload(t *testing.T) {
	db := newTestDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewRecordsTaskHandler(db, logger)

	task := asynq.NewTask(tasks.TypeRecordsReconcile, []byte("{not json"))
	if err := h.ProcessTask(context.Background(), task); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}
