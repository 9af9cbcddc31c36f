package worker

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"fitlog/internal/database"
	"fitlog/internal/tasks"
)

// RecordsTaskHandler 负责消费个人纪录回链清理任务。
// 计划删除后，纪录里指向已删训练日的 RoutineDayID 会悬空，
// 这里把它们置空。纪录本身（重量与达成日期）永远不降、不删。
type RecordsTaskHandler struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewRecordsTaskHandler 创建任务处理器。
func NewRecordsTaskHandler(db *gorm.DB, logger *slog.Logger) *RecordsTaskHandler {
	return &RecordsTaskHandler{db: db, logger: logger}
}

// ProcessTask 实现 asynq.Handler。
func (h *RecordsTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	log := h.logger

	var payload tasks.RecordsReconcilePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		log.Error("unmarshal task payload failed", slog.Any("error", err))
		return err
	}

	log = log.With(slog.Uint64("user_id", uint64(payload.UserID)))

	var records []database.WorkoutPersonalRecord
	if err := h.db.WithContext(ctx).
		Where("user_id = ? AND routine_day_id IS NOT NULL", payload.UserID).
		Find(&records).Error; err != nil {
		log.Error("load personal records failed", slog.Any("error", err))
		return err
	}
	if len(records) == 0 {
		return nil
	}

	dayIDs := make([]uint, 0, len(records))
	for _, rec := range records {
		dayIDs = append(dayIDs, *rec.RoutineDayID)
	}

	var existing []uint
	if err := h.db.WithContext(ctx).
		Model(&database.RoutineDay{}).
		Where("id IN ?", dayIDs).
		Pluck("id", &existing).Error; err != nil {
		log.Error("load routine days failed", slog.Any("error", err))
		return err
	}
	alive := make(map[uint]struct{}, len(existing))
	for _, id := range existing {
		alive[id] = struct{}{}
	}

	var dangling []uint
	for _, rec := range records {
		if _, ok := alive[*rec.RoutineDayID]; !ok {
			dangling = append(dangling, rec.ID)
		}
	}
	if len(dangling) == 0 {
		return nil
	}

	if err := h.db.WithContext(ctx).
		Model(&database.WorkoutPersonalRecord{}).
		Where("id IN ?", dangling).
		Update("routine_day_id", nil).Error; err != nil {
		log.Error("clear dangling record references failed", slog.Any("error", err))
		return err
	}

	log.Info("cleared dangling personal record references", slog.Int("count", len(dangling)))
	return nil
}
