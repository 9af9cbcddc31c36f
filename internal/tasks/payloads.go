package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// 任务类型常量，确保队列生产者与消费者一致。
const (
	TypeRecordsReconcile = "records:reconcile"
)

// RecordsReconcilePayload 标识需要清理个人纪录回链的用户。
type RecordsReconcilePayload struct {
	UserID uint `json:"user_id"`
}

// NewRecordsReconcileTask 构造一个个人纪录回链清理任务。
func NewRecordsReconcileTask(userID uint) (*asynq.Task, error) {
	payload, err := json.Marshal(RecordsReconcilePayload{UserID: userID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeRecordsReconcile, payload), nil
}
