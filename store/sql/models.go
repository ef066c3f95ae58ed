package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type executionRecordRow struct {
	bun.BaseModel `bun:"table:entitlement_execution_records,alias:eer"`

	ID          string    `bun:"id,pk"`
	ExecutionID string    `bun:"execution_id,notnull"`
	Task        string    `bun:"task,notnull"`
	Level       string    `bun:"level,notnull"`
	Domain      string    `bun:"domain,notnull"`
	Action      string    `bun:"action,notnull"`
	Status      string    `bun:"status,notnull"`
	ResourceID  string    `bun:"resource_id,notnull"`
	Message     string    `bun:"message,notnull"`
	Body        string    `bun:"body,notnull"`
	Error       string    `bun:"error,notnull"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}
