package offline

import "time"

type OperationType string

const (
	OpInventoryUpdate     OperationType = "inventory_update"
	OpEmployeeAdd         OperationType = "employee_add"
	OpPaymentAdd          OperationType = "payment_add"
	OpRestockNotification OperationType = "restock_notification"
	OpPaymentReminder     OperationType = "payment_reminder"
	OpTaskAssignment      OperationType = "task_assignment"
)

type OperationStatus string

const (
	StatusPending OperationStatus = "pending"
	StatusSynced  OperationStatus = "synced"
	// StatusFailed marks a dead-lettered operation: it exhausted its retry
	// budget and is kept only for inspection.
	StatusFailed OperationStatus = "failed"
)

// PendingOperation is a deferred cloud action queued while offline or after a
// transient failure. The coordinator owns the record; Attempts/NextAttemptAt
// drive the retry backoff.
type PendingOperation struct {
	ID            string                 `json:"id"`
	Type          OperationType          `json:"type"`
	Data          map[string]interface{} `json:"data"`
	Timestamp     time.Time              `json:"timestamp"`
	Status        OperationStatus        `json:"status"`
	Attempts      int                    `json:"attempts"`
	NextAttemptAt time.Time              `json:"next_attempt_at"`
	LastError     string                 `json:"last_error,omitempty"`
}

// Status is a point-in-time snapshot of connectivity and queue state.
type Status struct {
	Online                bool       `json:"online"`
	OfflineMode           bool       `json:"offline_mode"`
	LastSync              *time.Time `json:"last_sync"`
	PendingOperations     int        `json:"pending_operations"`
	Microsoft365Available bool       `json:"microsoft_365_available"`
	CloudSyncAvailable    bool       `json:"cloud_sync_available"`
}
