package offline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/planbord/backend/core"
	"github.com/planbord/backend/core/inventory"
)

const (
	// the queue is bounded and retries back off exponentially; operations
	// that exhaust the budget are dead-lettered instead of retried forever
	maxPendingOperations = 1000
	maxSyncAttempts      = 8
	baseRetryDelay       = 30 * time.Second
	maxRetryDelay        = time.Hour

	defaultSyncTimeout = 10 * time.Second
)

var ErrQueueFull = errors.New("pending operation queue is full")

// NotificationSender redelivers queued notification operations once the
// coordinator is back online. *msgraph.Sender satisfies it.
type NotificationSender interface {
	SendWithRefresh(ctx context.Context, to, subject, bodyHTML string, cc []string) bool
}

// Coordinator owns the online/offline state and the queue of deferred cloud
// operations. Every cloud-dependent feature consults its gates; a gate that
// reads false means the feature degrades to local-only or queued behavior.
//
// State and queue are guarded by a mutex that is never held across a network
// call. Sync is caller-triggered (mode switch or explicit invocation); there
// is no internal timer.
type Coordinator struct {
	conf     *core.Config
	logger   core.Logger
	probe    *Probe
	products inventory.Repository
	notifier NotificationSender
	client   *http.Client

	mu          sync.Mutex
	isOnline    bool
	offlineMode bool
	lastSync    time.Time
	pending     []*PendingOperation
}

func NewCoordinator(conf *core.Config, products inventory.Repository, notifier NotificationSender, logger core.Logger) *Coordinator {
	timeout := conf.Cloud.SyncTimeout
	if timeout <= 0 {
		timeout = defaultSyncTimeout
	}
	return &Coordinator{
		conf:        conf,
		logger:      logger,
		probe:       NewProbe(conf.ConnectivityProbeURL, logger),
		products:    products,
		notifier:    notifier,
		client:      &http.Client{Timeout: timeout},
		offlineMode: conf.OfflineMode,
	}
}

// Initialize probes connectivity once and runs an initial sync when possible.
func (c *Coordinator) Initialize(ctx context.Context) {
	online := c.CheckConnectivity(ctx)
	if online && !c.OfflineMode() {
		c.SyncWithCloud(ctx)
	}
	c.logger.Info(fmt.Sprintf("offline coordinator initialized. online: %t, offline mode: %t", online, c.OfflineMode()))
}

// CheckConnectivity runs the probe and records the result.
func (c *Coordinator) CheckConnectivity(ctx context.Context) bool {
	online := c.probe.Check(ctx)
	c.mu.Lock()
	c.isOnline = online
	c.mu.Unlock()
	return online
}

func (c *Coordinator) IsOnline() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isOnline
}

func (c *Coordinator) OfflineMode() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offlineMode
}

// Microsoft365Available is the Microsoft 365 feature gate: connected, not in
// offline mode and an app registration present.
func (c *Coordinator) Microsoft365Available() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isOnline && !c.offlineMode && c.conf.Microsoft.ClientID != ""
}

// CloudSyncAvailable is the cloud-sync feature gate.
func (c *Coordinator) CloudSyncAvailable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isOnline && !c.offlineMode && c.conf.Cloud.APIURL != ""
}

// CanSendEmails is true when either Graph mail or the fallback provider is
// usable.
func (c *Coordinator) CanSendEmails() bool {
	return c.Microsoft365Available() || c.conf.SendgridApiKey != ""
}

// Status returns a snapshot of connectivity, queue depth and feature gates.
func (c *Coordinator) Status() Status {
	m365 := c.Microsoft365Available()
	cloud := c.CloudSyncAvailable()

	c.mu.Lock()
	defer c.mu.Unlock()

	var lastSync *time.Time
	if !c.lastSync.IsZero() {
		ts := c.lastSync
		lastSync = &ts
	}
	return Status{
		Online:                c.isOnline,
		OfflineMode:           c.offlineMode,
		LastSync:              lastSync,
		PendingOperations:     c.pendingCountLocked(),
		Microsoft365Available: m365,
		CloudSyncAvailable:    cloud,
	}
}

// AvailableFeatures maps feature names to availability. The local-first
// features are always on; everything cloud-dependent goes through a gate.
func (c *Coordinator) AvailableFeatures() map[string]bool {
	canMail := c.CanSendEmails()
	m365 := c.Microsoft365Available()
	cloud := c.CloudSyncAvailable()
	return map[string]bool{
		"inventory_management":      true,
		"employee_management":       true,
		"payment_tracking":          true,
		"email_notifications":       canMail,
		"microsoft_365_integration": m365,
		"cloud_sync":                cloud,
		"automatic_restock":         canMail,
		"online_reports":            c.IsOnline(),
		"backup_to_cloud":           cloud,
	}
}

// AddPending queues an operation for the next sync cycle, stamping id,
// timestamp and status. Returns ErrQueueFull when the bound is hit; the bound
// covers every record in the queue, dead-lettered ones included, so inspection
// leftovers cannot grow it without limit (ClearFailed frees that capacity).
func (c *Coordinator) AddPending(op PendingOperation) error {
	now := time.Now().UTC()
	op.ID = uuid.New().String()
	op.Timestamp = now
	op.Status = StatusPending
	op.Attempts = 0
	op.NextAttemptAt = now

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.pending) >= maxPendingOperations {
		c.logger.Error(fmt.Sprintf("dropping pending operation %s: queue full", op.Type), ErrQueueFull)
		return ErrQueueFull
	}
	c.pending = append(c.pending, &op)
	c.logger.Info(fmt.Sprintf("added pending operation: %s", op.Type))
	return nil
}

// Pending returns a copy of the queue, dead-lettered operations included.
func (c *Coordinator) Pending() []PendingOperation {
	c.mu.Lock()
	defer c.mu.Unlock()

	ops := make([]PendingOperation, 0, len(c.pending))
	for _, op := range c.pending {
		ops = append(ops, *op)
	}
	return ops
}

// ClearFailed drops dead-lettered operations from the queue and reports how
// many were removed.
func (c *Coordinator) ClearFailed() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := make([]*PendingOperation, 0, len(c.pending))
	for _, op := range c.pending {
		if op.Status != StatusFailed {
			kept = append(kept, op)
		}
	}
	removed := len(c.pending) - len(kept)
	c.pending = kept
	if removed > 0 {
		c.logger.Info(fmt.Sprintf("cleared %d failed operations", removed))
	}
	return removed
}

// SwitchToOffline sets the operator override that forces cloud features off.
func (c *Coordinator) SwitchToOffline() {
	c.mu.Lock()
	c.offlineMode = true
	c.mu.Unlock()
	c.logger.Info("switched to offline mode")
}

// SwitchToOnline lifts the override and immediately syncs when connected.
func (c *Coordinator) SwitchToOnline(ctx context.Context) {
	c.mu.Lock()
	c.offlineMode = false
	online := c.isOnline
	c.mu.Unlock()

	if online {
		c.SyncWithCloud(ctx)
	}
	c.logger.Info("switched to online mode")
}

// SyncWithCloud first redelivers queued notifications (gated on Graph mail, so
// a deployment without a cloud API still drains them), then drains the
// remaining due operations against the cloud endpoints and pushes all active
// products. Successfully synced operations leave the queue; failures back off
// and eventually dead-letter. last_sync is updated regardless of individual
// item outcomes.
func (c *Coordinator) SyncWithCloud(ctx context.Context) {
	c.redeliverNotifications(ctx)

	if !c.CloudSyncAvailable() {
		c.logger.Warn("cloud sync not available")
		return
	}

	now := time.Now().UTC()
	for _, op := range c.duePending(now) {
		if isNotificationOp(op.Type) {
			continue
		}
		if err := c.syncOperation(ctx, op); err != nil {
			c.logger.Error(fmt.Sprintf("failed to sync operation %s: %v", op.Type, err), err)
			c.recordFailure(op.ID, err)
		} else {
			c.remove(op.ID)
		}
	}

	c.syncProducts(ctx)

	c.mu.Lock()
	c.lastSync = time.Now().UTC()
	c.mu.Unlock()
	c.logger.Info("cloud sync completed")
}

func (c *Coordinator) pendingCountLocked() int {
	n := 0
	for _, op := range c.pending {
		if op.Status == StatusPending {
			n++
		}
	}
	return n
}

func (c *Coordinator) duePending(now time.Time) []PendingOperation {
	c.mu.Lock()
	defer c.mu.Unlock()

	due := make([]PendingOperation, 0, len(c.pending))
	for _, op := range c.pending {
		if op.Status == StatusPending && !now.Before(op.NextAttemptAt) {
			due = append(due, *op)
		}
	}
	return due
}

func (c *Coordinator) remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, op := range c.pending {
		if op.ID == id {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return
		}
	}
}

func (c *Coordinator) recordFailure(id string, cause error) {
	now := time.Now().UTC()

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, op := range c.pending {
		if op.ID != id {
			continue
		}
		op.Attempts++
		op.LastError = cause.Error()
		if op.Attempts >= maxSyncAttempts {
			op.Status = StatusFailed
			c.logger.Error(fmt.Sprintf("operation %s dead-lettered after %d attempts", op.Type, op.Attempts), cause)
			return
		}
		op.NextAttemptAt = now.Add(retryDelay(op.Attempts))
		return
	}
}

func retryDelay(attempts int) time.Duration {
	delay := baseRetryDelay << uint(attempts-1)
	if delay > maxRetryDelay || delay <= 0 {
		return maxRetryDelay
	}
	return delay
}

func isNotificationOp(t OperationType) bool {
	switch t {
	case OpRestockNotification, OpPaymentReminder, OpTaskAssignment:
		return true
	}
	return false
}

func (c *Coordinator) syncOperation(ctx context.Context, op PendingOperation) error {
	switch op.Type {
	case OpInventoryUpdate:
		return c.postSync(ctx, "/inventory/sync", op.Data)
	case OpEmployeeAdd:
		return c.postSync(ctx, "/employees/sync", op.Data)
	case OpPaymentAdd:
		return c.postSync(ctx, "/payments/sync", op.Data)
	default:
		return errors.Errorf("unknown operation type %q", op.Type)
	}
}

// redeliverNotifications resends notifications that were queued while mail was
// unavailable. Gated on Graph mail only: it runs even when no cloud API is
// configured. An unavailable gate leaves the queue untouched, so transient
// outages do not burn retry budget.
func (c *Coordinator) redeliverNotifications(ctx context.Context) {
	if c.notifier == nil || !c.Microsoft365Available() {
		return
	}

	now := time.Now().UTC()
	for _, op := range c.duePending(now) {
		if !isNotificationOp(op.Type) {
			continue
		}
		if err := c.redeliverNotification(ctx, op); err != nil {
			c.logger.Error(fmt.Sprintf("failed to redeliver %s: %v", op.Type, err), err)
			c.recordFailure(op.ID, err)
		} else {
			c.remove(op.ID)
		}
	}
}

// The rendered content travels in the operation data.
func (c *Coordinator) redeliverNotification(ctx context.Context, op PendingOperation) error {
	to, _ := op.Data["to"].(string)
	subject, _ := op.Data["subject"].(string)
	body, _ := op.Data["body"].(string)
	if to == "" || subject == "" {
		return core.NewFailuref(core.MissingField, "queued %s operation missing recipient or subject", op.Type)
	}
	if !c.notifier.SendWithRefresh(ctx, to, subject, body, nil) {
		return core.NewFailuref(core.RemoteRejected, "redelivery of %s to %s refused", op.Type, to)
	}
	return nil
}

func (c *Coordinator) postSync(ctx context.Context, path string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "encoding sync payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.conf.Cloud.APIURL+path, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "creating sync request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.conf.Cloud.APIKey != "" {
		req.Header.Set("X-API-Key", c.conf.Cloud.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return core.NewFailure(core.NetworkFailure, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return core.NewFailuref(core.RemoteRejected, "%s: status %d", path, resp.StatusCode)
	}
	return nil
}

// syncProducts is the bulk pass: every active product is pushed to the cloud.
// Per-product failures are logged and do not stop the pass.
func (c *Coordinator) syncProducts(ctx context.Context) {
	if c.products == nil {
		return
	}

	products, err := c.products.ActiveProducts(ctx)
	if err != nil {
		c.logger.Error(fmt.Sprintf("inventory data sync failed: %v", err), err)
		return
	}

	for _, p := range products {
		payload := map[string]interface{}{
			"local_id":         p.ID,
			"sku":              p.SKU,
			"name":             p.Name,
			"current_quantity": p.CurrentQuantity,
			"last_updated":     nil,
		}
		if !p.UpdatedAt.IsZero() {
			payload["last_updated"] = p.UpdatedAt.UTC().Format(time.RFC3339)
		}
		if err := c.postSync(ctx, "/inventory/products/sync", payload); err != nil {
			c.logger.Warn(fmt.Sprintf("failed to sync product %s: %v", p.SKU, err), err)
		}
	}
	c.logger.Info(fmt.Sprintf("synced %d products with cloud", len(products)))
}
