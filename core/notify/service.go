// Package notify ties the feature gates, templates and delivery channels
// together: render a notification, send it through Graph when the gate is
// open, fall back to the secondary mail provider, and queue a pending
// operation when nothing can be delivered right now.
package notify

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/planbord/backend/core"
	"github.com/planbord/backend/core/inventory"
	"github.com/planbord/backend/core/msgraph"
	"github.com/planbord/backend/core/notif"
	"github.com/planbord/backend/core/offline"
)

// Result reports how a notification was handled.
type Result string

const (
	ResultSent   Result = "sent"
	ResultQueued Result = "queued"
	ResultFailed Result = "failed"
)

type Service struct {
	conf     *core.Config
	coord    *offline.Coordinator
	sender   *msgraph.Sender
	fallback core.EmailService // optional secondary provider
	products inventory.Repository
	logger   core.Logger
}

func NewService(
	conf *core.Config,
	coord *offline.Coordinator,
	sender *msgraph.Sender,
	fallback core.EmailService,
	products inventory.Repository,
	logger core.Logger,
) *Service {
	return &Service{
		conf:     conf,
		coord:    coord,
		sender:   sender,
		fallback: fallback,
		products: products,
		logger:   logger,
	}
}

// NotifyLowStock alerts the configured notification address about a product
// running low.
func (s *Service) NotifyLowStock(ctx context.Context, alert notif.LowStockAlert) Result {
	return s.deliver(ctx, alert, s.conf.NotificationEmail, offline.OpRestockNotification)
}

// RemindPayment nudges the configured notification address about an unpaid
// invoice.
func (s *Service) RemindPayment(ctx context.Context, reminder notif.PaymentReminder) Result {
	return s.deliver(ctx, reminder, s.conf.NotificationEmail, offline.OpPaymentReminder)
}

// AssignTask notifies an employee about a task assigned to them.
func (s *Service) AssignTask(ctx context.Context, task notif.TaskAssignment, employeeEmail string) Result {
	return s.deliver(ctx, task, employeeEmail, offline.OpTaskAssignment)
}

// CheckRestock scans active products and fires a low-stock alert for every
// product below its minimum. Returns the number of alerts handled (sent or
// queued).
func (s *Service) CheckRestock(ctx context.Context) int {
	if s.products == nil {
		return 0
	}
	products, err := s.products.ActiveProducts(ctx)
	if err != nil {
		s.logger.Error(fmt.Sprintf("restock check failed: %v", err), err)
		return 0
	}

	handled := 0
	for _, p := range products {
		if !p.NeedsRestock() {
			continue
		}
		alert := notif.LowStockAlert{
			ProductName:     p.Name,
			SKU:             p.SKU,
			CurrentQuantity: p.CurrentQuantity,
			MinimumQuantity: p.MinimumQuantity,
			ReorderQuantity: p.ReorderQuantity,
		}
		if res := s.NotifyLowStock(ctx, alert); res != ResultFailed {
			handled++
		}
	}
	return handled
}

func (s *Service) deliver(ctx context.Context, n notif.Notification, to string, opType offline.OperationType) Result {
	subject, body, err := n.Render()
	if err != nil {
		// incomplete payloads are a programming error; fail loudly
		s.logger.Error(fmt.Sprintf("rendering %s notification: %v", n.Kind(), err), err)
		return ResultFailed
	}
	if to == "" {
		s.logger.Warn(fmt.Sprintf("no notification email configured for %s alerts", n.Kind()))
		return ResultFailed
	}

	if s.coord.Microsoft365Available() && s.sender != nil {
		if s.sender.SendWithRefresh(ctx, to, subject, body, nil) {
			return ResultSent
		}
		return s.queue(opType, to, subject, body)
	}

	if s.fallback != nil {
		s.fallback.SendMessages(&core.EmailMessage{
			To:          []mail.Address{{Address: to}},
			Subject:     subject,
			HTMLContent: body,
		})
		return ResultSent
	}

	return s.queue(opType, to, subject, body)
}

func (s *Service) queue(opType offline.OperationType, to, subject, body string) Result {
	op := offline.PendingOperation{
		Type: opType,
		Data: map[string]interface{}{
			"to":      to,
			"subject": subject,
			"body":    body,
		},
	}
	if err := s.coord.AddPending(op); err != nil {
		s.logger.Error(fmt.Sprintf("queueing %s notification: %v", opType, err), err)
		return ResultFailed
	}
	return ResultQueued
}
