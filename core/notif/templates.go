// Package notif holds the notification templates and their typed payloads.
// Each notification kind carries a fixed field set checked by Validate, so an
// incomplete payload fails loudly before any rendering or delivery happens.
package notif

import (
	"bytes"
	htmltmpl "html/template"
	"sync"
	texttmpl "text/template"

	"github.com/pkg/errors"

	"github.com/planbord/backend/core"
)

const (
	KindLowStock        = "low_stock"
	KindPaymentReminder = "payment_reminder"
	KindTaskAssignment  = "task_assignment"
)

// Notification is a renderable, self-validating notification payload.
type Notification interface {
	Kind() string
	Validate() error
	Render() (subject, bodyHTML string, err error)
}

type LowStockAlert struct {
	ProductName     string `json:"product_name"`
	SKU             string `json:"sku"`
	CurrentQuantity int    `json:"current_quantity"`
	MinimumQuantity int    `json:"minimum_quantity"`
	ReorderQuantity int    `json:"reorder_quantity"`
}

func (a LowStockAlert) Kind() string { return KindLowStock }

func (a LowStockAlert) Validate() error {
	if a.ProductName == "" {
		return missingField(KindLowStock, "product_name")
	}
	if a.SKU == "" {
		return missingField(KindLowStock, "sku")
	}
	return nil
}

func (a LowStockAlert) Render() (string, string, error) { return render(a) }

type PaymentReminder struct {
	InvoiceNumber string `json:"invoice_number"`
	Amount        string `json:"amount"`
	DueDate       string `json:"due_date"`
	CustomerName  string `json:"customer_name"`
}

func (r PaymentReminder) Kind() string { return KindPaymentReminder }

func (r PaymentReminder) Validate() error {
	for field, val := range map[string]string{
		"invoice_number": r.InvoiceNumber,
		"amount":         r.Amount,
		"due_date":       r.DueDate,
		"customer_name":  r.CustomerName,
	} {
		if val == "" {
			return missingField(KindPaymentReminder, field)
		}
	}
	return nil
}

func (r PaymentReminder) Render() (string, string, error) { return render(r) }

type TaskAssignment struct {
	TaskTitle       string `json:"task_title"`
	TaskDescription string `json:"task_description"`
	DueDate         string `json:"due_date"`
	Priority        string `json:"priority"`
}

func (a TaskAssignment) Kind() string { return KindTaskAssignment }

func (a TaskAssignment) Validate() error {
	for field, val := range map[string]string{
		"task_title":       a.TaskTitle,
		"task_description": a.TaskDescription,
		"due_date":         a.DueDate,
		"priority":         a.Priority,
	} {
		if val == "" {
			return missingField(KindTaskAssignment, field)
		}
	}
	return nil
}

func (a TaskAssignment) Render() (string, string, error) { return render(a) }

func missingField(kind, field string) error {
	return core.NewFailuref(core.MissingField, "%s: missing field %q", kind, field)
}

type tmplEntry struct {
	subject *texttmpl.Template
	body    *htmltmpl.Template
}

var (
	templates map[string]tmplEntry
	tmplInit  sync.Once
)

func render(n Notification) (string, string, error) {
	if err := n.Validate(); err != nil {
		return "", "", err
	}
	tmplInit.Do(parseTemplates)

	entry, ok := templates[n.Kind()]
	if !ok {
		return "", "", errors.Errorf("no template for notification kind %q", n.Kind())
	}

	var subject, body bytes.Buffer
	if err := entry.subject.Execute(&subject, n); err != nil {
		return "", "", errors.Wrapf(err, "rendering %s subject", n.Kind())
	}
	if err := entry.body.Execute(&body, n); err != nil {
		return "", "", errors.Wrapf(err, "rendering %s body", n.Kind())
	}
	return subject.String(), body.String(), nil
}

func parseTemplates() {
	templates = make(map[string]tmplEntry, len(sources))
	for kind, src := range sources {
		templates[kind] = tmplEntry{
			subject: texttmpl.Must(texttmpl.New(kind).Option("missingkey=error").Parse(src.subject)),
			body:    htmltmpl.Must(htmltmpl.New(kind).Option("missingkey=error").Parse(src.body)),
		}
	}
}

var sources = map[string]struct{ subject, body string }{
	KindLowStock: {
		subject: "Low Stock Alert - {{.ProductName}}",
		body: `<html>
<body>
	<h2>Low Stock Alert</h2>
	<p>The following product is running low on stock:</p>
	<ul>
		<li><strong>Product:</strong> {{.ProductName}}</li>
		<li><strong>SKU:</strong> {{.SKU}}</li>
		<li><strong>Current Quantity:</strong> {{.CurrentQuantity}}</li>
		<li><strong>Minimum Quantity:</strong> {{.MinimumQuantity}}</li>
		<li><strong>Reorder Quantity:</strong> {{.ReorderQuantity}}</li>
	</ul>
	<p>Please consider restocking this item.</p>
	<p>Best regards,<br>The Planning Bord System</p>
</body>
</html>`,
	},
	KindPaymentReminder: {
		subject: "Payment Reminder - Invoice {{.InvoiceNumber}}",
		body: `<html>
<body>
	<h2>Payment Reminder</h2>
	<p>This is a reminder for the following payment:</p>
	<ul>
		<li><strong>Invoice Number:</strong> {{.InvoiceNumber}}</li>
		<li><strong>Amount:</strong> ${{.Amount}}</li>
		<li><strong>Due Date:</strong> {{.DueDate}}</li>
		<li><strong>Customer:</strong> {{.CustomerName}}</li>
	</ul>
	<p>Please process this payment at your earliest convenience.</p>
	<p>Best regards,<br>The Planning Bord System</p>
</body>
</html>`,
	},
	KindTaskAssignment: {
		subject: "New Task Assignment - {{.TaskTitle}}",
		body: `<html>
<body>
	<h2>New Task Assignment</h2>
	<p>You have been assigned a new task:</p>
	<ul>
		<li><strong>Task:</strong> {{.TaskTitle}}</li>
		<li><strong>Description:</strong> {{.TaskDescription}}</li>
		<li><strong>Due Date:</strong> {{.DueDate}}</li>
		<li><strong>Priority:</strong> {{.Priority}}</li>
	</ul>
	<p>Please complete this task by the due date.</p>
	<p>Best regards,<br>The Planning Bord System</p>
</body>
</html>`,
	},
}
