package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/planbord/backend/core/notif"
	"github.com/planbord/backend/core/notify"
)

type notificationApi struct {
	service *notify.Service
}

func registerNotificationAPI(g *echo.Group, svc *notify.Service) {
	api := notificationApi{service: svc}

	ng := g.Group("/notifications")
	ng.POST("/low-stock", api.lowStock)
	ng.POST("/payment-reminder", api.paymentReminder)
	ng.POST("/task-assignment", api.taskAssignment)
	ng.POST("/restock-check", api.restockCheck)
}

type (
	lowStockRequest struct {
		ProductName     string `json:"product_name" validate:"required"`
		SKU             string `json:"sku" validate:"required"`
		CurrentQuantity int    `json:"current_quantity"`
		MinimumQuantity int    `json:"minimum_quantity"`
		ReorderQuantity int    `json:"reorder_quantity"`
	}

	paymentReminderRequest struct {
		InvoiceNumber string `json:"invoice_number" validate:"required"`
		Amount        string `json:"amount" validate:"required"`
		DueDate       string `json:"due_date" validate:"required"`
		CustomerName  string `json:"customer_name" validate:"required"`
	}

	taskAssignmentRequest struct {
		TaskTitle       string `json:"task_title" validate:"required"`
		TaskDescription string `json:"task_description" validate:"required"`
		DueDate         string `json:"due_date" validate:"required"`
		Priority        string `json:"priority" validate:"required"`
		EmployeeEmail   string `json:"employee_email" validate:"required,email"`
	}

	notificationResponse struct {
		Result notify.Result `json:"result"`
	}
)

// Handlers

func (api *notificationApi) lowStock(ctx echo.Context) error {
	data := new(lowStockRequest)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if err := ctx.Validate(data); err != nil {
		return err
	}

	res := api.service.NotifyLowStock(ctx.Request().Context(), notif.LowStockAlert{
		ProductName:     data.ProductName,
		SKU:             data.SKU,
		CurrentQuantity: data.CurrentQuantity,
		MinimumQuantity: data.MinimumQuantity,
		ReorderQuantity: data.ReorderQuantity,
	})
	return notificationResult(ctx, res)
}

func (api *notificationApi) paymentReminder(ctx echo.Context) error {
	data := new(paymentReminderRequest)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if err := ctx.Validate(data); err != nil {
		return err
	}

	res := api.service.RemindPayment(ctx.Request().Context(), notif.PaymentReminder{
		InvoiceNumber: data.InvoiceNumber,
		Amount:        data.Amount,
		DueDate:       data.DueDate,
		CustomerName:  data.CustomerName,
	})
	return notificationResult(ctx, res)
}

func (api *notificationApi) taskAssignment(ctx echo.Context) error {
	data := new(taskAssignmentRequest)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if err := ctx.Validate(data); err != nil {
		return err
	}

	res := api.service.AssignTask(ctx.Request().Context(), notif.TaskAssignment{
		TaskTitle:       data.TaskTitle,
		TaskDescription: data.TaskDescription,
		DueDate:         data.DueDate,
		Priority:        data.Priority,
	}, data.EmployeeEmail)
	return notificationResult(ctx, res)
}

func (api *notificationApi) restockCheck(ctx echo.Context) error {
	handled := api.service.CheckRestock(ctx.Request().Context())
	return ctx.JSON(http.StatusOK, echo.Map{"alerts": handled})
}

func notificationResult(ctx echo.Context, res notify.Result) error {
	if res == notify.ResultFailed {
		return errDeliveryFailed
	}
	return ctx.JSON(http.StatusAccepted, notificationResponse{Result: res})
}
