package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/planbord/backend/core/offline"
)

type systemApi struct {
	coord *offline.Coordinator
}

func registerSystemAPI(g *echo.Group, coord *offline.Coordinator) {
	api := systemApi{coord: coord}

	g.GET("/status", api.status)
	g.GET("/features", api.features)
	g.GET("/pending-operations", api.pendingOperations)
	g.DELETE("/pending-operations/failed", api.clearFailed)
	g.POST("/connectivity/check", api.checkConnectivity)
	g.POST("/offline", api.switchOffline)
	g.POST("/online", api.switchOnline)
	g.POST("/sync", api.syncNow)
}

// Handlers

func (api *systemApi) status(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.coord.Status())
}

func (api *systemApi) features(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.coord.AvailableFeatures())
}

func (api *systemApi) pendingOperations(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.coord.Pending())
}

func (api *systemApi) clearFailed(ctx echo.Context) error {
	removed := api.coord.ClearFailed()
	return ctx.JSON(http.StatusOK, echo.Map{"removed": removed})
}

func (api *systemApi) checkConnectivity(ctx echo.Context) error {
	api.coord.CheckConnectivity(ctx.Request().Context())
	return ctx.JSON(http.StatusOK, api.coord.Status())
}

func (api *systemApi) switchOffline(ctx echo.Context) error {
	api.coord.SwitchToOffline()
	return ctx.JSON(http.StatusOK, api.coord.Status())
}

func (api *systemApi) switchOnline(ctx echo.Context) error {
	api.coord.SwitchToOnline(ctx.Request().Context())
	return ctx.JSON(http.StatusOK, api.coord.Status())
}

func (api *systemApi) syncNow(ctx echo.Context) error {
	api.coord.SyncWithCloud(ctx.Request().Context())
	return ctx.JSON(http.StatusOK, api.coord.Status())
}
