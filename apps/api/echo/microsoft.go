package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/planbord/backend/core/msgraph"
)

type microsoftApi struct {
	client *msgraph.Client
}

func registerMicrosoftAPI(app *echo.Echo, g *echo.Group, client *msgraph.Client) {
	api := microsoftApi{client: client}

	mg := g.Group("/microsoft")
	mg.GET("/auth-url", api.authURL)
	mg.GET("/me", api.userInfo)
	mg.POST("/disconnect", api.disconnect)

	// the redirect URI registered with the app registration
	app.GET("/auth/microsoft/callback", api.callback)
}

// Handlers

func (api *microsoftApi) authURL(ctx echo.Context) error {
	authURL, err := api.client.AuthURL(ctx.QueryParam("state"))
	if err != nil {
		return errMicrosoftNotConfigured
	}
	return ctx.JSON(http.StatusOK, echo.Map{"auth_url": authURL})
}

func (api *microsoftApi) callback(ctx echo.Context) error {
	code := ctx.QueryParam("code")
	if code == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing authorization code")
	}
	if !api.client.ExchangeCode(ctx.Request().Context(), code) {
		return errAuthenticationFailed
	}
	return ctx.JSON(http.StatusOK, echo.Map{"connected": true})
}

func (api *microsoftApi) userInfo(ctx echo.Context) error {
	info, err := api.client.UserInfo(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, info)
}

func (api *microsoftApi) disconnect(ctx echo.Context) error {
	api.client.Disconnect()
	return ctx.JSON(http.StatusOK, echo.Map{"connected": false})
}
