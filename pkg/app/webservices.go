package app

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/womat/debug"

	"rotorenc/pkg/axis"
	"rotorenc/pkg/encoder"
)

// runWebServer starts the applications web server and listens for web requests.
//  It's designed to run in a separate go function to not block the main go function.
//  e.g.: go runWebServer()
//  See app.Run()
func (app *App) runWebServer() {
	err := app.web.Listen(app.urlParsed.Host)
	debug.ErrorLog.Print(err)
}

// propertyError maps the errors of the property table to http status codes.
func propertyError(ctx *fiber.Ctx, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, encoder.ErrUnknownProperty):
		status = http.StatusNotFound
	case errors.Is(err, encoder.ErrReadOnly):
		status = http.StatusMethodNotAllowed
	case errors.Is(err, encoder.ErrInvalidValue), errors.Is(err, axis.ErrInvalidState):
		status = http.StatusBadRequest
	}

	debug.ErrorLog.Printf("web request: %v", err)
	return ctx.Status(status).JSON(fiber.Map{"error": err.Error()})
}

// body returns the request body as a trimmed scalar, e.g. "8192" or "spi_abs_ams".
func body(ctx *fiber.Ctx) string {
	return strings.TrimSpace(string(ctx.Body()))
}

// HandleEncoder returns all encoder properties.
func (app *App) HandleEncoder() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		debug.InfoLog.Print("web request encoder")
		return ctx.JSON(app.encoder.Values())
	}
}

// HandleGetProperty returns one encoder property. Config properties are reached with the prefix.
func (app *App) HandleGetProperty(prefix string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		name := prefix + ctx.Params("name")
		debug.DebugLog.Printf("web request get %v", name)

		v, err := app.encoder.Get(name)
		if err != nil {
			return propertyError(ctx, err)
		}
		return ctx.JSON(fiber.Map{name: v})
	}
}

// HandleSetProperty writes one encoder property from the request body.
func (app *App) HandleSetProperty(prefix string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		name := prefix + ctx.Params("name")
		debug.InfoLog.Printf("web request set %v to %q", name, body(ctx))

		if err := app.encoder.Set(name, body(ctx)); err != nil {
			return propertyError(ctx, err)
		}

		v, _ := app.encoder.Get(name)
		return ctx.JSON(fiber.Map{name: v})
	}
}

// HandleAxis returns the axis state.
func (app *App) HandleAxis() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		debug.InfoLog.Print("web request axis")
		return ctx.JSON(app.axis.Snapshot())
	}
}

// HandleRequestState requests a new axis state, given by name or number.
func (app *App) HandleRequestState() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		debug.InfoLog.Printf("web request axis state %q", body(ctx))

		s, err := axis.ParseState(body(ctx))
		if err == nil {
			err = app.axis.RequestState(s)
		}
		if err != nil {
			return propertyError(ctx, err)
		}
		return ctx.Status(http.StatusAccepted).JSON(app.axis.Snapshot())
	}
}

// HandleClearErrors clears the axis and encoder errors, the only accepted value is 0.
func (app *App) HandleClearErrors() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		debug.InfoLog.Print("web request clear axis errors")

		if body(ctx) != "0" {
			return propertyError(ctx, encoder.ErrInvalidValue)
		}
		app.encoder.ClearErrors(encoder.ErrorNone)
		app.axis.ClearErrors()
		return ctx.JSON(app.axis.Snapshot())
	}
}
