package app

// initDefaultRoutes initializes the applications default routes.
//  These are the routes which always are the same in every application.
//  Things like user api, version, ...
func (app *App) initDefaultRoutes() {
	api := app.web.Group("/")
	if app.config.Webserver.Webservices["version"] {
		api.Get("/version", app.HandleVersion())
	}
	if app.config.Webserver.Webservices["health"] {
		api.Get("/health", app.HandleHealth())
	}
	if app.config.Webserver.Webservices["encoder"] {
		api.Get("/encoder", app.HandleEncoder())
		api.Get("/encoder/config/:name", app.HandleGetProperty("config."))
		api.Put("/encoder/config/:name", app.HandleSetProperty("config."))
		api.Get("/encoder/:name", app.HandleGetProperty(""))
		api.Put("/encoder/:name", app.HandleSetProperty(""))
	}
	if app.config.Webserver.Webservices["axis"] {
		api.Get("/axis", app.HandleAxis())
		api.Put("/axis/requested_state", app.HandleRequestState())
		api.Put("/axis/error", app.HandleClearErrors())
	}
}
