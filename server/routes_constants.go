package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Auth Routes - two-phase login
	RouteAuthLogin = "/auth/login"
	RouteAuthCode  = "/auth/code"

	// File Routes
	RouteFiles  = "/files"
	RouteFileID = "/files/{id}"

	// Message Routes
	RouteMessages  = "/messages"
	RouteMessageID = "/messages/{id}"

	// Page Routes
	RouteIndex     = "/{$}" // exact "/" only, the mux treats bare "/" as a catch-all
	RouteLoginPage = "/app/login"
)
