package server

func (s *Server) initRoutes() {
	// LOGIN
	s.RegisterRouteHandler("POST "+RouteAuthLogin, ChainMiddleware(s.BeginLoginHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthCode, ChainMiddleware(s.SubmitCodeHandler(), s.APIMiddleware(s.RequireSignInCredential())...))

	// FILES
	s.RegisterRouteHandler("POST "+RouteFiles, ChainMiddleware(s.UploadHandler(), s.APIMiddleware(s.RequireCredential())...))
	s.RegisterRouteHandler("GET "+RouteFiles, ChainMiddleware(s.ListFilesHandler(), s.APIMiddleware(s.RequireCredential())...))
	s.RegisterRouteHandler("GET "+RouteFileID, ChainMiddleware(s.DownloadHandler(), s.APIMiddleware(s.RequireCredential())...))

	// MESSAGES
	s.RegisterRouteHandler("POST "+RouteMessages, ChainMiddleware(s.SendMessageHandler(), s.APIMiddleware(s.RequireCredential())...))
	s.RegisterRouteHandler("GET "+RouteMessageID, ChainMiddleware(s.GetMessageHandler(), s.APIMiddleware(s.RequireCredential())...))

	// PAGES
	s.RegisterRouteHandler("GET "+RouteIndex, ChainMiddleware(s.IndexHandler(), s.PageMiddleware(s.RequirePageCredential())...))
	s.RegisterRouteHandler("GET "+RouteLoginPage, ChainMiddleware(s.LoginPageHandler(), s.PageMiddleware()...))
}
