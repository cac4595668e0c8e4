package server

import (
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/filegram/filegram/catalog"
	"github.com/filegram/filegram/credential"
	"github.com/filegram/filegram/files"
	"github.com/filegram/filegram/internal/config"
	"github.com/filegram/filegram/login"
	"github.com/filegram/filegram/messaging"
)

type Server struct {
	env     string // Environment (e.g., "DEV", "PROD")
	mux     *http.ServeMux
	routes  []string
	config  config.Config
	codec   *credential.Codec
	broker  *login.Broker
	gateway *files.Gateway
}

func New(config config.Config, dialer messaging.Dialer) (*Server, error) {
	codec := credential.NewCodec(config)

	s := &Server{
		mux:     http.NewServeMux(),
		config:  config,
		codec:   codec,
		broker:  login.NewBroker(dialer, codec, config),
		gateway: files.NewGateway(dialer, catalog.NewInMemoryRepo()),
	}
	s.env = config.GetEnv()

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Close drops the in-flight logins and their connections.
func (s *Server) Close() {
	s.broker.Close()
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Printf("[%-19s] %s\n", displayMethod, path)
}
