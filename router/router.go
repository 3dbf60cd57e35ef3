package router

import (
	"net/http"

	ideaHandler "streamlify/internal/idea"
	"streamlify/internal/idea/service"
	"streamlify/middleware"
	"streamlify/socket"
)

type Options struct {
	JWTSecret     []byte
	AllowedOrigin string
}

func Setup(svc *service.IdeaService, hub *socket.Hub, opts Options) http.Handler {
	mux := http.NewServeMux()
	auth := middleware.Auth(opts.JWTSecret)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// WebSocket
	wsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		socket.ServeWs(hub, w, r, middleware.ActorFrom(r.Context()).UserID)
	})
	mux.Handle("/ws", auth(wsHandler))

	// REST API
	ideas := ideaHandler.NewIdeaHandler(svc)

	mux.Handle("/api/ideas", auth(http.HandlerFunc(ideas.Ideas)))
	mux.Handle("/api/vote", auth(http.HandlerFunc(ideas.Vote)))
	mux.Handle("/api/flush", auth(http.HandlerFunc(ideas.Flush)))
	mux.Handle("/api/votes/me", auth(http.HandlerFunc(ideas.MyVotes)))

	return middleware.RequestLogger(middleware.CORSMiddleware(opts.AllowedOrigin)(mux))
}
