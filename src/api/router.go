package api

import "github.com/gorilla/mux"

func newRouter(s *Server) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/reset", s.handleReset).Methods("POST")
	r.HandleFunc("/step", s.handleStep).Methods("POST")
	r.HandleFunc("/state", s.handleState).Methods("GET")
	return r
}
