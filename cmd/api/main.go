package main

import (
	"github.com/carlos18bp/live-chat-feature/server"
)

func main() {
	s := server.NewServer()
	defer s.Close()

	addr := s.Config.Server.Addr
	if addr == "" {
		addr = ":8080"
	}
	s.Start(addr)
}
