package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/securemessenger/relay/dispatch"
	"github.com/securemessenger/relay/registry"
	"github.com/securemessenger/relay/server"
)

func main() {
	cfg := server.NewConfigFromEnv()

	reg := registry.New()
	dispatcher := dispatch.New(reg)

	relay := server.New(cfg, reg, dispatcher)

	go func() {
		log.Println("Starting chat relay server...")
		if err := relay.Start(); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutting down server...")

	if err := relay.Shutdown(cfg.ShutdownTimeout); err != nil {
		log.Printf("Shutdown finished with error: %v", err)
	}
	log.Println("Server stopped")
}
