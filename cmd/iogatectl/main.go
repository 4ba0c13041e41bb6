package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/danmuck/iogate/internal/gateway"
	"github.com/danmuck/iogate/internal/logging"
)

func main() {
	path := flag.String("config", "cmd/iogatectl/config.toml", "gateway config path")
	flag.Parse()

	logging.ConfigureRuntime()

	cfg, err := loadServiceConfig(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "iogatectl: %v\n", err)
		os.Exit(1)
	}
	svc := gateway.NewService(cfg)
	if err := svc.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "iogatectl: %v\n", err)
		os.Exit(1)
	}
}
