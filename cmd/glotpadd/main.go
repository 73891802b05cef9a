package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/fx"

	"github.com/glotpad/glotpad/internal/daemon"
	"github.com/glotpad/glotpad/internal/session"
)

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	relayFlag := flag.String("relay", "", "websocket relay URL (overrides config)")
	flag.Parse()

	sessionName := session.Resolve(*sessionFlag)
	if err := session.ValidateName(sessionName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	app := fx.New(
		daemon.Module(daemon.Params{SessionName: sessionName, RelayURL: *relayFlag}),
	)

	app.Run()
}
