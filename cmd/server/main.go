// Command server runs the SPA auth HTTP API.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/spa-auth/internal/server"
	"github.com/dmitrijs2005/spa-auth/internal/server/config"
)

func main() {
	ctx := context.Background()

	app, err := server.NewApp(ctx, config.LoadConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "spa-auth: %v\n", err)
		os.Exit(1)
	}

	app.Run(ctx)
}
