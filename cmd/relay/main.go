// Command relay runs the restaurant order fulfillment service.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/abhissng/relay/adapters/log"
	"github.com/abhissng/relay/app"
	"github.com/abhissng/relay/config"
	"github.com/abhissng/relay/utils/constant"
	"github.com/abhissng/relay/utils/graceful"
	"github.com/abhissng/relay/utils/helpers"
)

func main() {
	dir := flag.String("config", "config", "directory holding <environment>/relay.yaml")
	flag.Parse()

	cfg, err := config.Load(*dir)
	if err != nil {
		helpers.Println(constant.ERROR, "Failed to load config: "+err.Error())
		os.Exit(1)
	}

	ctx, stop := graceful.NotifyContext(context.Background())
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		helpers.Println(constant.ERROR, "Failed to start: "+err.Error())
		os.Exit(1)
	}
	if err := a.Run(ctx); err != nil {
		a.Logger.Error(constant.SystemStopped, log.Err(err))
		stop()
		os.Exit(1)
	}
}
