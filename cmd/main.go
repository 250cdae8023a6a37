// Package main is the entry point of the offline cache gateway.
//
// @title           Offline Cache Gateway
// @version         1.0.0
// @description     Intercepts client requests and serves them from versioned cache partitions when the network is slow or gone. The admin API lives under /_sw.
//
// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT
//
// @host      localhost:8080
// @BasePath  /
package main

import (
	"context"

	"github.com/guttosm/offline-cache/config"
	"github.com/guttosm/offline-cache/internal/app"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg := config.Load()

	gateway, err := app.Bootstrap(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Gateway failed to start")
	}

	if err := gateway.Run(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Server error")
	}
}
