// Package hal turns the devices named on "config/hal" into bus capabilities.
package hal

import (
	"context"
	"log/slog"

	"camsensor-go/bus"
	"camsensor-go/services/hal/internal/platform"
	"camsensor-go/services/hal/internal/service"

	// Device builders register themselves with the registry.
	_ "camsensor-go/services/hal/internal/devices/mt9j003"
)

// Run serves the HAL on conn with the platform's I²C buses and GPIO pins
// until ctx is cancelled.
func Run(ctx context.Context, conn *bus.Connection, log *slog.Logger) {
	service.New(conn, platform.DefaultI2CFactory(), platform.DefaultPinFactory(), log).Run(ctx)
}
