package app

import (
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/womat/debug"

	"rotorenc/pkg/axis"
)

// HandleHealth returns data about the health of myself and of the axis.
// output example:
//  {"NumGoroutines":11,"HeapAllocatedMB":3,"Version":"0.6.10+20261001","ProgLang":"go1.23.2",
//   "Simulated":true,"EncoderReady":true,"EncoderError":"no error","AxisState":"idle","LoopCounter":81234}
// The status is 503 while the axis or the encoder report an error that stops the estimator.
func (app *App) HandleHealth() fiber.Handler {
	bToMb := func(b uint64) uint64 {
		return b / 1024 / 1024
	}

	host, _ := os.Hostname()

	return func(ctx *fiber.Ctx) error {
		debug.InfoLog.Print("web request health")

		var m runtime.MemStats
		runtime.ReadMemStats(&m)

		encErr, axisErr := app.encoder.Errors(), app.axis.Errors()

		healthData := struct {
			NumGoroutines   int
			NumCPU          int
			HeapAllocatedMB uint64
			SysMemoryMB     uint64
			Version         string
			ProgLang        string
			HostName        string
			Time            string
			Simulated       bool
			EncoderReady    bool
			EncoderError    string
			AxisState       axis.State
			AxisError       string
			LoopCounter     uint64
		}{
			NumGoroutines:   runtime.NumGoroutine(),
			NumCPU:          runtime.NumCPU(),
			HeapAllocatedMB: bToMb(m.Alloc),
			SysMemoryMB:     bToMb(m.Sys),
			ProgLang:        runtime.Version(),
			Version:         VERSION,
			HostName:        host,
			Time:            time.Now().Format(time.RFC3339),
			Simulated:       app.config.Simulate,
			EncoderReady:    app.encoder.IsReady(),
			EncoderError:    encErr.Error(),
			AxisState:       app.axis.CurrentState(),
			AxisError:       axisErr.Error(),
			LoopCounter:     app.axis.LoopCounter(),
		}

		status := http.StatusOK
		if !encErr.Advisory() || axisErr != axis.ErrorNone {
			status = http.StatusServiceUnavailable
		}
		ctx.Status(status)
		return ctx.JSON(healthData)
	}
}
