// Command vanetsim wires a handful of vehicle.Instance values to an
// in-memory transport and a telemetry websocket feed, for manual exercise
// of the routing protocol outside of any test harness.
package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vanet-secure-routing/internal/config"
	"vanet-secure-routing/internal/telemetry"
	"vanet-secure-routing/internal/transport"
	"vanet-secure-routing/internal/vanet"
	vcrypto "vanet-secure-routing/internal/vanet/crypto"
	"vanet-secure-routing/internal/vanet/vanettest"
	"vanet-secure-routing/internal/vanet/vehicle"
	"vanet-secure-routing/internal/vanetlog"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	var telemetryAddr string

	cmd := &cobra.Command{
		Use:   "vanetsim",
		Short: "Run a small in-memory VANET routing demonstration",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Start three vehicles on a line and route data end to end",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runDemo(configPath, telemetryAddr)
		},
	}
	runCmd.Flags().StringVar(&configPath, "config", "", "path to a routing tunables YAML file")
	runCmd.Flags().StringVar(&telemetryAddr, "telemetry-addr", "", "if set, serve telemetry events over websocket at this address")

	cmd.AddCommand(runCmd)
	return cmd
}

func runDemo(configPath, telemetryAddr string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, err := vanetlog.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer log.Sync()

	tunables := cfg.Tunables()
	bus := telemetry.NewBus()

	if telemetryAddr != "" {
		go serveTelemetry(telemetryAddr, bus, log)
	}

	events := bus.Subscribe()
	go func() {
		for e := range events {
			log.Info("telemetry",
				zap.String("kind", string(e.Kind)),
				zap.String("vehicle", e.VehicleID),
				zap.String("peer", e.PeerID),
				zap.String("detail", e.Detail),
			)
		}
	}()

	net := vanettest.NewNetwork()
	clock := vanettest.NewFakeClock(time.Now())
	certs := transport.StaticCertStore{}

	ids := []string{"A", "B", "C"}
	instances := make(map[string]*vehicle.Instance, len(ids))
	for i, id := range ids {
		inst := vehicle.New(id, tunables, net.ChannelFor(id), clock, certs, bus, vanetlog.ForVehicle(log, id))
		if err := inst.Initialize(vcrypto.KeyECDSA, nil); err != nil {
			return fmt.Errorf("initialize %s: %w", id, err)
		}
		net.Register(inst)
		instances[id] = inst
		if err := inst.UpdatePosition(vanet.Position{X: float64(i * 100), ObservedAt: clock.Now()}, 50); err != nil {
			return fmt.Errorf("place %s: %w", id, err)
		}
	}

	log.Info("sending data from A to C")
	if err := instances["A"].SendData("C", []byte("hello from A")); err != nil {
		return fmt.Errorf("send data: %w", err)
	}

	for i := 0; i < 5; i++ {
		clock.Advance(tunables.TickInterval)
		for _, inst := range instances {
			inst.Tick(clock.Now())
		}
	}

	for _, inst := range instances {
		inst.Shutdown()
	}
	return nil
}

func serveTelemetry(addr string, bus *telemetry.Bus, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/telemetry", telemetry.Handler(bus, log))
	log.Info("telemetry server listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("telemetry server exited", zap.Error(err))
	}
}
