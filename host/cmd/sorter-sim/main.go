// Command sorter-sim runs the firmware against virtual hardware and serves
// the wire protocol on a unix socket, so sorterctl and higher-level tooling
// can be exercised without a board on the bench.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"

	"sorterfw/boards"
	"sorterfw/host/sim"
)

var (
	configPath = flag.String("config", "", "JSON config file (overrides the other flags)")
	board      = flag.String("board", "feedermb", "board profile: skrpico or feedermb")
	socketPath = flag.String("socket", "/tmp/sorter-sim.sock", "unix socket to serve on")
	servos     = flag.Int("servos", 2, "number of virtual servos")
	homeTrip   = flag.Int("home-trip", 0, "steps of travel after which each axis's matching sensor trips (0 = manual)")
)

// config mirrors the flags for file-based setups, e.g. a fleet of simulated
// devices under a test harness.
type config struct {
	Board         string `json:"board"`
	SocketPath    string `json:"socket_path"`
	DeviceName    string `json:"device_name,omitempty"`
	DeviceAddress *uint8 `json:"device_address,omitempty"`
	ServoCount    int    `json:"servo_count"`
	HomeTripSteps int    `json:"home_trip_steps,omitempty"`
}

func main() {
	flag.Parse()
	defer glog.Flush()

	cfg := config{
		Board:         *board,
		SocketPath:    *socketPath,
		ServoCount:    *servos,
		HomeTripSteps: *homeTrip,
	}
	if *configPath != "" {
		if err := loadConfig(*configPath, &cfg); err != nil {
			glog.Exitf("config: %v", err)
		}
	}

	boardCfg, err := boardByName(cfg.Board)
	if err != nil {
		glog.Exit(err)
	}
	if cfg.DeviceName != "" {
		boardCfg.DeviceName = cfg.DeviceName
	}
	if cfg.DeviceAddress != nil {
		boardCfg.DeviceAddress = *cfg.DeviceAddress
	}

	machine := sim.New(boardCfg, cfg.ServoCount)
	machine.Start()
	defer machine.Stop()

	if cfg.HomeTripSteps > 0 {
		go tripSensors(machine, boardCfg, cfg.HomeTripSteps)
	}

	os.Remove(cfg.SocketPath)
	listener, err := net.Listen("unix", cfg.SocketPath)
	if err != nil {
		glog.Exitf("listen: %v", err)
	}
	defer os.Remove(cfg.SocketPath)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		glog.Info("stop requested")
		listener.Close()
	}()

	glog.Infof("simulating %s (%d axes, %d servos) on %s",
		boardCfg.DeviceName, boardCfg.AxisCount(), cfg.ServoCount, cfg.SocketPath)

	for {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		glog.V(1).Info("host connected")
		if err := machine.Attach(conn); err != nil {
			glog.Warningf("connection: %v", err)
		}
		glog.V(1).Info("host disconnected")
		conn.Close()
	}
}

func loadConfig(path string, cfg *config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, cfg)
}

func boardByName(name string) (boards.Config, error) {
	switch name {
	case "skrpico":
		return boards.SKRPico(), nil
	case "feedermb":
		return boards.FeederMB(), nil
	default:
		return boards.Config{}, fmt.Errorf("unknown board %q", name)
	}
}

// tripSensors emulates homing switches: each axis's same-numbered input
// line goes active once the axis has traveled the configured distance from
// zero in either direction.
func tripSensors(m *sim.Machine, cfg boards.Config, steps int) {
	n := cfg.AxisCount()
	if inputs := len(cfg.InputPins); inputs < n {
		n = inputs
	}
	for {
		for axis := 0; axis < n; axis++ {
			pos := m.AxisPosition(axis)
			if pos < 0 {
				pos = -pos
			}
			m.SetInput(axis, int(pos) >= steps)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
