// Command sorterctl is the interactive operator console for the sorter
// interface: it connects to a controller over USB serial (or to a running
// sorter-sim over its unix socket) and exposes every device command.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/abiosoft/ishell"
	"github.com/golang/glog"

	"sorterfw/host/client"
)

var (
	device  = flag.String("device", "", "serial device path, e.g. /dev/ttyACM0")
	socket  = flag.String("socket", "", "simulator unix socket path")
	address = flag.Uint("address", 0, "device address on the link")
	timeout = flag.Duration("timeout", client.DefaultTimeout, "per-request response timeout")
)

func main() {
	flag.Parse()
	defer glog.Flush()

	conn, err := connect()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()
	conn.SetTimeout(*timeout)

	desc, err := conn.Init()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: device init failed: %v\n", err)
		os.Exit(1)
	}
	glog.Infof("connected to %s (fw %s, addr %d)", desc.DeviceName, desc.FirmwareVersion, desc.DeviceAddress)

	shell := ishell.New()
	shell.SetPrompt(desc.DeviceName + " > ")
	shell.Printf("%s: %d steppers, %d inputs, %d outputs, %d servos\n",
		desc.DeviceName, desc.StepperCount, desc.DigitalInputCount,
		desc.DigitalOutputCount, desc.ServoCount)
	addCommands(shell, conn)
	shell.Run()
}

func connect() (*client.Client, error) {
	switch {
	case *socket != "":
		return client.DialSocket(*socket, uint8(*address))
	case *device != "":
		return client.Dial(*device, uint8(*address))
	default:
		return nil, fmt.Errorf("one of -device or -socket is required")
	}
}

func addCommands(shell *ishell.Shell, conn *client.Client) {
	shell.AddCmd(&ishell.Cmd{
		Name: "ping",
		Help: "verify the link",
		Func: func(c *ishell.Context) {
			start := time.Now()
			if err := conn.Ping([]byte{0xAA, 0x55}); err != nil {
				c.Err(err)
				return
			}
			c.Printf("pong (%.1fms)\n", float64(time.Since(start).Microseconds())/1000)
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "init",
		Help: "soft-stop all motion, clear outputs, print the descriptor",
		Func: func(c *ishell.Context) {
			desc, err := conn.Init()
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf("%+v\n", *desc)
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "move",
		Help: "AXIS DISTANCE  - relative move in steps",
		Func: func(c *ishell.Context) {
			axis, dist, err := twoInts(c)
			if err != nil {
				c.Err(err)
				return
			}
			ok, err := conn.MoveSteps(axis, int32(dist))
			if err != nil {
				c.Err(err)
				return
			}
			if !ok {
				c.Println("refused: axis is moving")
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "run",
		Help: "AXIS SPEED  - continuous move in steps/s, 0 to stop",
		Func: func(c *ishell.Context) {
			axis, speed, err := twoInts(c)
			if err != nil {
				c.Err(err)
				return
			}
			if _, err := conn.MoveAtSpeed(axis, int32(speed)); err != nil {
				c.Err(err)
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "limits",
		Help: "AXIS MIN MAX  - speed envelope in steps/s",
		Func: func(c *ishell.Context) {
			args, err := ints(c, 3)
			if err != nil {
				c.Err(err)
				return
			}
			if err := conn.SetSpeedLimits(args[0], uint32(args[1]), uint32(args[2])); err != nil {
				c.Err(err)
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "accel",
		Help: "AXIS ACCEL  - acceleration in steps/s^2",
		Func: func(c *ishell.Context) {
			axis, accel, err := twoInts(c)
			if err != nil {
				c.Err(err)
				return
			}
			if err := conn.SetAcceleration(axis, uint32(accel)); err != nil {
				c.Err(err)
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "pos",
		Help: "AXIS  - report position and motion state",
		Func: func(c *ishell.Context) {
			args, err := ints(c, 1)
			if err != nil {
				c.Err(err)
				return
			}
			pos, err := conn.Position(args[0])
			if err != nil {
				c.Err(err)
				return
			}
			stopped, err := conn.IsStopped(args[0])
			if err != nil {
				c.Err(err)
				return
			}
			state := "moving"
			if stopped {
				state = "stopped"
			}
			c.Printf("axis %d: %d steps, %s\n", args[0], pos, state)
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "setpos",
		Help: "AXIS POSITION  - rebase the position counter",
		Func: func(c *ishell.Context) {
			axis, pos, err := twoInts(c)
			if err != nil {
				c.Err(err)
				return
			}
			if err := conn.SetPosition(axis, int32(pos)); err != nil {
				c.Err(err)
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "home",
		Help: "AXIS SPEED SENSOR STATE  - home against an input line",
		Func: func(c *ishell.Context) {
			args, err := ints(c, 4)
			if err != nil {
				c.Err(err)
				return
			}
			if err := conn.Home(args[0], int32(args[1]), uint32(args[2]), args[3] != 0); err != nil {
				c.Err(err)
				return
			}
			if err := conn.WaitStopped(args[0], 30*time.Second); err != nil {
				c.Err(err)
				return
			}
			c.Println("homed")
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "din",
		Help: "LINE  - read a digital input",
		Func: func(c *ishell.Context) {
			args, err := ints(c, 1)
			if err != nil {
				c.Err(err)
				return
			}
			v, err := conn.DigitalRead(args[0])
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf("input %d = %v\n", args[0], v)
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "dout",
		Help: "LINE STATE  - set a digital output",
		Func: func(c *ishell.Context) {
			line, state, err := twoInts(c)
			if err != nil {
				c.Err(err)
				return
			}
			if err := conn.DigitalWrite(line, state != 0); err != nil {
				c.Err(err)
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "drv-en",
		Help: "AXIS STATE  - enable or disable the driver stage",
		Func: func(c *ishell.Context) {
			axis, state, err := twoInts(c)
			if err != nil {
				c.Err(err)
				return
			}
			if err := conn.DriverSetEnabled(axis, state != 0); err != nil {
				c.Err(err)
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "drv-ms",
		Help: "AXIS MICROSTEPS  - set resolution (1/2/4/8/16/32)",
		Func: func(c *ishell.Context) {
			axis, ms, err := twoInts(c)
			if err != nil {
				c.Err(err)
				return
			}
			if err := conn.DriverSetMicrosteps(axis, uint32(ms)); err != nil {
				c.Err(err)
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "drv-cur",
		Help: "AXIS RUN HOLD DELAY  - current scale codes 0-31",
		Func: func(c *ishell.Context) {
			args, err := ints(c, 4)
			if err != nil {
				c.Err(err)
				return
			}
			if err := conn.DriverSetCurrent(args[0], uint32(args[1]), uint32(args[2]), uint32(args[3])); err != nil {
				c.Err(err)
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "drv-rd",
		Help: "AXIS REG  - read a raw driver register (hex ok)",
		Func: func(c *ishell.Context) {
			axis, reg, err := twoInts(c)
			if err != nil {
				c.Err(err)
				return
			}
			v, err := conn.DriverReadRegister(axis, uint32(reg))
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf("reg 0x%02X = 0x%08X\n", reg, v)
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "drv-wr",
		Help: "AXIS REG VALUE  - write a raw driver register (hex ok)",
		Func: func(c *ishell.Context) {
			args, err := ints(c, 3)
			if err != nil {
				c.Err(err)
				return
			}
			if err := conn.DriverWriteRegister(args[0], uint32(args[1]), uint32(args[2])); err != nil {
				c.Err(err)
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "servo",
		Help: "CHANNEL ANGLE  - move a servo to an angle in degrees",
		Func: func(c *ishell.Context) {
			ch, angle, err := twoInts(c)
			if err != nil {
				c.Err(err)
				return
			}
			if angle < 0 || angle > 180 {
				c.Err(fmt.Errorf("angle %d out of range 0-180", angle))
				return
			}
			if _, err := conn.ServoMoveTo(ch, uint8(angle)); err != nil {
				c.Err(err)
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "servo-en",
		Help: "CHANNEL STATE  - enable or disable a servo output",
		Func: func(c *ishell.Context) {
			ch, state, err := twoInts(c)
			if err != nil {
				c.Err(err)
				return
			}
			if err := conn.ServoSetEnabled(ch, state != 0); err != nil {
				c.Err(err)
			}
		},
	})
}

func ints(c *ishell.Context, n int) ([]int, error) {
	if len(c.Args) != n {
		return nil, fmt.Errorf("expected %d arguments, got %d (see help)", n, len(c.Args))
	}
	out := make([]int, n)
	for i, arg := range c.Args {
		v, err := strconv.ParseInt(arg, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("argument %q is not a number", arg)
		}
		out[i] = int(v)
	}
	return out, nil
}

func twoInts(c *ishell.Context) (int, int, error) {
	args, err := ints(c, 2)
	if err != nil {
		return 0, 0, err
	}
	return args[0], args[1], nil
}
