//go:build rp2040

package main

import (
	"machine"

	"sorterfw/boards"
)

// replyWait bounds how long a register read waits for the chip to start
// answering, in µs. The chip replies within eight bit times of the request.
const replyWait = 2000

// driverUART is the single-wire TMC bus: the board ties the UART's TX and
// RX onto the chips' PDN_UART pins, so every transmission echoes into the
// receive FIFO before any reply.
type driverUART struct {
	uart *machine.UART
}

func newDriverUART(pins boards.UARTPins) *driverUART {
	uart := machine.UART0
	if pins.Index == 1 {
		uart = machine.UART1
	}
	uart.Configure(machine.UARTConfig{
		BaudRate: pins.Baud,
		TX:       machine.Pin(pins.TX),
		RX:       machine.Pin(pins.RX),
	})
	return &driverUART{uart: uart}
}

func (d *driverUART) Write(p []byte) (int, error) {
	return d.uart.Write(p)
}

// Read returns buffered reply bytes, waiting briefly for the first byte to
// arrive. A return of 0 bytes means the chip stayed silent.
func (d *driverUART) Read(p []byte) (int, error) {
	deadline := hardwareUptime() + replyWait
	for d.uart.Buffered() == 0 {
		if hardwareUptime() > deadline {
			return 0, nil
		}
	}
	n := 0
	for n < len(p) && d.uart.Buffered() > 0 {
		b, err := d.uart.ReadByte()
		if err != nil {
			return n, err
		}
		p[n] = b
		n++
	}
	return n, nil
}

func (d *driverUART) DrainInput() {
	// The echo of our own frame may still be shifting in; give it one bit
	// time per pending byte before discarding.
	deadline := hardwareUptime() + replyWait
	for hardwareUptime() < deadline {
		for d.uart.Buffered() > 0 {
			d.uart.ReadByte()
			deadline = hardwareUptime() + 300
		}
	}
}
