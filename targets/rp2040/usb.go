//go:build rp2040

package main

import "machine"

// initUSB brings up the USB CDC serial. On the RP2040, machine.Serial is
// the CDC endpoint; the descriptors come from the TinyGo runtime.
func initUSB() {
	machine.Serial.Configure(machine.UARTConfig{})
}

// usbWriter adapts machine.Serial to the transport's io.Writer.
type usbWriter struct{}

func (usbWriter) Write(p []byte) (int, error) {
	return machine.Serial.Write(p)
}
