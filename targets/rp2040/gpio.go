//go:build rp2040

package main

import (
	"machine"

	"sorterfw/boards"
)

// boardIO binds the board's input and output tables to machine pins and
// owns the driver enable lines. Inputs are pulled up, so an open switch
// reads high and the homing polarity selects the wired sense.
type boardIO struct {
	inputs  []machine.Pin
	outputs []machine.Pin

	// nEN is active low. Either one line per axis or a single shared line.
	enables  []machine.Pin
	globalEn machine.Pin
	hasGlob  bool
}

func newBoardIO(cfg boards.Config) *boardIO {
	g := &boardIO{
		inputs:  make([]machine.Pin, len(cfg.InputPins)),
		outputs: make([]machine.Pin, len(cfg.OutputPins)),
	}
	for i, p := range cfg.InputPins {
		g.inputs[i] = machine.Pin(p)
		g.inputs[i].Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	}
	for i, p := range cfg.OutputPins {
		g.outputs[i] = machine.Pin(p)
		g.outputs[i].Configure(machine.PinConfig{Mode: machine.PinOutput})
		g.outputs[i].Low()
	}
	for _, p := range cfg.DriverEnablePins {
		pin := machine.Pin(p)
		pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
		pin.High() // disabled until bring-up
		g.enables = append(g.enables, pin)
	}
	if cfg.GlobalEnablePin != boards.NoPin {
		g.globalEn = machine.Pin(cfg.GlobalEnablePin)
		g.globalEn.Configure(machine.PinConfig{Mode: machine.PinOutput})
		g.globalEn.High()
		g.hasGlob = true
	}
	return g
}

func (g *boardIO) Read(line int) bool     { return g.inputs[line].Get() }
func (g *boardIO) Write(line int, v bool) { g.outputs[line].Set(v) }
func (g *boardIO) InputCount() int        { return len(g.inputs) }
func (g *boardIO) OutputCount() int       { return len(g.outputs) }

// driveEnable is the tmc2209 EnableFunc: logical enable to nEN level.
func (g *boardIO) driveEnable(axis int, enable bool) {
	if axis < len(g.enables) {
		g.enables[axis].Set(!enable)
		return
	}
	if g.hasGlob {
		g.globalEn.Set(!enable)
	}
}
