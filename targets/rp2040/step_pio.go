//go:build rp2040

package main

import (
	"machine"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"
)

// stepProgram is the per-axis pulse generator. Command word, shifted out
// right-first:
//
//	bits 0-15  pulse count
//	bits 16-23 inter-pulse delay cycles
//	bit 24     direction level
//
// The program sets the direction pin, then emits count pulses. The stepgen
// feeds one command per step, so count is always 1 and pulse timing is
// owned by the state machine: 8 cycles high at the divided clock, long
// enough for the driver's step input at any supported divider.
func stepProgram() []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 0}
	return []uint16{
		// .wrap_target
		asm.Pull(false, true).Encode(),          // 0: pull block
		asm.Out(rp2pio.OutDestX, 16).Encode(),   // 1: out x, 16
		asm.Out(rp2pio.OutDestY, 8).Encode(),    // 2: out y, 8
		asm.Out(rp2pio.OutDestPins, 1).Encode(), // 3: out pins, 1
		// step_loop:
		asm.Set(rp2pio.SetDestPins, 1).Delay(7).Encode(), // 4: set pins, 1 [7]
		asm.Set(rp2pio.SetDestPins, 0).Encode(),          // 5: set pins, 0
		// delay_loop:
		asm.Jmp(6, rp2pio.JmpYNZeroDec).Encode(), // 6: jmp y--, 6
		asm.Jmp(4, rp2pio.JmpXNZeroDec).Encode(), // 7: jmp x--, 4
		// .wrap
	}
}

// Jump targets in stepProgram are absolute, so it must load at offset 0.
const stepProgramOrigin = 0

// stepClkDiv slows the PIO clock to 31.25MHz: the 8-cycle high phase is
// then 256ns, comfortably above the driver's minimum step pulse.
const stepClkDiv = 4

// pioStep drives one step/dir pin pair from a PIO state machine.
type pioStep struct {
	pio     *rp2pio.PIO
	sm      rp2pio.StateMachine
	stepPin machine.Pin
	dirPin  machine.Pin
	offset  uint8
	loaded  bool
}

// pioProgramOffsets tracks the one program load per PIO block; all four
// state machines of a block share the instruction memory.
var pioProgramOffsets = [2]int16{-1, -1}

// newPIOStep allocates a state machine for axis: axes 0-3 on PIO0, 4-7 on
// PIO1.
func newPIOStep(axis uint8) *pioStep {
	pioNum := axis / 4
	block := rp2pio.PIO0
	if pioNum == 1 {
		block = rp2pio.PIO1
	}
	return &pioStep{
		pio: block,
		sm:  block.StateMachine(axis % 4),
	}
}

// Init loads the program (once per block), claims the state machine and
// points it at the pins.
func (b *pioStep) Init(stepPin, dirPin uint8) error {
	b.stepPin = machine.Pin(stepPin)
	b.dirPin = machine.Pin(dirPin)

	b.sm.TryClaim()

	pioNum := 0
	if b.pio == rp2pio.PIO1 {
		pioNum = 1
	}
	if pioProgramOffsets[pioNum] < 0 {
		offset, err := b.pio.AddProgram(stepProgram(), stepProgramOrigin)
		if err != nil {
			return err
		}
		pioProgramOffsets[pioNum] = int16(offset)
	}
	b.offset = uint8(pioProgramOffsets[pioNum])

	b.stepPin.Configure(machine.PinConfig{Mode: b.pio.PinMode()})
	b.dirPin.Configure(machine.PinConfig{Mode: b.pio.PinMode()})

	cfg := rp2pio.DefaultStateMachineConfig()
	cfg.SetSetPins(b.stepPin, 1)
	cfg.SetOutPins(b.dirPin, 1)
	cfg.SetOutShift(true, false, 32)
	cfg.SetWrap(b.offset+7, b.offset)
	cfg.SetClkDivIntFrac(stepClkDiv, 0)

	b.sm.Init(b.offset, cfg)

	// Pin directions must be set after Init.
	b.sm.SetPindirsConsecutive(b.stepPin, 1, true)
	b.sm.SetPindirsConsecutive(b.dirPin, 1, true)
	b.sm.SetPinsConsecutive(b.stepPin, 1, false)
	b.sm.SetPinsConsecutive(b.dirPin, 1, false)

	b.sm.SetEnabled(true)
	b.loaded = true
	return nil
}

// Step queues one pulse with the direction level for this edge. Called
// from the stepgen tick; at the supported step rates the FIFO never fills,
// but a full FIFO drops the command rather than stall the tick.
func (b *pioStep) Step(forward bool) {
	if !b.loaded || b.sm.IsTxFIFOFull() {
		return
	}
	cmd := uint32(1) | 1<<16
	if !forward {
		cmd |= 1 << 24
	}
	b.sm.TxPut(cmd)
}
