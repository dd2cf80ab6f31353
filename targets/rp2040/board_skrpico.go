//go:build rp2040 && !feedermb

package main

import "sorterfw/boards"

// Default board. Build with -tags feedermb for the feeder mainboard.
func boardConfig() boards.Config {
	return boards.SKRPico()
}
