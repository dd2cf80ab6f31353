//go:build rp2040 && feedermb

package main

import "sorterfw/boards"

func boardConfig() boards.Config {
	return boards.FeederMB()
}
