//go:build !unix

package main

import "herdscreen/internal/lifecycle"

func terminalEvents() lifecycle.Source {
	return lifecycle.NewManualSource()
}
