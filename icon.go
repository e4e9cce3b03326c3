package main

import (
	_ "embed"

	"github.com/nedpals/davi-tagauth/tagauth"
)

//go:embed icons/idle.png
var iconData []byte

//go:embed icons/busy.png
var iconDataBusy []byte

//go:embed icons/ok.png
var iconDataConnected []byte

//go:embed icons/error.png
var iconDataError []byte

//go:embed icons/stopped.png
var iconDataStopped []byte

// iconForState picks the tray icon for a station state.
func iconForState(state tagauth.State) []byte {
	switch state {
	case tagauth.StateInProgress:
		return iconDataBusy
	case tagauth.StateSucceeded:
		return iconDataConnected
	case tagauth.StateFailed:
		return iconDataError
	default:
		return iconData
	}
}
