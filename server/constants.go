package server

import (
	"time"

	"github.com/nedpals/davi-tagauth/buildinfo"
)

// mDNS service discovery constants
var (
	MDNSServiceType = "_nfc-tagauth._tcp"
	MDNSServiceName = buildinfo.DisplayName
	MDNSDomain      = "local."
)

// CORS configuration
const (
	CORSAllowOrigin  = "*"
	CORSAllowMethods = "GET, OPTIONS"
	CORSAllowHeaders = "Content-Type, Authorization"
)

// WebSocket write deadline
const writeWait = 10 * time.Second
