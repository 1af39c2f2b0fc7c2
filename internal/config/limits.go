package config

import (
	"math"
	"time"
)

const (
	// Messages
	MaxMessageRunes = 1000

	// Paging
	DefaultPageSize = 30
	MaxPageSize     = 100
	// MaxPage keeps Page*Size a valid 32-bit row offset.
	MaxPage = math.MaxInt32 / MaxPageSize

	// Live connections
	WSReadLimit      = 4096
	WSSendBuffer     = 256
	WSWriteWait      = 10 * time.Second
	WSPongWait       = 60 * time.Second
	WSPingPeriod     = (WSPongWait * 9) / 10
	WSHandshakeToken = "token"
)
