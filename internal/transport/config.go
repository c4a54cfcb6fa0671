package transport

import "time"

type Config struct {
	DialTimeout time.Duration
	KeepAlive   time.Duration
}

func DefaultConfig() Config {
	return Config{
		DialTimeout: 5 * time.Second,
		KeepAlive:   15 * time.Second,
	}
}
