package shard

import "errors"

// ErrNoPreferredHost is returned by NewSnapshot when a shard carries no
// preferred host; the engine must reject such a directory outright
// rather than guess a transport target.
var ErrNoPreferredHost = errors.New("shard: preferred host must not be empty")
