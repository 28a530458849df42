// Package autoload initialises the global logger from LOG_* variables when
// imported for its side effect.
package autoload

import (
	configx "github.com/tanpawarit/flight-search-agent/pkg/config"
	logx "github.com/tanpawarit/flight-search-agent/pkg/logger"
)

func init() {
	conf, err := configx.New[logx.Config]("LOG")
	if err != nil {
		logx.Init()
		return
	}
	logx.Init(*conf)
}
