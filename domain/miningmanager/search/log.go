package search

import (
	"github.com/Hoosat-Oy/htnupow/infrastructure/logger"
)

var log = logger.RegisterSubSystem("SRCH")
