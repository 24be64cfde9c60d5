package matmul

import (
	"github.com/Hoosat-Oy/htnupow/infrastructure/logger"
)

var log = logger.RegisterSubSystem("MMUL")
