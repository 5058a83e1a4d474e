/*package config reads the run-control file: the processor budgets and
logging setup for a run. The file is in gcfg format; the project file
listing the domains is a separate, fixed-format file handled by the
input package.
*/
package config

import (
	"fmt"

	"gopkg.in/gcfg.v1"
)

const ExampleRunFile = `[Run]

#######################
# Required Parameters #
#######################

# Total processor budget for the run. Clamped to one below the hardware
# thread count if set higher.
ProcTotal = 4

#######################
# Optional Parameters #
#######################

# Share of the budget reserved for child domains. The inter-domain pool
# is sized to ProcChild+1; the parent's solver keeps the rest. When left
# at 0 the budget is split in half.
# ProcChild = 1

# Verbosity of the run log. Messages above this level are discarded.
# LogLevel = 2

# File to write log statements to. Default is stderr.
# LogFile = run.log`

// RunConfig mirrors the [Run] section of the control file.
type RunConfig struct {
	ProcTotal int
	ProcChild int
	LogLevel  int
	LogFile   string
}

type runWrapper struct {
	Run RunConfig
}

// DefaultRun returns the configuration used when no control file is
// given: a serial run logging at the default verbosity.
func DefaultRun() RunConfig {
	return RunConfig{ProcTotal: 1, LogLevel: 2}
}

// ReadRunConfig parses the control file at fname.
func ReadRunConfig(fname string) (RunConfig, error) {
	wrap := runWrapper{Run: DefaultRun()}
	if err := gcfg.ReadFileInto(&wrap, fname); err != nil {
		return RunConfig{}, err
	}
	if wrap.Run.ProcTotal < 1 {
		return RunConfig{}, fmt.Errorf(
			"config: ProcTotal = %d must be positive", wrap.Run.ProcTotal)
	}
	if wrap.Run.ProcChild < 0 {
		return RunConfig{}, fmt.Errorf(
			"config: ProcChild = %d must not be negative", wrap.Run.ProcChild)
	}
	return wrap.Run, nil
}

// ReadRunConfigString parses a control file held in a string.
func ReadRunConfigString(body string) (RunConfig, error) {
	wrap := runWrapper{Run: DefaultRun()}
	if err := gcfg.ReadStringInto(&wrap, body); err != nil {
		return RunConfig{}, err
	}
	return wrap.Run, nil
}
