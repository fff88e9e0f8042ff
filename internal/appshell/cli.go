package appshell

import (
	"github.com/rs/zerolog"

	"github.com/scottransom/psrfits-utils/internal/config"
	perr "github.com/scottransom/psrfits-utils/internal/errors"
	"github.com/scottransom/psrfits-utils/internal/logging"
)

// Env is the PSRFITS_ environment namespace shared by the commands.
func Env() config.Conf { return config.New().Prefix("PSRFITS_") }

// MaxFileBytes returns the output file size limit from
// PSRFITS_MAXFILELEN_GB, 1 GiB when unset or not positive.
func MaxFileBytes() int64 {
	gb := Env().GetFloat("MAXFILELEN_GB", 1)
	if gb <= 0 {
		gb = 1
	}
	return int64(gb * (1 << 30))
}

// RowsPerFile returns how many rows of bytesPerRow fit in maxBytes, at
// least one.
func RowsPerFile(maxBytes int64, bytesPerRow int) int {
	if bytesPerRow <= 0 {
		return 1
	}
	return max(1, int(maxBytes/int64(bytesPerRow)))
}

// Logger initialises the root logger from LOG_* and returns a child for the
// command. verbose forces debug level.
func Logger(command string, verbose bool) logging.Logger {
	opt := logging.FromEnv()
	if verbose {
		opt.Level = "debug"
	}
	logging.Init(opt)
	return logging.Named(command)
}

// Exit logs a non-nil err and returns its process exit code.
func Exit(log zerolog.Logger, err error) int {
	if err == nil {
		return 0
	}
	code := perr.ExitCode(err)
	ev := log.Error()
	if c := perr.CodeOf(err); c != perr.ErrorCodeUnknown {
		ev = ev.Str("code", c.String())
	}
	ev.Err(err).Int("exit", code).Msg("failed")
	return code
}
