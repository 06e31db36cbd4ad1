package cli

import (
	"errors"

	"basalt.dev/basalt/internal/runtime"
)

// errSubmissionIncomplete makes bt exit non-zero when some branches
// failed without drowning the report in a second error dump
var errSubmissionIncomplete = errors.New("some branches were not submitted")

// getInitializedContext builds the runtime context; commands that need
// metadata surface the 'bt init' hint through Store.Load
func getInitializedContext() (*runtime.Context, error) {
	return runtime.GetContext()
}
