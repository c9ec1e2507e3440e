package exitcode

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Devliang24/casecraft/internal/errors"
)

func TestDetermineExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil is success", nil, Success},
		{"cancelled maps to 130", errors.NewCancelledError(), Interrupted},
		{"all failed maps to 2", errors.New(errors.ErrCodeAllFailed, "all failed"), AllFailed},
		{"partial failure maps to 3", errors.New(errors.ErrCodePartialFailure, "some failed"), PartialFailure},
		{"config error maps to 1", errors.NewConfigNotFoundError("x"), GeneralError},
		{"spec error maps to 1", errors.NewSpecVersionError("1.2"), GeneralError},
		{"plain error maps to 1", fmt.Errorf("boom"), GeneralError},
		{"wrapped cancelled", fmt.Errorf("run: %w", errors.NewCancelledError()), Interrupted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetermineExitCode(tt.err))
		})
	}
}

func TestDescription(t *testing.T) {
	assert.Equal(t, "Success", Description(Success))
	assert.Equal(t, "Cancelled by user", Description(Interrupted))
	assert.NotEmpty(t, Description(99))
}
