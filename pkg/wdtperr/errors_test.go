package wdtperr

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsStructural(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{fmt.Errorf("load /p.wdtp: %w", ErrNotAProject), true},
		{fmt.Errorf("unpack: %w", ErrInvalidPackage), true},
		{ErrInvalidParent, true},
		{ErrAlreadyExists, true},
		{fmt.Errorf("save: %w", ErrSaveFailed), false},
		{ErrAccessDenied, false},
		{ErrSourceMissing, false},
		{nil, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IsStructural(tt.err), "%v", tt.err)
	}
}
