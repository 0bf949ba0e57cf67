package repositories

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"alfredoptarigan/rubric-evaluator/internal/errs"
)

func TestWrapErr(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		err          error
		wantNotFound bool
	}{
		{name: "record not found", err: gorm.ErrRecordNotFound, wantNotFound: true},
		{name: "other failure", err: errors.New("connection refused"), wantNotFound: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := wrapErr("find evaluation", tt.err)
			assert.Contains(t, err.Error(), "find evaluation")
			assert.Equal(t, tt.wantNotFound, errors.Is(err, errs.ErrNotFound))
			assert.Equal(t, !tt.wantNotFound, errors.Is(err, errs.ErrPersistence))
		})
	}
}
