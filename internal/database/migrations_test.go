package database

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestMigrationRunHonorsCancelledContext(t *testing.T) {
	mr := &MigrationRunner{log: quietLogger()}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	started := false
	err := mr.run(ctx, func() error {
		started = true
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, started, "cancelled context must prevent the step from starting")
}

func TestMigrationRunReturnsStepError(t *testing.T) {
	mr := &MigrationRunner{log: quietLogger()}

	want := errors.New("dirty schema")
	err := mr.run(context.Background(), func() error { return want })

	assert.ErrorIs(t, err, want)
}

func TestMigrationRunSucceeds(t *testing.T) {
	mr := &MigrationRunner{log: quietLogger()}

	assert.NoError(t, mr.run(context.Background(), func() error { return nil }))
}
