package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	cases := []struct {
		name      string
		verbosity string
		wantErr   bool
	}{
		{name: "info", verbosity: "info"},
		{name: "debug", verbosity: "debug"},
		{name: "warn", verbosity: "warn"},
		{name: "invalid", verbosity: "loudest", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			log, err := New(tc.verbosity)
			if tc.wantErr {
				require.Error(t, err)
				assert.Nil(t, log)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, log)
			level, err := zap.ParseAtomicLevel(tc.verbosity)
			require.NoError(t, err)
			assert.True(t, log.Core().Enabled(level.Level()))
		})
	}

	t.Run("debug is quiet at info verbosity", func(t *testing.T) {
		log, err := New("info")
		require.NoError(t, err)
		assert.False(t, log.Core().Enabled(zap.DebugLevel))
	})
}
