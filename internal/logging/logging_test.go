package logging_test

import (
	"testing"

	"github.com/jrsteele09/go-storefront/internal/logging"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestSetup(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	t.Run("valid level", func(t *testing.T) {
		logging.Setup("PROD", "debug")
		require.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
	})

	t.Run("unknown level falls back to info", func(t *testing.T) {
		logging.Setup("PROD", "chatty")
		require.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
	})
}
