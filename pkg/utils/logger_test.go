package utils_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obelisk/gh-ec-audit/pkg/domain/types"
	"github.com/obelisk/gh-ec-audit/pkg/utils"
)

func TestRenewLogger(t *testing.T) {
	require.NoError(t, utils.RenewLogger("info", "text"))
	require.NotNil(t, utils.Logger)
	require.NoError(t, utils.RenewLogger("debug", "json"))
	require.NotNil(t, utils.Logger)
}

func TestRenewLoggerInvalidFormat(t *testing.T) {
	err := utils.RenewLogger("info", "xml")
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrInvalidConfig))
}
