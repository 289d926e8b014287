package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/cv-autofill/internal/common"
)

func TestNew(t *testing.T) {
	cfg := common.DefaultConfig()
	log := zap.NewNop()

	e, err := New(context.Background(), cfg, log)
	require.NoError(t, err)
	assert.Equal(t, Rules, e.Name())
	assert.True(t, e.Enabled())

	cfg.Extraction.Provider = ""
	e, err = New(context.Background(), cfg, log)
	require.NoError(t, err)
	assert.False(t, e.Enabled())

	cfg.Extraction.Provider = Gemini
	cfg.Gemini.APIKey = ""
	e, err = New(context.Background(), cfg, log)
	require.NoError(t, err)
	assert.False(t, e.Configured())

	cfg.Extraction.Provider = "bard"
	_, err = New(context.Background(), cfg, log)
	assert.True(t, common.HasCode(err, common.CodeConfig))
}
