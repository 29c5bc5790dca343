package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/contractsim/internal/config"
)

func newRunCmd() *cobra.Command {
	preset, configFile = "", ""
	dataDir, figureDir = config.DefaultDataDir, config.DefaultFigureDir
	cmd := &cobra.Command{Use: "run"}
	addModelFlags(cmd)
	cmd.Flags().Float64Var(&tMax, "t-max", config.DefaultTMax, "")
	cmd.Flags().Float64Var(&stiffness, "stiffness", config.DefaultStiffness, "")
	cmd.Flags().Float64Var(&initialForce, "initial-force", 0, "")
	return cmd
}

func TestResolveConfig_Defaults(t *testing.T) {
	cfg, err := resolveConfig(newRunCmd(), nil)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig(), cfg)
}

func TestResolveConfig_ModelArgSwitchesParams(t *testing.T) {
	cfg, err := resolveConfig(newRunCmd(), []string{"density"})
	require.NoError(t, err)
	assert.Equal(t, "density", cfg.Model)
	assert.Equal(t, "configs/density_model.params", cfg.ParamsFile)

	_, err = resolveConfig(newRunCmd(), []string{"spring"})
	assert.Error(t, err)
}

func TestResolveConfig_PresetThenFlags(t *testing.T) {
	cmd := newRunCmd()
	preset = "stiff"
	require.NoError(t, cmd.Flags().Set("t-max", "60"))
	require.NoError(t, cmd.Flags().Set("initial-force", "2"))

	cfg, err := resolveConfig(cmd, []string{"density model"})
	require.NoError(t, err)
	assert.Equal(t, 100.0, cfg.Stiffness)
	assert.Equal(t, 60.0, cfg.TMax)
	require.NotNil(t, cfg.InitialForce)
	assert.Equal(t, 2.0, *cfg.InitialForce)

	cmd = newRunCmd()
	preset = "nonexistent"
	_, err = resolveConfig(cmd, nil)
	assert.Error(t, err)
}

func TestResolveConfig_FileUnderFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model: full\nstiffness: 80\nintegrator: rk45\n"), 0644))

	cmd := newRunCmd()
	configFile = path
	require.NoError(t, cmd.Flags().Set("integrator", "bdf"))

	cfg, err := resolveConfig(cmd, nil)
	require.NoError(t, err)
	assert.Equal(t, 80.0, cfg.Stiffness)
	assert.Equal(t, "bdf", cfg.Integrator)
}

func TestResolveConfig_InvalidFlag(t *testing.T) {
	cmd := newRunCmd()
	require.NoError(t, cmd.Flags().Set("stiffness", "-3"))
	_, err := resolveConfig(cmd, nil)
	assert.Error(t, err)
}

func TestSetupLogger(t *testing.T) {
	assert.NoError(t, setupLogger("debug"))
	assert.Error(t, setupLogger("chatty"))
}
