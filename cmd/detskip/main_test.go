package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nobletooth/detskip/pkg/config"
	"github.com/nobletooth/detskip/pkg/utils"
)

func TestFlagsAreRegisteredInConfig(t *testing.T) {
	unregisteredFlags := config.CollectUnregisteredFlags()
	if len(unregisteredFlags) != 0 {
		t.Fail()
		for _, flagErr := range unregisteredFlags {
			t.Error(flagErr)
		}
	}
}

func TestRun_Records(t *testing.T) {
	dir := t.TempDir()
	inPath, outPath := filepath.Join(dir, "ops.txt"), filepath.Join(dir, "results.txt")
	require.NoError(t, os.WriteFile(inPath, []byte("INS b\nINS a\nFIND b\nREM c\n"), 0o644))
	utils.SetTestFlag(t, "mode", modeRecords)
	utils.SetTestFlag(t, "records_input", inPath)
	utils.SetTestFlag(t, "records_output", outPath)

	require.NoError(t, run(context.Background()))
	results, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, "INS b\nINS a\nFIND b\nNONE c\n", string(results))
}

func TestRun_RecordsDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.rec"), []byte("INS x\n"), 0o644))
	utils.SetTestFlag(t, "mode", modeRecords)
	utils.SetTestFlag(t, "records_dir", dir)
	utils.SetTestFlag(t, "records_glob", "*.rec")

	require.NoError(t, run(context.Background()))
	results, err := os.ReadFile(filepath.Join(dir, "a.rec.out"))
	require.NoError(t, err)
	assert.Equal(t, "INS x\n", string(results))
}

func TestRun_Errors(t *testing.T) {
	{
		utils.SetTestFlag(t, "mode", "compact")
		assert.ErrorContains(t, run(context.Background()), "unknown --mode")
	}
	{
		utils.SetTestFlag(t, "mode", modeRecords)
		assert.Error(t, run(context.Background()), "neither an input file nor a directory")
	}
}
