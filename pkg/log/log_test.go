package log

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitStdoutOnlyCreatesNoDirectory(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	// output_path 配置为 "stdout" 时不得把它当成目录名
	Init("info", "json", "stdout")
	Info("仅输出到 stdout")

	_, err = os.Stat(filepath.Join(dir, "stdout"))
	assert.True(t, os.IsNotExist(err))
}

func TestInitWritesLogFileUnderOutputPath(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	Init("info", "json", dir)
	Info("写入文件")
	Sync()

	info, err := os.Stat(filepath.Join(dir, "app.log"))
	require.NoError(t, err)
	assert.False(t, info.IsDir())
}
