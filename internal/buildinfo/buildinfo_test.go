package buildinfo

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrintBuildData(t *testing.T) {
	old := Version
	Version = "v1.0.0"
	t.Cleanup(func() { Version = old })

	var b bytes.Buffer
	PrintBuildData(&b)
	assert.Equal(t, "Build version: v1.0.0\nBuild date: N/A\nBuild commit: N/A\n", b.String())
}
