package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv(EnvMasterWorkers, "")
	t.Setenv(EnvWorkerMaster, "")
	t.Setenv(EnvWorkerShutdownWith, "")
	t.Setenv(EnvCookie, "")
	t.Setenv(EnvNodeName, "")

	cfg := FromEnv()
	assert.Equal(t, 1, cfg.MasterWorkers)
	assert.Empty(t, cfg.WorkerMaster)
	assert.False(t, cfg.WorkerShutdownWithMaster)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv(EnvMasterWorkers, "4")
	t.Setenv(EnvWorkerMaster, "master.local:7070")
	t.Setenv(EnvWorkerShutdownWith, "true")
	t.Setenv(EnvCookie, "s3cr3t")
	t.Setenv(EnvNodeName, "node-1")

	cfg := FromEnv()
	assert.Equal(t, 4, cfg.MasterWorkers)
	assert.Equal(t, "master.local:7070", cfg.WorkerMaster)
	assert.True(t, cfg.WorkerShutdownWithMaster)
	assert.Equal(t, "s3cr3t", cfg.Cookie)
	assert.Equal(t, "node-1", cfg.NodeName)
}
