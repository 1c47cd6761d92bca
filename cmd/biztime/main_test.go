package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/biztime/internal/app"
	_ "github.com/odyssey-erp/biztime/internal/testing/guard"
)

func TestMainReturnsInTestMode(t *testing.T) {
	require.True(t, app.InTestMode())
	assert.NotPanics(t, main)
}

func TestCommandTree(t *testing.T) {
	names := map[string]bool{}
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["migrate"])
	assert.True(t, names["jobs"])
}

func TestMigrateRejectsUnknownCommand(t *testing.T) {
	assert.Error(t, migrateCmd.Args(migrateCmd, []string{"sideways"}))
	assert.Error(t, migrateCmd.Args(migrateCmd, nil))
	assert.NoError(t, migrateCmd.Args(migrateCmd, []string{"up"}))
}

func TestJobsTriggerRejectsUnknownTask(t *testing.T) {
	assert.Error(t, jobsTriggerCmd.Args(jobsTriggerCmd, []string{"company:changed"}))
	assert.NoError(t, jobsTriggerCmd.Args(jobsTriggerCmd, []string{"company:cache_bump"}))
}

func TestJobsRequiresRedis(t *testing.T) {
	t.Setenv("REDIS_ADDR", "")

	var out bytes.Buffer
	jobsStatsCmd.SetOut(&out)
	err := jobsStatsCmd.RunE(jobsStatsCmd, nil)
	assert.ErrorContains(t, err, "REDIS_ADDR")
}
