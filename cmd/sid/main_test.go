package main

import (
	"context"
	"testing"
	"time"

	"github.com/smasher164/sid/vm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArgs(t *testing.T) {
	cfg, err := parseArgs([]string{})
	require.NoError(t, err)
	assert.Equal(t, "sequential", cfg.policy.String())
	assert.Empty(t, cfg.paths)
	assert.False(t, cfg.trace)

	cfg, err = parseArgs([]string{"-t", "--policy=shuffled", "--seed=9", "--timeout=2s", "a.sid", "lib"})
	require.NoError(t, err)
	assert.True(t, cfg.trace)
	assert.Equal(t, "shuffled(9)", cfg.policy.String())
	assert.Equal(t, 2*time.Second, cfg.timeout)
	assert.Equal(t, []string{"a.sid", "lib"}, cfg.paths)

	_, err = parseArgs([]string{"--seed=x"})
	assert.Error(t, err)
	_, err = parseArgs([]string{"--policy=eager"})
	assert.Error(t, err)
	_, err = parseArgs([]string{"--timeout=soon"})
	assert.Error(t, err)
}

func TestComplete(t *testing.T) {
	r := &runner{m: vm.New()}
	require.NoError(t, r.m.Eval(context.Background(), "<repl 1>", `"dup" 1 def`))
	head, completions, tail := r.complete("1 (du", 5)
	assert.Equal(t, "1 (", head)
	assert.Equal(t, "", tail)
	assert.Equal(t, []string{"dup", "duplicate"}, completions)

	// a session name shadowing a primitive is offered once
	require.NoError(t, r.m.Eval(context.Background(), "<repl 2>", `"drop" 2 def`))
	_, completions, _ = r.complete("dr", 2)
	assert.Equal(t, []string{"drop"}, completions)
}
