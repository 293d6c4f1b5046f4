package logio

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogger(t *testing.T) {
	var out bytes.Buffer
	log := NewLogger(&out)
	log.Printf("INFO", "hello %v", "there")
	log.Leveledf("TRACE")("> push 1")
	assert.Equal(t, 0, log.ExitCode())

	log.ErrorIf(nil)
	assert.Equal(t, 0, log.ExitCode())
	log.ErrorIf(errors.New("bad thing"))
	assert.Equal(t, 1, log.ExitCode())

	assert.Equal(t, "INFO: hello there\nTRACE: > push 1\nERROR: bad thing\n", out.String())
}

func TestWriter(t *testing.T) {
	var got []string
	w := &Writer{Logf: func(mess string, args ...interface{}) {
		got = append(got, string(args[0].([]byte)))
	}}
	w.Write([]byte("one\ntw"))
	assert.Equal(t, []string{"one"}, got)
	w.Write([]byte("o\nthree"))
	assert.Equal(t, []string{"one", "two"}, got)
	assert.NoError(t, w.Close())
	assert.Equal(t, []string{"one", "two", "three"}, got)
}
