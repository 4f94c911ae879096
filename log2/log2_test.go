package log2

import (
	"bytes"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelFilter(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		level  Level
		fun    func(l *Log)
		expect string
	}{
		{"error/pass", LError, func(l *Log) { l.Errorf("problem") }, "error: problem\n"},
		{"info/pass", LInfo, func(l *Log) { l.Infof("state=%s", "ok") }, "state=ok\n"},
		{"debug/filtered", LInfo, func(l *Log) { l.Debugf("noise") }, ""},
		{"debug/pass", LDebug, func(l *Log) { l.Debugf("var=%d", 42) }, "debug: var=42\n"},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name+"/logger=nil", func(t *testing.T) {
			c.fun(nil) // must not panic
		})
		t.Run(c.name, func(t *testing.T) {
			buf := bytes.NewBuffer(nil)
			l := NewWriter(buf, c.level)
			l.SetFlags(0)
			c.fun(l)
			assert.Equal(t, c.expect, buf.String())
		})
	}
}

func TestSetLevel(t *testing.T) {
	t.Parallel()

	buf := bytes.NewBuffer(nil)
	l := NewWriter(buf, LError)
	l.SetFlags(0)
	l.Infof("dropped")
	assert.Equal(t, "", buf.String())
	l.SetLevel(LInfo)
	l.Infof("kept")
	assert.Equal(t, "kept\n", buf.String())
}

func TestCloneKeepsFlags(t *testing.T) {
	t.Parallel()

	buf := bytes.NewBuffer(nil)
	l := NewWriter(buf, LAll)
	l.SetFlags(log.Lshortfile)
	c := l.Clone(LError)
	assert.Equal(t, log.Lshortfile, c.l.Flags())
	c.Debugf("filtered in clone")
	assert.Equal(t, "", buf.String())
}
