package views

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	assert.Equal(t, "👍 ok", clean("👍\U0001F3FB ok"))
	assert.Equal(t, "a[red[]b", clean("a[red]b"))
}

func TestOneLine(t *testing.T) {
	assert.Equal(t, "hello there friend", oneLine("hello\n  there\tfriend "))
}

func TestStamp(t *testing.T) {
	assert.Empty(t, stamp(time.Time{}))
	now := time.Now()
	assert.Equal(t, now.Format("15:04"), stamp(now))
	old := time.Date(2020, 3, 9, 10, 0, 0, 0, time.Local)
	assert.Equal(t, "09/03", stamp(old))
}
