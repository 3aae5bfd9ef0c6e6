package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseMentionIDs(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"mention", "<@123>", []string{"123"}},
		{"nickname mention", "<@!456>", []string{"456"}},
		{"raw ids", "111 222", []string{"111", "222"}},
		{"mixed and duplicated", "<@1> 2 <@!1> 2", []string{"1", "2"}},
		{"garbage", "hello @someone", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseMentionIDs(tt.in))
		})
	}
}

func TestParseGuildID(t *testing.T) {
	assert.Equal(t, int64(123456789012345678), ParseGuildID("123456789012345678"))
	assert.Zero(t, ParseGuildID(""))
	assert.Zero(t, ParseGuildID("abc"))
}
