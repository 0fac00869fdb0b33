package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/polartar/vtvl-app-sub002/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Init("error", "json", "stdout")
	m.Run()
}

func TestParseLedgerAmount(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "integer", raw: "1000", want: "1000"},
		{name: "full precision", raw: "123.456789012345678901", want: "123.456789012345678901"},
		{name: "empty string", raw: "", want: "0"},
		{name: "garbage", raw: "not-a-number", want: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseLedgerAmount(tt.raw, "allocation", "0xabc1")
			assert.Equal(t, tt.want, got.String())
		})
	}
}
