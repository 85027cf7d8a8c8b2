package flagx

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	serverFlags := []string{"-a", "-store", "-redis"}

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"separate values", []string{"-a", ":8080", "-store", "memory"}, []string{"-a", ":8080", "-store", "memory"}},
		{"equals form", []string{"-redis=redis:6379", "-x=1"}, []string{"-redis=redis:6379"}},
		{"double dash", []string{"--store", "memory", "--a=:9000"}, []string{"--store", "memory", "--a=:9000"}},
		{"foreign flags and positionals dropped", []string{"-c", "cfg.json", "serve", "-x"}, []string{}},
		{"flag without value at end", []string{"-a"}, []string{"-a"}},
		{"next flag is not a value", []string{"-a", "-store", "memory"}, []string{"-a", "-store", "memory"}},
		{"value that looks like a flag in equals form", []string{"-a=-weird"}, []string{"-a=-weird"}},
		{"repeated flag keeps order", []string{"-a", ":1", "-a", ":2"}, []string{"-a", ":1", "-a", ":2"}},
		{"empty", []string{}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterArgs(tt.args, serverFlags))
		})
	}
}

func TestJsonConfigFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	cases := map[string]struct {
		args []string
		want string
	}{
		"short":           {[]string{"testbin", "-c", "/etc/gallery/short.json"}, "/etc/gallery/short.json"},
		"long":            {[]string{"testbin", "-config", "/etc/gallery/long.json"}, "/etc/gallery/long.json"},
		"long with equal": {[]string{"testbin", "--config=/etc/gallery/eq.json"}, "/etc/gallery/eq.json"},
		"mixed with server flags": {
			[]string{"testbin", "-a", ":8080", "-c", "cfg.json", "-store", "memory"}, "cfg.json",
		},
		"absent":    {[]string{"testbin", "-a", ":8080"}, ""},
		"last wins": {[]string{"testbin", "-c", "/1.json", "-config", "/2.json"}, "/2.json"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			os.Args = tc.args
			assert.Equal(t, tc.want, JsonConfigFlags())
		})
	}
}
