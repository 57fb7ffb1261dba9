package cmd

import (
	"testing"

	"github.com/gurneyalex/cubicweb-condor/internal/config"
)

func TestConfigValueCompletion(t *testing.T) {
	for _, key := range []string{"reconcile_interval", "command_timeout", "max_output_bytes", "web.remove_rate"} {
		opts := configValueCompletion(key)
		if len(opts) == 0 {
			t.Errorf("no completion values for %q", key)
		}
		for _, o := range opts {
			if err := validateConfigValue(key, o); err != nil {
				t.Errorf("suggested value %q for %s is rejected: %v", o, key, err)
			}
		}
	}
	if opts := configValueCompletion("db_path"); opts != nil {
		t.Errorf("expected no suggestions for db_path, got %v", opts)
	}
}

func TestConfigKeysCompletion(t *testing.T) {
	keys, _ := configKeysCompletion(nil, nil, "")
	if len(keys) != len(config.Keys) {
		t.Fatalf("got %d keys; want %d", len(keys), len(config.Keys))
	}
	vals, _ := configKeysCompletion(nil, []string{"python"}, "")
	if len(vals) == 0 {
		t.Error("expected value suggestions for python")
	}
}

func TestValidateConfigValue(t *testing.T) {
	tests := []struct {
		key, value string
		wantErr    bool
	}{
		{"reconcile_interval", "5m", false},
		{"reconcile_interval", "00:05:00", false},
		{"reconcile_interval", "0", true},
		{"reconcile_interval", "soon", true},
		{"command_timeout", "0", false},
		{"command_timeout", "2m", false},
		{"command_timeout", "later", true},
		{"max_output_bytes", "16M", false},
		{"max_output_bytes", "lots", true},
		{"web.remove_rate", "2.5", false},
		{"web.remove_rate", "-1", true},
		{"web.remove_rate", "fast", true},
		{"web.password_hash", "$2a$10$abcdefghijklmnopqrstuv", false},
		{"web.password_hash", "plaintext", true},
		{"condor_root", "/opt/condor", false},
	}
	for _, tt := range tests {
		err := validateConfigValue(tt.key, tt.value)
		if (err != nil) != tt.wantErr {
			t.Errorf("validateConfigValue(%q, %q) error = %v; wantErr %v", tt.key, tt.value, err, tt.wantErr)
		}
	}
}
