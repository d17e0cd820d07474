package kafka_config

import (
	"strings"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(EnvKafkaBrokers, "k1:9092, k2:9092,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.Brokers) != 2 || cfg.Brokers[1] != "k2:9092" {
		t.Errorf("Brokers = %v", cfg.Brokers)
	}
	if cfg.SASLMechanism != SASLNone || cfg.ClientID != DefaultKafkaClientID {
		t.Errorf("unexpected security defaults: %+v", cfg)
	}
}

func TestValidate_Security(t *testing.T) {
	tests := []struct {
		name      string
		mechanism string
		user      string
		password  string
		wantError string
	}{
		{"none", SASLNone, "", "", ""},
		{"plain", SASLPlain, "agenda", "secret", ""},
		{"scram without password", SASLScramSHA512, "agenda", "", "requires a username and password"},
		{"unknown", "kerberos", "", "", "SASLMechanism must be one of"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvKafkaSASLMechanism, tt.mechanism)
			t.Setenv(EnvKafkaSASLUsername, tt.user)
			t.Setenv(EnvKafkaSASLPassword, tt.password)

			_, err := Load()
			if tt.wantError == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantError) {
				t.Errorf("error = %v, want %q", err, tt.wantError)
			}
		})
	}
}
