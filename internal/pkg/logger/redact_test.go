package logger

import "testing"

func TestRedactSecret(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"normal key", "sk-abc123def456", "sk-a***"},
		{"short value fully masked", "abcd", "***"},
		{"empty", "", "***"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RedactSecret(tt.in); got != tt.want {
				t.Errorf("RedactSecret(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRedactValue(t *testing.T) {
	tests := []struct {
		name, key, val, want string
	}{
		{"token key masked", "platform_token", "tok-1234567890", "tok-***"},
		{"api key masked", "bedrock_api_key", "AKIA99999999", "AKIA***"},
		{"plain key untouched", "arm_id", "x:listicle:curiosity:kei_trucks:any:morning:monday:any", "x:listicle:curiosity:kei_trucks:any:morning:monday:any"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := redactValue(tt.key, tt.val); got != tt.want {
				t.Errorf("redactValue(%q, %q) = %q, want %q", tt.key, tt.val, got, tt.want)
			}
		})
	}
}
