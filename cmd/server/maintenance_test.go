package main

import "testing"

func TestMaskKey(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{input: "", expected: "(未设置)"},
		{input: "short", expected: "****"},
		{input: "sk-1234567890abcd", expected: "sk-****abcd"},
	}

	for _, tt := range tests {
		if got := maskKey(tt.input); got != tt.expected {
			t.Fatalf("maskKey(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestNewAppRegistersCommands(t *testing.T) {
	app := newApp()
	for _, name := range []string{"serve", "create-user", "seed", "settings"} {
		if app.Command(name) == nil {
			t.Fatalf("expected command %q", name)
		}
	}
	subcommands := map[string]bool{}
	for _, sub := range app.Command("settings").Subcommands {
		subcommands[sub.Name] = true
	}
	for _, name := range []string{"set", "show", "test"} {
		if !subcommands[name] {
			t.Fatalf("expected settings subcommand %q", name)
		}
	}
}
