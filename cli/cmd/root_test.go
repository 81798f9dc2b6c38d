package cmd

import "testing"

func TestIsJSONOutput_DefaultsFalse(t *testing.T) {
	jsonOutput = false
	if IsJSONOutput() {
		t.Error("expected IsJSONOutput() to default to false")
	}
}

func TestIsJSONOutput_ReflectsFlag(t *testing.T) {
	orig := jsonOutput
	defer func() { jsonOutput = orig }()

	jsonOutput = true
	if !IsJSONOutput() {
		t.Error("expected IsJSONOutput() to return true once set")
	}
}

func TestRootCmd_HasFixtureFlag(t *testing.T) {
	flag := rootCmd.PersistentFlags().Lookup("fixture")
	if flag == nil {
		t.Fatal("expected a --fixture persistent flag")
	}
}

func TestRootCmd_HasJSONFlag(t *testing.T) {
	flag := rootCmd.PersistentFlags().Lookup("json")
	if flag == nil {
		t.Fatal("expected a --json persistent flag")
	}
}
