package main

import (
	"os"
	"os/exec"
	"strings"
	"testing"
)

func TestCLIFunctionality(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test in short mode")
	}

	buildCmd := exec.Command("go", "build", "-o", "schemarunner-test")
	buildCmd.Env = os.Environ()
	output, err := buildCmd.CombinedOutput()
	if err != nil {
		t.Fatalf("Failed to build CLI: %v\nOutput: %s", err, output)
	}
	defer os.Remove("schemarunner-test")

	versionCmd := exec.Command("./schemarunner-test", "--version")
	output, err = versionCmd.CombinedOutput()
	if err != nil {
		t.Fatalf("Failed to run version command: %v\nOutput: %s", err, output)
	}
	if !strings.Contains(string(output), "schemarunner version") {
		t.Errorf("Expected version output, got: %s", output)
	}

	helpCmd := exec.Command("./schemarunner-test", "--help")
	output, err = helpCmd.CombinedOutput()
	if err != nil {
		t.Fatalf("Failed to run help command: %v\nOutput: %s", err, output)
	}
	if !strings.Contains(string(output), "Usage:") || !strings.Contains(string(output), "Commands:") {
		t.Errorf("Expected help output, got: %s", output)
	}
}
