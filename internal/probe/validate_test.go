package probe

import "testing"

func TestIsFlannelReady(t *testing.T) {
	cases := []struct {
		output string
		want   bool
	}{
		{"1/1", true},
		{" 2 / 2 ", true},
		{"0/1", false},
		{"0/0", false},
		{"not-ready", false},
	}
	for _, c := range cases {
		if got := isFlannelReady(c.output); got != c.want {
			t.Errorf("isFlannelReady(%q) = %v, want %v", c.output, got, c.want)
		}
	}
}

func TestIsNodeSchedulable(t *testing.T) {
	cases := []struct {
		output string
		want   bool
	}{
		{`{"unschedulable":true}`, false},
		{`{"unschedulable": true}`, false},
		{`{"taints":[{"effect":"NoSchedule"}]}`, false},
		{`{"podCIDR":"10.0.0.0/24"}`, true},
	}
	for _, c := range cases {
		if got := isNodeSchedulable(c.output); got != c.want {
			t.Errorf("isNodeSchedulable(%q) = %v, want %v", c.output, got, c.want)
		}
	}
}

func TestLaunchdListRunning(t *testing.T) {
	cases := []struct {
		output string
		want   bool
	}{
		{"{\n\t\"PID\" = 1234;\n\t\"Label\" = \"com.joel.voice-agent\";\n}", true},
		{"{\n\t\"PID\" = 0;\n\t\"Label\" = \"com.joel.voice-agent\";\n}", false},
		{"{\n\t\"Label\" = \"com.joel.voice-agent\";\n}", false},
	}
	for _, c := range cases {
		if got := launchdListRunning(c.output); got != c.want {
			t.Errorf("launchdListRunning(%q) = %v, want %v", c.output, got, c.want)
		}
	}
}

func TestValidateNodeReadyRequiresExactTrue(t *testing.T) {
	if !Validate("node_ready", "True") {
		t.Error("expected exact \"True\" to pass")
	}
	if Validate("node_ready", "true") {
		t.Error("expected lowercase \"true\" to fail (exact match required)")
	}
}

func TestValidateHTTPProbeChecksStatusCode(t *testing.T) {
	if !Validate("http:inngest", "200") {
		t.Error("expected 200 to pass")
	}
	if Validate("http:inngest", "503") {
		t.Error("expected 503 to fail")
	}
}

func TestValidateTalosContainerRequiresExactRunning(t *testing.T) {
	if !Validate("talos_container", "Running") {
		t.Error("expected exact \"Running\" (any case) to pass")
	}
	if !Validate("talos_container", "'running'") {
		t.Error("expected single-quoted output to be trimmed before comparison")
	}
	if Validate("talos_container", "not running") {
		t.Error("expected substring match to fail: \"not running\" is not equal to \"running\"")
	}
	if Validate("talos_container", "rerunning") {
		t.Error("expected substring match to fail: \"rerunning\" is not equal to \"running\"")
	}
}

func TestValidateDefaultsToAccept(t *testing.T) {
	if !Validate("colima", "colima is running") {
		t.Error("expected default validator to accept any non-empty output")
	}
}
