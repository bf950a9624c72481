package probe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunAppendsCriticalSuffixOnlyWhenCriticalAndFailed(t *testing.T) {
	critical := Probe{Name: "colima", Program: "/usr/bin/false", Critical: true, TimeoutSecs: 2}
	res := Run(context.Background(), critical)
	assert.False(t, res.Passed)
	assert.Contains(t, res.Output, "[critical]")

	nonCritical := Probe{Name: "http:some_service", Program: "/usr/bin/false", Critical: false, TimeoutSecs: 2}
	res = Run(context.Background(), nonCritical)
	assert.False(t, res.Passed)
	assert.NotContains(t, res.Output, "[critical]")

	passingCritical := Probe{Name: "colima", Program: "/usr/bin/true", Critical: true, TimeoutSecs: 2}
	res = Run(context.Background(), passingCritical)
	assert.True(t, res.Passed)
	assert.NotContains(t, res.Output, "[critical]")
}

func TestRunAllPreservesCatalogOrder(t *testing.T) {
	catalog := []Probe{
		{Name: "a", Program: "/usr/bin/true"},
		{Name: "b", Program: "/usr/bin/true"},
		{Name: "c", Program: "/usr/bin/true"},
	}
	results := RunAll(context.Background(), catalog)
	assert.Equal(t, []string{"a", "b", "c"}, []string{results[0].Name, results[1].Name, results[2].Name})
}
