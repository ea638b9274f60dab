package workflow

import "testing"

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		viewer Role
		want   string
	}{
		{"ward strips center prefix", "center_approved", RoleWard, "approved"},
		{"user strips center prefix", "center_rejected", RoleUser, "rejected"},
		{"center sees raw variant", "center_approved", RoleCenter, "center_approved"},
		{"plain status unchanged for ward", "delivering", RoleWard, "delivering"},
		{"plain status unchanged for center", "pending", RoleCenter, "pending"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeStatus(tt.raw, tt.viewer); got != tt.want {
				t.Errorf("NormalizeStatus(%q, %q) = %q, want %q", tt.raw, tt.viewer, got, tt.want)
			}
		})
	}
}

func TestIsTerminalIncidentStatus(t *testing.T) {
	for _, s := range []string{StatusWardRejected, StatusClosed} {
		if !IsTerminalIncidentStatus(s) {
			t.Errorf("%q should be terminal", s)
		}
	}
	for _, s := range []string{StatusReported, StatusPendingWardApprov, StatusWardApproved, StatusInvestigating, StatusInProgress, StatusResolved} {
		if IsTerminalIncidentStatus(s) {
			t.Errorf("%q should not be terminal", s)
		}
	}
}
