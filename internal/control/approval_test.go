package control

import (
	"errors"
	"strings"
	"testing"
)

func TestApprove(t *testing.T) {
	phCommand := Command{
		DeviceID: "ph_doser", Parameter: "ph_setpoint", Quantity: QuantityPH,
		Value: num(6), Priority: PriorityNormal, Origin: OriginRecommendation, Confidence: 0.95,
	}

	tests := []struct {
		name    string
		cmd     func() Command
		strat   func(*Strategy)
		names   []string
		wantErr error
	}{
		{
			name:    "confident recommendation",
			cmd:     func() Command { c := tempCommand(22); c.Confidence = 0.9; return c },
			wantErr: nil,
		},
		{
			name:    "confidence at threshold",
			cmd:     func() Command { c := tempCommand(22); c.Confidence = 0.8; return c },
			wantErr: nil,
		},
		{
			name:    "low confidence",
			cmd:     func() Command { c := tempCommand(22); c.Confidence = 0.5; return c },
			wantErr: ErrLowConfidence,
		},
		{
			name:    "operator ignores confidence",
			cmd:     func() Command { c := tempCommand(22); c.Origin = OriginOperator; return c },
			wantErr: nil,
		},
		{
			name:    "quantity requires approval at normal priority",
			cmd:     func() Command { return phCommand },
			wantErr: ErrApprovalRequired,
		},
		{
			name:    "high priority passes approval",
			cmd:     func() Command { c := phCommand; c.Priority = PriorityHigh; return c },
			wantErr: nil,
		},
		{
			name:    "operator override is the approval",
			cmd:     func() Command { c := phCommand; c.Origin = OriginOperator; return c },
			wantErr: nil,
		},
		{
			name:    "schedule needs approval too",
			cmd:     func() Command { c := phCommand; c.Origin = OriginSchedule; return c },
			wantErr: ErrApprovalRequired,
		},
		{
			name:    "device parameter name matches",
			cmd:     func() Command { c := tempCommand(22); c.Confidence = 0.9; return c },
			strat:   func(s *Strategy) { s.ApprovalRequired = []string{"setpoint"} },
			wantErr: ErrApprovalRequired,
		},
		{
			name:    "recommendation name matches",
			cmd:     func() Command { c := tempCommand(22); c.Confidence = 0.9; return c },
			strat:   func(s *Strategy) { s.ApprovalRequired = []string{"heat"} },
			names:   []string{"heat"},
			wantErr: ErrApprovalRequired,
		},
		{
			name:    "manual mode refuses recommendations",
			cmd:     func() Command { c := tempCommand(22); c.Confidence = 0.9; return c },
			strat:   func(s *Strategy) { s.Mode = ModeManual },
			wantErr: ErrModeForbids,
		},
		{
			name:    "manual mode accepts operator",
			cmd:     func() Command { c := tempCommand(22); c.Origin = OriginOperator; return c },
			strat:   func(s *Strategy) { s.Mode = ModeManual },
			wantErr: nil,
		},
		{
			name:    "scheduled mode accepts schedule",
			cmd:     func() Command { c := tempCommand(22); c.Origin = OriginSchedule; return c },
			strat:   func(s *Strategy) { s.Mode = ModeScheduled },
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			strat := testStrategy()
			if tt.strat != nil {
				tt.strat(&strat)
			}
			err := approve(tt.cmd(), strat, tt.names...)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("approve() error = %v, want nil", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("approve() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestApprove_ConfidenceReasonNamesBothValues(t *testing.T) {
	cmd := tempCommand(22)
	cmd.Confidence = 0.5

	err := approve(cmd, testStrategy())
	if err == nil {
		t.Fatal("approve() error = nil, want rejection")
	}
	for _, want := range []string{"0.50", "0.80"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("reason %q does not contain %s", err.Error(), want)
		}
	}
}
