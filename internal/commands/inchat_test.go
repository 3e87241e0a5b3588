package commands

import "testing"

func TestCommandParsing(t *testing.T) {
	s := &InChatCommandsService{botUsername: "my_bridge_bot"}
	tests := []struct {
		text string
		cmd  string
		arg  string
	}{
		{"/info", "/info", ""},
		{"/info@my_bridge_bot", "/info", ""},
		{"/mute 1d", "/mute", "1d"},
		{"/mute@my_bridge_bot 12h", "/mute", "12h"},
		// @ 别的 bot 的命令不响应
		{"/info@other_bot", "", ""},
		{"hello", "", ""},
		{"", "", ""},
	}
	for _, tt := range tests {
		cmd, arg := s.command(tt.text)
		if cmd != tt.cmd || arg != tt.arg {
			t.Errorf("command(%q) = (%q, %q), want (%q, %q)", tt.text, cmd, arg, tt.cmd, tt.arg)
		}
	}
}

func TestParseMuteDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"1d", 86400, false},
		{"12h", 43200, false},
		{"30m", 1800, false},
		{" 10m ", 600, false},
		{"0m", 0, false},
		{"10", 0, true},
		{"m", 0, true},
		{"1w", 0, true},
		{"-5m", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := parseMuteDuration(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseMuteDuration(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseMuteDuration(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
