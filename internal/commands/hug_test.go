package commands

import "testing"

func TestParseGesture(t *testing.T) {
	tests := []struct {
		text   string
		verb   string
		suffix string
		ok     bool
	}{
		{"/摸", "摸", "", true},
		{"/摸摸", "摸摸", "", true},
		{"/抱 紧紧地", "抱", "紧紧地", true},
		{"/$pat", "pat", "", true},
		{"/$pat gently", "pat", "gently", true},
		{"/¥hug", "hug", "", true},
		// 英文动词必须带 $/¥ 前缀，否则和普通命令混淆
		{"/info", "", "", false},
		{"/mute 1d", "", "", false},
		{"摸", "", "", false},
		{"", "", "", false},
	}
	for _, tt := range tests {
		verb, suffix, ok := parseGesture(tt.text)
		if ok != tt.ok || verb != tt.verb || suffix != tt.suffix {
			t.Errorf("parseGesture(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tt.text, verb, suffix, ok, tt.verb, tt.suffix, tt.ok)
		}
	}
}
