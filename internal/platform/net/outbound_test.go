// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

package net

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func mustPolicy(t *testing.T, enabled bool, allow Allowlist) *Policy {
	t.Helper()
	p, err := NewPolicy(enabled, allow)
	if err != nil {
		t.Fatalf("NewPolicy: %v", err)
	}
	return p
}

func TestPolicyValidate(t *testing.T) {
	baseAllow := Allowlist{
		Hosts:   []string{"192.0.2.10"},
		Ports:   []int{80, 443},
		Schemes: []string{"http", "https"},
	}

	cases := []struct {
		name     string
		enabled  bool
		allow    Allowlist
		rawURL   string
		want     string
		wantErr  bool
		errMatch func(error) bool
	}{
		{
			name:     "disabled fails closed",
			enabled:  false,
			allow:    baseAllow,
			rawURL:   "http://192.0.2.10/asset.mpd",
			wantErr:  true,
			errMatch: func(err error) bool { return errors.Is(err, ErrOutboundDisabled) },
		},
		{
			name:    "allowlisted host passes",
			enabled: true,
			allow:   baseAllow,
			rawURL:  "http://192.0.2.10/asset.mpd",
			want:    "http://192.0.2.10/asset.mpd",
		},
		{
			name:     "unlisted host rejected",
			enabled:  true,
			allow:    baseAllow,
			rawURL:   "http://192.0.2.99/asset.mpd",
			wantErr:  true,
			errMatch: func(err error) bool { return errors.Is(err, ErrOutboundNotAllowed) },
		},
		{
			name:     "metadata ip blocked",
			enabled:  true,
			allow:    baseAllow,
			rawURL:   "http://169.254.169.254/asset.mpd",
			wantErr:  true,
			errMatch: func(err error) bool { return strings.Contains(err.Error(), "blocked ip") },
		},
		{
			name:     "loopback blocked without cidr",
			enabled:  true,
			allow:    baseAllow,
			rawURL:   "http://127.0.0.1/asset.mpd",
			wantErr:  true,
			errMatch: func(err error) bool { return strings.Contains(err.Error(), "blocked ip") },
		},
		{
			name:    "loopback allowed via cidr for local fixtures",
			enabled: true,
			allow: Allowlist{
				CIDRs:   []string{"127.0.0.0/8"},
				Ports:   []int{8090},
				Schemes: []string{"http"},
			},
			rawURL: "http://127.0.0.1:8090/fixtures/vod.mpd",
			want:   "http://127.0.0.1:8090/fixtures/vod.mpd",
		},
		{
			name:     "scheme outside allowlist",
			enabled:  true,
			allow:    baseAllow,
			rawURL:   "ftp://192.0.2.10/asset.mpd",
			wantErr:  true,
			errMatch: func(err error) bool { return strings.Contains(err.Error(), "scheme") },
		},
		{
			name:     "port outside allowlist",
			enabled:  true,
			allow:    baseAllow,
			rawURL:   "http://192.0.2.10:8443/asset.mpd",
			wantErr:  true,
			errMatch: func(err error) bool { return strings.Contains(err.Error(), "port 8443") },
		},
		{
			name:     "credentials rejected",
			enabled:  true,
			allow:    baseAllow,
			rawURL:   "http://user:pw@192.0.2.10/asset.mpd",
			wantErr:  true,
			errMatch: func(err error) bool { return strings.Contains(err.Error(), "credentials") },
		},
		{
			name:     "fragment rejected",
			enabled:  true,
			allow:    baseAllow,
			rawURL:   "http://192.0.2.10/asset.mpd#t=10",
			wantErr:  true,
			errMatch: func(err error) bool { return strings.Contains(err.Error(), "fragments") },
		},
		{
			name:     "empty url",
			enabled:  true,
			allow:    baseAllow,
			rawURL:   "   ",
			wantErr:  true,
			errMatch: func(err error) bool { return strings.Contains(err.Error(), "empty") },
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := mustPolicy(t, tc.enabled, tc.allow)
			got, err := p.Validate(context.Background(), tc.rawURL)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				if tc.errMatch != nil && !tc.errMatch(err) {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestNewPolicy_RejectsMalformedAllowlist(t *testing.T) {
	if _, err := NewPolicy(true, Allowlist{Hosts: []string{"bad host/path"}}); err == nil {
		t.Fatal("expected host compile error")
	}
	if _, err := NewPolicy(true, Allowlist{CIDRs: []string{"not-a-cidr"}}); err == nil {
		t.Fatal("expected cidr compile error")
	}
}

func TestNormalizeHost(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "Origin.Example.COM", want: "origin.example.com"},
		{in: "origin.example.com.", want: "origin.example.com"},
		{in: "192.0.2.10", want: "192.0.2.10"},
		{in: "[2001:db8::1]", want: "2001:db8::1"},
		{in: "bücher.example", want: "xn--bcher-kva.example"},
		{in: "http://origin.example.com", wantErr: true},
		{in: "origin.example.com/path", wantErr: true},
		{in: "user@origin.example.com", wantErr: true},
		{in: "origin.example.com:8080", wantErr: true},
		{in: "fe80::1%eth0", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tc := range cases {
		got, err := NormalizeHost(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("NormalizeHost(%q): expected error, got %q", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizeHost(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("NormalizeHost(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
