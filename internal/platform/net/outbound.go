// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

// Package net guards every outbound request the emulator makes. Manifest
// URLs come straight from API callers, so fetches are validated against an
// explicit allowlist before a connection is attempted.
package net

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/idna"
)

var (
	// ErrOutboundDisabled indicates outbound fetching is disabled by policy.
	ErrOutboundDisabled = errors.New("outbound fetch disabled")
	// ErrOutboundNotAllowed indicates the URL did not match the allowlist.
	ErrOutboundNotAllowed = errors.New("outbound url not allowed")
)

// Allowlist is the raw allowlist as it appears in configuration.
type Allowlist struct {
	Hosts   []string `yaml:"hosts"`
	CIDRs   []string `yaml:"cidrs"`
	Ports   []int    `yaml:"ports"`
	Schemes []string `yaml:"schemes"`
}

// Policy is a compiled outbound policy. Build it once with NewPolicy;
// validation then runs without re-parsing the allowlist per request.
type Policy struct {
	enabled bool
	hosts   map[string]struct{}
	cidrs   []*net.IPNet
	ports   map[int]struct{}
	schemes map[string]struct{}
}

// NewPolicy compiles an allowlist. Host entries are normalized (IDNA,
// case, trailing dot), CIDR entries accept bare IPs. A malformed entry
// fails compilation; a policy is never half-applied.
func NewPolicy(enabled bool, allow Allowlist) (*Policy, error) {
	p := &Policy{
		enabled: enabled,
		hosts:   make(map[string]struct{}),
		ports:   make(map[int]struct{}),
		schemes: make(map[string]struct{}),
	}
	for _, host := range allow.Hosts {
		normalized, err := NormalizeHost(host)
		if err != nil {
			return nil, fmt.Errorf("allowlist host: %w", err)
		}
		p.hosts[normalized] = struct{}{}
	}
	cidrs, err := compileCIDRs(allow.CIDRs)
	if err != nil {
		return nil, err
	}
	p.cidrs = cidrs
	for _, port := range allow.Ports {
		p.ports[port] = struct{}{}
	}
	for _, scheme := range allow.Schemes {
		p.schemes[strings.ToLower(strings.TrimSpace(scheme))] = struct{}{}
	}
	return p, nil
}

// Validate checks raw against the policy and returns the normalized URL to
// fetch. Hostnames are resolved; an address that is loopback, link-local,
// multicast or unspecified is rejected unless covered by an allowlisted
// CIDR, so a DNS answer cannot steer a fetch somewhere the config never
// named.
func (p *Policy) Validate(ctx context.Context, raw string) (string, error) {
	if !p.enabled {
		return "", ErrOutboundDisabled
	}
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("outbound url empty")
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme == "" {
		return "", fmt.Errorf("missing url scheme")
	}
	if u.Host == "" {
		return "", fmt.Errorf("missing url host")
	}
	if u.Fragment != "" {
		return "", fmt.Errorf("fragments not allowed")
	}
	if u.User != nil {
		return "", fmt.Errorf("credentials not allowed")
	}

	scheme := strings.ToLower(u.Scheme)
	if _, ok := p.schemes[scheme]; !ok {
		return "", fmt.Errorf("scheme %q not allowed", scheme)
	}

	port, err := effectivePort(u, scheme)
	if err != nil {
		return "", err
	}
	if _, ok := p.ports[port]; !ok {
		return "", fmt.Errorf("port %d not allowed", port)
	}

	host, err := NormalizeHost(u.Hostname())
	if err != nil {
		return "", err
	}

	ips, err := resolveIPs(ctx, host)
	if err != nil {
		return "", err
	}

	_, hostAllowed := p.hosts[host]
	ipAllowed := false
	for _, ip := range ips {
		inCIDR := p.ipInCIDRs(ip)
		if isBlockedIP(ip) && !inCIDR {
			return "", fmt.Errorf("blocked ip %s", ip.String())
		}
		if inCIDR {
			ipAllowed = true
		}
	}
	if !hostAllowed && !ipAllowed {
		return "", ErrOutboundNotAllowed
	}

	u.Host = joinHostPort(host, u.Port())
	return u.String(), nil
}

// NormalizeHost validates and normalizes a bare host for comparison.
func NormalizeHost(raw string) (string, error) {
	host := strings.TrimSpace(raw)
	if host == "" {
		return "", fmt.Errorf("host is empty")
	}
	if strings.Contains(host, "://") {
		return "", fmt.Errorf("host must not include scheme: %s", raw)
	}
	if strings.Contains(host, "/") {
		return "", fmt.Errorf("host must not include path: %s", raw)
	}
	if strings.Contains(host, "@") {
		return "", fmt.Errorf("host must not include userinfo: %s", raw)
	}
	if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	}
	if strings.Contains(host, ":") && net.ParseIP(host) == nil {
		return "", fmt.Errorf("host must not include port: %s", raw)
	}
	if strings.Contains(host, "%") {
		return "", fmt.Errorf("host must not include zone: %s", raw)
	}
	host = strings.TrimSuffix(host, ".")
	if host == "" {
		return "", fmt.Errorf("host is empty")
	}
	if ip := net.ParseIP(host); ip != nil {
		return strings.ToLower(ip.String()), nil
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", fmt.Errorf("invalid host %q: %w", raw, err)
	}
	return strings.ToLower(ascii), nil
}

func (p *Policy) ipInCIDRs(ip net.IP) bool {
	if ip == nil {
		return false
	}
	for _, n := range p.cidrs {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func compileCIDRs(entries []string) ([]*net.IPNet, error) {
	var nets []*net.IPNet
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		ip, ipnet, err := net.ParseCIDR(entry)
		if err == nil {
			ipnet.IP = ip
			nets = append(nets, ipnet)
			continue
		}
		ip = net.ParseIP(entry)
		if ip == nil {
			return nil, fmt.Errorf("invalid CIDR or IP: %s", entry)
		}
		bits := 32
		if ip.To4() == nil {
			bits = 128
		}
		nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
	}
	return nets, nil
}

func effectivePort(u *url.URL, scheme string) (int, error) {
	if u.Port() == "" {
		switch scheme {
		case "http":
			return 80, nil
		case "https":
			return 443, nil
		default:
			return 0, fmt.Errorf("unknown scheme %q", scheme)
		}
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		return 0, fmt.Errorf("invalid port %q: %w", u.Port(), err)
	}
	return port, nil
}

func resolveIPs(ctx context.Context, host string) ([]net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return []net.IP{ip}, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("resolve host %q: %w", host, err)
	}
	ips := make([]net.IP, 0, len(addrs))
	for _, addr := range addrs {
		if addr.IP != nil {
			ips = append(ips, addr.IP)
		}
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("resolve host %q: no addresses", host)
	}
	return ips, nil
}

func isBlockedIP(ip net.IP) bool {
	if ip == nil {
		return true
	}
	return ip.IsLoopback() ||
		ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsMulticast()
}

func joinHostPort(host, port string) string {
	if port == "" {
		if strings.Contains(host, ":") {
			return "[" + host + "]"
		}
		return host
	}
	return net.JoinHostPort(host, port)
}
