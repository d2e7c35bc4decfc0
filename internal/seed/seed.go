// Package seed loads the endpoint inventory from a YAML file.
//
//	endpoints:
//	  - address: 10.0.0.1
//	    group: core
//	  - address: gw.example.net
//	    active: false
//	groups:
//	  edge: [192.0.2.10, 192.0.2.11]
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/NordCoder/netwatch/internal/domain/endpoint"
	"github.com/NordCoder/netwatch/internal/services/prober"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("invalid seed")

type entry struct {
	Address string `yaml:"address"`
	Group   string `yaml:"group"`
	Active  *bool  `yaml:"active"`
}

type file struct {
	Endpoints []entry             `yaml:"endpoints"`
	Groups    map[string][]string `yaml:"groups"`
}

func LoadFile(path string) ([]*endpoint.Endpoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes a seed document. Duplicate addresses keep the first entry;
// "groups" entries are appended after "endpoints" in group name order.
func Parse(r io.Reader) ([]*endpoint.Endpoint, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc file
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	seen := make(map[string]struct{})
	out := make([]*endpoint.Endpoint, 0, len(doc.Endpoints))
	add := func(addr, group string, active bool) error {
		addr = strings.TrimSpace(addr)
		if !prober.ValidAddress(addr) {
			return fmt.Errorf("%w: bad address %q", ErrInvalid, addr)
		}
		key := strings.ToLower(addr)
		if _, dup := seen[key]; dup {
			return nil
		}
		seen[key] = struct{}{}
		out = append(out, &endpoint.Endpoint{Address: addr, Group: strings.TrimSpace(group), Active: active})
		return nil
	}

	for _, e := range doc.Endpoints {
		active := e.Active == nil || *e.Active
		if err := add(e.Address, e.Group, active); err != nil {
			return nil, err
		}
	}

	groups := make([]string, 0, len(doc.Groups))
	for g := range doc.Groups {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	for _, g := range groups {
		for _, a := range doc.Groups[g] {
			if err := add(a, g, true); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

type Upserter interface {
	Upsert(ctx context.Context, e *endpoint.Endpoint) error
}

// Apply upserts every endpoint and stops at the first failure.
func Apply(ctx context.Context, repo Upserter, eps []*endpoint.Endpoint, log *zap.Logger) error {
	for i, e := range eps {
		if err := repo.Upsert(ctx, e); err != nil {
			return fmt.Errorf("upsert %s: %w", e.Address, err)
		}
		if log != nil && (i+1)%500 == 0 {
			log.Info("seed progress", zap.Int("done", i+1), zap.Int("total", len(eps)))
		}
	}
	if log != nil {
		log.Info("seed applied", zap.Int("endpoints", len(eps)))
	}
	return nil
}
