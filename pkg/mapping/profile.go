// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package mapping resolves and formats the fields written into interchange
// records. A Profile is pure data (serializable for audit), describing where
// each field's value comes from and the formatter chain applied to it.
//
// Resolution fails loudly on unknown fields, sources or formatters: a
// silently wrong field corrupts a financial file.
package mapping

import (
	"fmt"
)

type RecordType string

const (
	RecordFileHeader  RecordType = "fileHeader"
	RecordBatchHeader RecordType = "batchHeader"
	RecordEntryDetail RecordType = "entryDetail"
)

// Profile is a named, versioned bundle of field definitions for each record
// type. Profiles are immutable once a generated file references them, so
// Registry.Get hands out copies.
type Profile struct {
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version" yaml:"version"`

	// RecordWidth is the fixed width of every record, 94 in the canonical profile.
	RecordWidth int `json:"recordWidth" yaml:"recordWidth"`

	// Settings are named values referenced by setting-sourced fields.
	Settings map[string]string `json:"settings" yaml:"settings"`

	Records map[RecordType][]Field `json:"records" yaml:"records"`
}

// Field defines where one record field's value comes from and how it's formatted.
type Field struct {
	Name       string      `json:"name" yaml:"name"`
	Source     Source      `json:"source" yaml:"source"`
	Formatters []Formatter `json:"formatters" yaml:"formatters"`
}

func (p *Profile) field(record RecordType, name string) (*Field, error) {
	fields, exists := p.Records[record]
	if !exists {
		return nil, fmt.Errorf("profile %s: unknown record type %q", p.Name, record)
	}
	for i := range fields {
		if fields[i].Name == name {
			return &fields[i], nil
		}
	}
	return nil, fmt.Errorf("profile %s: unknown field %s.%s", p.Name, record, name)
}

// Setting returns a named profile setting, failing when absent.
func (p *Profile) Setting(name string) (string, error) {
	v, exists := p.Settings[name]
	if !exists {
		return "", fmt.Errorf("profile %s: missing setting %q", p.Name, name)
	}
	return v, nil
}

func (p *Profile) clone() *Profile {
	cp := *p
	cp.Settings = make(map[string]string, len(p.Settings))
	for k, v := range p.Settings {
		cp.Settings[k] = v
	}
	cp.Records = make(map[RecordType][]Field, len(p.Records))
	for rec, fields := range p.Records {
		out := make([]Field, len(fields))
		copy(out, fields)
		cp.Records[rec] = out
	}
	return &cp
}

// Registry holds the named profiles available to batch runs. Exactly one
// profile is active at a time (chosen by configuration), but callers always
// receive the profile by value so switching the active name can never affect
// a batch already under construction.
type Registry struct {
	profiles map[string]*Profile
}

func NewRegistry(profiles ...*Profile) (*Registry, error) {
	r := &Registry{profiles: make(map[string]*Profile)}
	for i := range profiles {
		if profiles[i].Name == "" {
			return nil, fmt.Errorf("profile #%d has no name", i)
		}
		if _, exists := r.profiles[profiles[i].Name]; exists {
			return nil, fmt.Errorf("duplicate profile %q", profiles[i].Name)
		}
		if profiles[i].RecordWidth <= 0 {
			return nil, fmt.Errorf("profile %q has no record width", profiles[i].Name)
		}
		r.profiles[profiles[i].Name] = profiles[i]
	}
	return r, nil
}

// Get returns a copy of the named profile.
func (r *Registry) Get(name string) (*Profile, error) {
	p, exists := r.profiles[name]
	if !exists {
		return nil, fmt.Errorf("unknown profile %q", name)
	}
	return p.clone(), nil
}
