package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/example/community-gate/internal/curfew"
	"github.com/example/community-gate/internal/persistence"
)

type seedFile struct {
	Tenants []seedTenant `yaml:"tenants"`
}

type seedTenant struct {
	ID         string          `yaml:"id"`
	Name       string          `yaml:"name"`
	Timezone   string          `yaml:"timezone"`
	Rules      []seedRule      `yaml:"rules"`
	Exceptions []seedException `yaml:"exceptions"`
}

type seedRule struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	StartTime   string   `yaml:"start_time"`
	EndTime     string   `yaml:"end_time"`
	DaysOfWeek  []string `yaml:"days_of_week"`
	// Season defaults to all_year when omitted.
	Season      string   `yaml:"season"`
	SeasonStart string   `yaml:"season_start"`
	SeasonEnd   string   `yaml:"season_end"`
	// IsActive defaults to true when omitted.
	IsActive *bool `yaml:"is_active"`
}

type seedException struct {
	ID       string `yaml:"id"`
	CurfewID string `yaml:"curfew_id"`
	Date     string `yaml:"date"`
	Reason   string `yaml:"reason"`
}

type seedWriter interface {
	UpsertTenant(ctx context.Context, tenant persistence.Tenant) error
	UpsertCurfewRule(ctx context.Context, rule persistence.CurfewRule) error
	AddCurfewException(ctx context.Context, exception persistence.CurfewException) error
}

func loadSeed(path string) (seedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return seedFile{}, fmt.Errorf("read seed file %s: %w", path, err)
	}
	seed, err := parseSeed(data)
	if err != nil {
		return seedFile{}, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	return seed, nil
}

func parseSeed(data []byte) (seedFile, error) {
	var seed seedFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&seed); err != nil && !errors.Is(err, io.EOF) {
		return seedFile{}, err
	}
	return seed, nil
}

// applySeed writes every record in file order. Rule values are stored as
// given, so malformed rules surface at evaluation time like any other.
// Exceptions that already exist are left alone, which keeps seeding
// idempotent across restarts.
func applySeed(ctx context.Context, store seedWriter, seed seedFile) error {
	for _, tenant := range seed.Tenants {
		if err := store.UpsertTenant(ctx, persistence.Tenant{ID: tenant.ID, Name: tenant.Name, Timezone: tenant.Timezone}); err != nil {
			return fmt.Errorf("seed tenant %s: %w", tenant.ID, err)
		}
		for _, rule := range tenant.Rules {
			active := true
			if rule.IsActive != nil {
				active = *rule.IsActive
			}
			season := rule.Season
			if season == "" {
				season = string(curfew.SeasonAllYear)
			}
			record := persistence.CurfewRule{
				ID:          rule.ID,
				TenantID:    tenant.ID,
				Name:        rule.Name,
				Description: rule.Description,
				StartTime:   rule.StartTime,
				EndTime:     rule.EndTime,
				DaysOfWeek:  append([]string{}, rule.DaysOfWeek...),
				Season:      season,
				SeasonStart: optional(rule.SeasonStart),
				SeasonEnd:   optional(rule.SeasonEnd),
				IsActive:    active,
			}
			if err := store.UpsertCurfewRule(ctx, record); err != nil {
				return fmt.Errorf("seed rule %s: %w", rule.ID, err)
			}
		}
		for _, exception := range tenant.Exceptions {
			record := persistence.CurfewException{
				ID:       exception.ID,
				TenantID: tenant.ID,
				CurfewID: exception.CurfewID,
				Date:     exception.Date,
				Reason:   exception.Reason,
			}
			if err := store.AddCurfewException(ctx, record); err != nil {
				if errors.Is(err, persistence.ErrDuplicate) {
					continue
				}
				return fmt.Errorf("seed exception %s: %w", exception.ID, err)
			}
		}
	}
	return nil
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
