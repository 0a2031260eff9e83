package devices

import (
	"context"
	"fmt"
	"strconv"

	"github.com/nerrad567/gray-logic-mfa/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-mfa/internal/realm"
)

// SkipState is the value stored in the skippable attribute. Zero is never
// written; an absent attribute means the user has not chosen.
type SkipState int

const (
	NotSkippable SkipState = iota + 1
	Skippable
)

// String returns the attribute value for s.
func (s SkipState) String() string {
	return strconv.Itoa(int(s))
}

// OathService holds the OATH settings of one realm.
type OathService struct {
	Realm realm.Realm

	// SkippableAttribute names the identity attribute holding the SkipState.
	SkippableAttribute string
}

// IsSkippable reports whether values marks the user as allowed to skip.
func (s *OathService) IsSkippable(values []string) bool {
	want := Skippable.String()
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

// ServiceFactory returns the OATH service for a realm.
type ServiceFactory interface {
	OathService(ctx context.Context, r realm.Realm) (*OathService, error)
}

// ConfigServiceFactory builds services from static configuration.
type ConfigServiceFactory struct {
	cfg config.OATHConfig
}

// NewConfigServiceFactory creates a factory over cfg.
func NewConfigServiceFactory(cfg config.OATHConfig) *ConfigServiceFactory {
	return &ConfigServiceFactory{cfg: cfg}
}

// OathService implements ServiceFactory. A realm without an override
// inherits the nearest ancestor's, then the global setting.
func (f *ConfigServiceFactory) OathService(_ context.Context, r realm.Realm) (*OathService, error) {
	attr := f.cfg.SkippableAttributeFor(r.String())
	if attr == "" {
		return nil, fmt.Errorf("no skippable attribute configured for realm %s", r)
	}
	return &OathService{Realm: r, SkippableAttribute: attr}, nil
}
