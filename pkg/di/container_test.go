package di

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/goliatone/go-entityref/entity"
	"github.com/goliatone/go-entityref/pkg/testsupport"
	"github.com/goliatone/go-entityref/registry"
	"github.com/sirupsen/logrus"
)

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if cfg.Cache.FreshFor != time.Minute {
		t.Errorf("expected a 1 minute freshness window, got %v", cfg.Cache.FreshFor)
	}
	if cfg.Loaders.MaxConcurrency != 8 {
		t.Errorf("expected MaxConcurrency 8, got %d", cfg.Loaders.MaxConcurrency)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "cache", mutate: func(c *Config) { c.Cache.Capacity = 0 }},
		{name: "resolver", mutate: func(c *Config) { c.Resolver.MaxBatchSize = 0 }},
		{name: "query", mutate: func(c *Config) { c.Query.StaleTime = 0 }},
		{name: "database", mutate: func(c *Config) { c.Database.Driver = "oracle" }},
		{name: "loaders", mutate: func(c *Config) { c.Loaders.MaxConcurrency = 0 }},
		{name: "log level", mutate: func(c *Config) { c.Log.Level = "loud" }},
		{name: "log format", mutate: func(c *Config) { c.Log.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
			if _, err := NewContainer(cfg, nil); err == nil {
				t.Error("expected NewContainer to reject the config")
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	log, err := NewLogger(LogConfig{Level: "debug", Format: "json"})
	if err != nil {
		t.Fatalf("NewLogger() failed: %v", err)
	}
	if log.GetLevel() != logrus.DebugLevel {
		t.Errorf("expected debug level, got %v", log.GetLevel())
	}
	if _, ok := log.Formatter.(*logrus.JSONFormatter); !ok {
		t.Errorf("expected JSON formatter, got %T", log.Formatter)
	}
}

func TestNewContainer(t *testing.T) {
	stub := testsupport.NewStubLoader(testsupport.Ref(entity.TypeItem, "potion-1", "Potion of Healing", "potion-of-healing"))

	container, err := NewContainer(DefaultConfig(), []Registration{
		Loader(entity.TypeItem, stub),
		Loader(entity.TypeCondition, stub),
	}, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("NewContainer() failed: %v", err)
	}
	defer container.Close()

	if container.Registry() == nil || container.Cache() == nil || container.Resolver() == nil || container.Query() == nil {
		t.Fatal("container should expose every component")
	}
	if container.DB() != nil {
		t.Error("container without a database should not expose one")
	}

	types := container.Registry().Types()
	if len(types) != 2 || types[0] != entity.TypeCondition || types[1] != entity.TypeItem {
		t.Errorf("unexpected registered types %v", types)
	}

	ref, err := container.Query().Resolve(context.Background(), entity.NewKey(entity.TypeItem, "potion-1"))
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}
	if ref.Name != "Potion of Healing" {
		t.Errorf("unexpected reference %+v", ref)
	}
}

func TestNewContainer_DuplicateRegistration(t *testing.T) {
	stub := testsupport.NewStubLoader()
	_, err := NewContainer(DefaultConfig(), []Registration{
		Loader(entity.TypeItem, stub),
		Loader(entity.TypeItem, stub),
	}, WithLogger(quietLogger()))
	if err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
}

type singleStub struct {
	refs map[string]entity.Reference
}

func (s singleStub) FetchByID(_ context.Context, _ entity.Type, id string) (entity.Reference, bool, error) {
	ref, ok := s.refs[id]
	return ref, ok, nil
}

func TestSingleLoaderRegistration(t *testing.T) {
	single := singleStub{refs: map[string]entity.Reference{
		"wizard": testsupport.Ref(entity.TypeClass, "wizard", "Wizard", "wizard"),
	}}

	container, err := NewContainer(DefaultConfig(), []Registration{SingleLoader(entity.TypeClass, single)}, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("NewContainer() failed: %v", err)
	}
	defer container.Close()

	refs, err := container.Resolver().ResolveMany(context.Background(), testsupport.Keys(entity.TypeClass, "wizard", "bard"))
	if err != nil {
		t.Fatalf("ResolveMany() failed: %v", err)
	}
	if !refs[entity.NewKey(entity.TypeClass, "wizard")].Exists() {
		t.Error("expected wizard to exist")
	}
	if refs[entity.NewKey(entity.TypeClass, "bard")].Status != entity.StatusAbsent {
		t.Error("expected bard to be absent")
	}

	_, err = container.Resolver().Resolve(context.Background(), entity.NewKey(entity.TypeItem, "potion-1"))
	if !registry.IsUnknownType(err) {
		t.Errorf("expected unknown type error, got %v", err)
	}
}
