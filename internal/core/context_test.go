package core

import (
	"bytes"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

// recorder is a module that implements every load-time hook and logs the
// ones it sees. Its failure fields make the matching hook fail.
type recorder struct {
	id    ModuleID
	calls *[]string
	fail  string // "configure", "provision" or "validate"

	path string // decoded from the "path" key
}

func (m *recorder) ModuleInfo() ModuleInfo {
	id, calls, fail := m.id, m.calls, m.fail
	return ModuleInfo{
		ID:  id,
		New: func() Module { return &recorder{id: id, calls: calls, fail: fail} },
	}
}

func (m *recorder) hook(name string) error {
	*m.calls = append(*m.calls, name)
	if m.fail == name {
		return errors.New(name + " boom")
	}
	return nil
}

func (m *recorder) Configure(node *yaml.Node) error {
	var cfg struct {
		Path string `yaml:"path"`
	}
	if err := node.Decode(&cfg); err != nil {
		return err
	}
	m.path = cfg.Path
	return m.hook("configure")
}

func (m *recorder) Provision(ctx *AppContext) error {
	if err := m.hook("provision"); err != nil {
		return err
	}
	return ctx.RegisterService("store", m.path)
}

func (m *recorder) Validate() error { return m.hook("validate") }

// bare implements no lifecycle hook at all.
type bare struct{}

func (bare) ModuleInfo() ModuleInfo {
	return ModuleInfo{ID: "store.bare", New: func() Module { return bare{} }}
}

func section(t *testing.T, src string) yaml.Node {
	t.Helper()
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(src), &doc); err != nil {
		t.Fatal(err)
	}
	return *doc.Content[0]
}

func TestAppContext_LoadModule(t *testing.T) {
	tests := []struct {
		name      string
		fail      string
		section   bool
		wantCalls []string
		wantErr   string
	}{
		{"full lifecycle", "", true, []string{"configure", "provision", "validate"}, ""},
		{"no section skips configure", "", false, []string{"provision", "validate"}, ""},
		{"configure error", "configure", true, []string{"configure"}, "core: configure store.rec"},
		{"provision error", "provision", true, []string{"configure", "provision"}, "core: provision store.rec"},
		{"validate error", "validate", true, []string{"configure", "provision", "validate"}, "core: validate store.rec"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Cleanup(resetRegistry)

			var calls []string
			RegisterModule(&recorder{id: "store.rec", calls: &calls, fail: tt.fail})

			ctx := NewAppContext(nil, "/var/lib/cronguard")
			if tt.section {
				ctx = ctx.WithModuleConfigs(map[string]yaml.Node{
					"store.rec": section(t, "path: /srv/state.db"),
				})
			}

			mod, err := ctx.LoadModule("store.rec")
			if !slices.Equal(calls, tt.wantCalls) {
				t.Errorf("calls = %v, want %v", calls, tt.wantCalls)
			}
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadModule: %v", err)
			}

			wantPath := ""
			if tt.section {
				wantPath = "/srv/state.db"
			}
			if got := mod.(*recorder).path; got != wantPath {
				t.Errorf("path = %q, want %q", got, wantPath)
			}
			if svc, err := Service[string](ctx, "store"); err != nil || svc != wantPath {
				t.Errorf("store service = %q, %v", svc, err)
			}
		})
	}
}

func TestAppContext_LoadModule_Unknown(t *testing.T) {
	t.Cleanup(resetRegistry)
	RegisterModule(bare{})

	_, err := NewAppContext(nil, "/data").LoadModule("store.sqlite")
	if err == nil {
		t.Fatal("expected error for unknown module")
	}
	if !strings.Contains(err.Error(), "store.bare") {
		t.Errorf("error should list compiled-in modules: %v", err)
	}
}

func TestAppContext_LoadModule_NoHooks(t *testing.T) {
	t.Cleanup(resetRegistry)
	RegisterModule(bare{})

	ctx := NewAppContext(nil, "/data").WithModuleConfigs(map[string]yaml.Node{
		"store.bare": section(t, "ignored: true"),
	})
	if _, err := ctx.LoadModule("store.bare"); err != nil {
		t.Fatalf("LoadModule: %v", err)
	}
}

func TestAppContext_ForModule(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	ctx := NewAppContext(logger, "/data").WithModuleConfigs(map[string]yaml.Node{
		"store.sqlite": section(t, "path: x"),
	})
	child := ctx.ForModule("store.sqlite")
	grandchild := child.ForModule("gateway.http")

	grandchild.Logger.Info("hello")
	if out := buf.String(); !strings.Contains(out, "module=gateway.http") || strings.Contains(out, "store.sqlite") {
		t.Errorf("nested scopes should replace the module attribute, got: %s", out)
	}
	if child.DataDir != "/data" {
		t.Errorf("DataDir = %q", child.DataDir)
	}
	if _, ok := child.moduleConfigs["store.sqlite"]; !ok {
		t.Error("ForModule should keep module configs")
	}
}

func TestAppContext_Services(t *testing.T) {
	t.Parallel()

	ctx := NewAppContext(nil, "/data")
	child := ctx.ForModule("store.memory")

	if err := child.RegisterService("store", 42); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := ctx.RegisterService("store", 43); err == nil {
		t.Fatal("duplicate service should fail")
	}

	v, ok := ctx.GetService("store")
	if !ok || v != 42 {
		t.Fatalf("GetService = %v, %v; want 42 visible from the parent", v, ok)
	}

	n, err := Service[int](ctx, "store")
	if err != nil || n != 42 {
		t.Errorf("Service[int] = %d, %v", n, err)
	}
	if _, err := Service[string](ctx, "store"); err == nil {
		t.Error("wrong type should fail")
	}
	if _, err := Service[int](ctx, "missing"); err == nil {
		t.Error("missing service should fail")
	}

	derived := ctx.WithModuleConfigs(map[string]yaml.Node{})
	if err := derived.RegisterService("scheduler", true); err != nil {
		t.Fatal(err)
	}
	if _, ok := ctx.GetService("scheduler"); !ok {
		t.Error("derived contexts should share the service table")
	}
}
