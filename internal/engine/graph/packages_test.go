package graph

import (
	"reflect"
	"testing"
)

func TestFirstSegments(t *testing.T) {
	rule := FirstSegments(2)
	cases := []struct {
		id   string
		pkg  string
		isOK bool
	}{
		{id: "packages/core/src/index.ts", pkg: "packages/core", isOK: true},
		{id: "packages/core/a.ts", pkg: "packages/core", isOK: true},
		{id: "packages/core", isOK: false},
		{id: "main.ts", isOK: false},
	}
	for _, tc := range cases {
		pkg, ok := rule(tc.id)
		if ok != tc.isOK || pkg != tc.pkg {
			t.Errorf("%s: expected (%q,%v), got (%q,%v)", tc.id, tc.pkg, tc.isOK, pkg, ok)
		}
	}
}

func TestGroupIntoPackages_DependsOnAndUngrouped(t *testing.T) {
	g := mustLoad(t, RawGraph{Modules: []RawModule{
		mod("packages/api/src/a.ts", dep("packages/core/src/x.ts"), RawDependency{Resolved: "express", External: true}),
		mod("packages/api/src/b.ts", dep("packages/core/src/y.ts"), dep("packages/api/src/a.ts")),
		mod("packages/core/src/x.ts"),
		mod("packages/core/src/y.ts"),
		mod("scripts.ts", dep("packages/api/src/a.ts")),
	}})

	ps := GroupIntoPackages(g, nil, GroupOptions{})
	if ps.Len() != 2 {
		t.Fatalf("expected 2 packages, got %d", ps.Len())
	}
	api, ok := ps.Get("packages/api")
	if !ok {
		t.Fatal("expected packages/api")
	}
	if !reflect.DeepEqual(api.DependsOn, []string{"packages/core"}) {
		t.Fatalf("expected api to depend on core once, got %v", api.DependsOn)
	}
	core, _ := ps.Get("packages/core")
	if len(core.DependsOn) != 0 {
		t.Fatalf("expected core to have no fan-out, got %v", core.DependsOn)
	}
	if !reflect.DeepEqual(ps.Ungrouped(), []string{"scripts.ts"}) {
		t.Fatalf("expected scripts.ts to be ungrouped, got %v", ps.Ungrouped())
	}
	if pkg, ok := ps.PackageOf("packages/core/src/y.ts"); !ok || pkg != "packages/core" {
		t.Fatalf("unexpected PackageOf result %q %v", pkg, ok)
	}
}

func TestGroupIntoPackages_ExportsFromEntryPoint(t *testing.T) {
	g := mustLoad(t, RawGraph{Modules: []RawModule{
		mod("packages/ui/src/index.ts", dep("packages/ui/src/button.ts"), dep("packages/ui/src/modal.ts"), dep("packages/other/src/z.ts")),
		mod("packages/ui/src/lib/index.ts"),
		mod("packages/ui/src/button.ts"),
		mod("packages/ui/src/modal.ts"),
		mod("packages/other/src/z.ts"),
	}})

	ps := GroupIntoPackages(g, nil, GroupOptions{})
	ui, _ := ps.Get("packages/ui")
	if ui.Entry != "packages/ui/src/index.ts" {
		t.Fatalf("expected shallowest index to be the entry, got %q", ui.Entry)
	}
	want := []string{"packages/ui/src/button.ts", "packages/ui/src/modal.ts"}
	if !reflect.DeepEqual(ui.Exports, want) {
		t.Fatalf("expected same-package exports %v, got %v", want, ui.Exports)
	}
}

func TestGroupIntoPackages_DeclaredExportsWin(t *testing.T) {
	g := mustLoad(t, RawGraph{
		Modules: []RawModule{
			mod("packages/ui/src/index.ts", dep("packages/ui/src/button.ts")),
			mod("packages/ui/src/button.ts"),
			mod("packages/ui/src/modal.ts"),
		},
		Packages: []RawPackage{{Name: "packages/ui", Exports: []string{"packages/ui/src/modal.ts", "packages/ui/src/button.ts", "packages/ui/src/modal.ts"}}},
	})

	ps := GroupIntoPackages(g, nil, GroupOptions{})
	ui, _ := ps.Get("packages/ui")
	if !ui.Declared {
		t.Fatal("expected declared flag")
	}
	want := []string{"packages/ui/src/button.ts", "packages/ui/src/modal.ts"}
	if !reflect.DeepEqual(ui.Exports, want) {
		t.Fatalf("expected declared exports %v, got %v", want, ui.Exports)
	}
}

func TestGroupIntoPackages_CustomEntryNames(t *testing.T) {
	g := mustLoad(t, RawGraph{Modules: []RawModule{
		mod("libs/go/util/util.go", dep("libs/go/util/strings.go")),
		mod("libs/go/util/strings.go"),
	}})
	rule := FirstSegments(3)
	ps := GroupIntoPackages(g, rule, GroupOptions{EntryPoints: []string{"util.go"}})
	pkg, ok := ps.Get("libs/go/util")
	if !ok {
		t.Fatalf("expected libs/go/util package, got %d packages", ps.Len())
	}
	if pkg.Entry != "libs/go/util/util.go" || len(pkg.Exports) != 1 {
		t.Fatalf("unexpected entry/exports: %q %v", pkg.Entry, pkg.Exports)
	}
}
