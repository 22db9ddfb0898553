package blob

import (
	"sort"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

const modulePath = "plantingcore"

func loadModule(t *testing.T) []*packages.Package {
	t.Helper()
	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports, Tests: true}
	pkgs, err := packages.Load(cfg, modulePath+"/...")
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}
	return pkgs
}

func hasPathPrefix(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func reportViolations(t *testing.T, seen map[string]struct{}, what string) {
	t.Helper()
	if len(seen) == 0 {
		return
	}
	violations := make([]string, 0, len(seen))
	for v := range seen {
		violations = append(violations, v)
	}
	sort.Strings(violations)
	for _, v := range violations {
		t.Errorf("forbidden import of %s: %s", what, v)
	}
	t.Fatalf("found %d forbidden imports of %s", len(violations), what)
}

// TestOnlyBlobPackageImportsInfra keeps the archive backends behind blob.Store:
// nothing outside internal/blob may import internal/infra/blob directly.
func TestOnlyBlobPackageImportsInfra(t *testing.T) {
	infraPrefix := modulePath + "/internal/infra/blob"
	allowedPrefix := modulePath + "/internal/blob"

	seen := make(map[string]struct{})
	for _, pkg := range loadModule(t) {
		if hasPathPrefix(pkg.PkgPath, allowedPrefix) || hasPathPrefix(pkg.PkgPath, infraPrefix) {
			continue
		}
		for importPath := range pkg.Imports {
			if hasPathPrefix(importPath, infraPrefix) {
				seen[pkg.PkgPath+": "+importPath] = struct{}{}
			}
		}
	}
	reportViolations(t, seen, "infra blob packages")
}

// TestRollupStaysPure guards the statistics engine from storage and transport
// concerns: internal/rollup may only reach the domain package inside the module.
func TestRollupStaysPure(t *testing.T) {
	rollupPath := modulePath + "/internal/rollup"
	domainPath := modulePath + "/pkg/domain"

	seen := make(map[string]struct{})
	for _, pkg := range loadModule(t) {
		if !hasPathPrefix(strings.TrimSuffix(pkg.PkgPath, "_test"), rollupPath) {
			continue
		}
		for importPath := range pkg.Imports {
			if hasPathPrefix(importPath, modulePath) && importPath != domainPath && !hasPathPrefix(importPath, rollupPath) {
				seen[pkg.PkgPath+": "+importPath] = struct{}{}
			}
		}
	}
	reportViolations(t, seen, "non-domain packages from rollup")
}
