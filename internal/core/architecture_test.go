package core

import (
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// TestOnlyCorePackageImportsDurableStores ensures that the sqlite and
// postgres store packages are wired exclusively through the core storage
// factory. Other packages must depend on the domain.PersistentStore
// interface instead of importing a driver package directly.
func TestOnlyCorePackageImportsDurableStores(t *testing.T) {
	driverPrefixes := []string{
		"plancore/internal/infra/persistence/sqlite",
		"plancore/internal/infra/persistence/postgres",
	}
	allowedPrefixes := []string{
		"plancore/internal/core",
		"plancore/cmd/",
	}

	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports, Tests: true}
	pkgs, err := packages.Load(cfg, "plancore/...")
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}

	seen := make(map[string]struct{})

	for _, pkg := range pkgs {
		// Skip the synthetic "<pkg>.test" binary packages generated by the
		// toolchain; they import their package under test by construction.
		if strings.HasSuffix(pkg.PkgPath, ".test") {
			continue
		}
		if allowedImporter(pkg.PkgPath, allowedPrefixes) || driverPackage(pkg.PkgPath, driverPrefixes) {
			continue
		}
		for importPath := range pkg.Imports {
			if driverPackage(importPath, driverPrefixes) {
				pos := filepath.Join(pkg.PkgPath, "...")
				seen[pos+": "+importPath] = struct{}{}
			}
		}
	}

	if len(seen) > 0 {
		violations := make([]string, 0, len(seen))
		for v := range seen {
			violations = append(violations, v)
		}
		sort.Strings(violations)
		for _, v := range violations {
			t.Errorf("forbidden import of durable store package: %s", v)
		}
		t.Fatalf("found %d forbidden imports of durable store packages", len(violations))
	}
}

func allowedImporter(pkgPath string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if pkgPath == strings.TrimSuffix(prefix, "/") || strings.HasPrefix(pkgPath, prefix) {
			return true
		}
	}
	return false
}

func driverPackage(pkgPath string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if pkgPath == prefix || strings.HasPrefix(pkgPath, prefix+"/") {
			return true
		}
	}
	return false
}
