package repo_test

import (
	"testing"

	"github.com/hamed0406/domainwatch/internal/repo"
	"github.com/hamed0406/domainwatch/internal/repo/memory"
	pg "github.com/hamed0406/domainwatch/internal/repo/postgres"
	"github.com/hamed0406/domainwatch/internal/repo/sqlite"
)

// Compile-time interface satisfaction checks.
// Using external test package avoids import cycle.
func TestInterfaceSatisfaction(t *testing.T) {
	var _ repo.EndpointStore = memory.New()
	var _ repo.EndpointStore = (*sqlite.Store)(nil)
	var _ repo.EndpointStore = (*pg.Store)(nil)
}
