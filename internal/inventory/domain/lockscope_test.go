package domain_test

import (
	"testing"

	"github.com/stockflow/stockflow-backend/internal/inventory/domain"
	"github.com/stretchr/testify/assert"
)

func TestLockScope_Keys(t *testing.T) {
	scope := domain.ProductScope("p1", "d2", "d1", "d2", "")

	assert.Equal(t, []string{"depot:d1", "depot:d2", "product:p1"}, scope.Keys())
	assert.True(t, scope.HasDepot("d1"))
	assert.False(t, scope.HasProduct("p2"))
}

func TestLockScope_Empty(t *testing.T) {
	assert.True(t, domain.LockScope{}.Empty())
	assert.False(t, domain.DepotScope("d1").Empty())
}
