package response

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPaginatedResponse(t *testing.T) {
	page := NewPaginatedResponse([]int{1, 2}, 1, 2, 5)
	assert.Equal(t, 3, page.Pagination.TotalPages)
	assert.True(t, page.Pagination.HasNext)

	last := NewPaginatedResponse([]int{5}, 3, 2, 5)
	assert.False(t, last.Pagination.HasNext)

	empty := NewPaginatedResponse([]int{}, 1, 10, 0)
	assert.Equal(t, 0, empty.Pagination.TotalPages)
	assert.False(t, empty.Pagination.HasNext)
}
