package resource

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoading(t *testing.T) {
	r := Loading[int]()
	assert.True(t, r.IsLoading())
	assert.False(t, r.IsSuccess())
	assert.False(t, r.IsError())
	assert.Empty(t, r.Message())

	_, ok := r.Value()
	assert.False(t, ok)
}

func TestSuccess(t *testing.T) {
	r := Success([]string{"a", "b"})
	assert.True(t, r.IsSuccess())
	assert.Equal(t, StatusSuccess, r.Status())

	v, ok := r.Value()
	assert.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, v)
}

func TestError(t *testing.T) {
	r := Error[int]("boom")
	assert.True(t, r.IsError())
	assert.Equal(t, "boom", r.Message())

	_, ok := r.Value()
	assert.False(t, ok, "plain error carries no value")
}

func TestErrorWithRetainsLastValue(t *testing.T) {
	r := ErrorWith("write failed", 42)
	assert.True(t, r.IsError())
	assert.Equal(t, "write failed", r.Message())

	v, ok := r.Value()
	assert.True(t, ok, "error must retain the last known value")
	assert.Equal(t, 42, v)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "loading", StatusLoading.String())
	assert.Equal(t, "success", StatusSuccess.String())
	assert.Equal(t, "error", StatusError.String())
	assert.Equal(t, "unknown", Status(99).String())
}
