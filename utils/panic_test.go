package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandlePanic(t *testing.T) {
	var got interface{}
	func() {
		defer HandlePanic(func(r interface{}, stack []byte) {
			got = r
			assert.NotEmpty(t, stack)
		})

		panic("haha")
	}()
	assert.Equal(t, "haha", got)
}

func TestHandlePanic_NoPanic(t *testing.T) {
	called := false
	func() {
		defer HandlePanic(func(r interface{}, stack []byte) {
			called = true
		})
	}()
	assert.False(t, called)
}

func TestGetValueOnEnv(t *testing.T) {
	t.Setenv("TCPMUX_ENV", "test")
	assert.True(t, IsTest())
	assert.Equal(t, "t", GetValueOnEnv("p", "t"))

	t.Setenv("TCPMUX_ENV", "prod")
	assert.False(t, IsTest())
	assert.Equal(t, "p", GetValueOnEnv("p", "t"))
}
