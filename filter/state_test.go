// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024 Datadog, Inc.

package filter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateSetAndEventEnabled(t *testing.T) {
	ctx := NewContext(context.Background())
	s := FromContext(ctx)
	assert.True(t, s.EventEnabled())

	// EventEnabled is unscoped: the 63 untouched slots still read enabled.
	s.Set(0, true)
	assert.True(t, s.EventEnabled())
}

func TestStateDidEnableForwardsWhenEnabled(t *testing.T) {
	s := FromContext(NewContext(context.Background()))
	called := false
	s.DidEnable(2, func() { called = true })
	assert.True(t, called)
}

func TestStateDidEnableSkipsAndResetsWhenDisabled(t *testing.T) {
	s := FromContext(NewContext(context.Background()))
	s.Set(2, true)
	called := false
	s.DidEnable(2, func() { called = true })
	assert.False(t, called)
	// the bit must be restored to default for the next pass.
	assert.True(t, s.FilterMap().IsEnabled(2))
}

func TestStateNilIsPermissive(t *testing.T) {
	var s *State
	called := false
	s.DidEnable(1, func() { called = true })
	assert.True(t, called)
	assert.True(t, s.EventEnabled())
	assert.Equal(t, Map{}, s.FilterMap())
}

func TestStateAddInterestIdempotent(t *testing.T) {
	s := FromContext(NewContext(context.Background()))
	s.AddInterest(Always)
	s.AddInterest(Always)
	got, ok := s.TakeInterest()
	assert.True(t, ok)
	assert.Equal(t, Always, got)
}

func TestStateAddInterestDegradesToSometimes(t *testing.T) {
	s := FromContext(NewContext(context.Background()))
	s.AddInterest(Always)
	s.AddInterest(Never)
	got, ok := s.TakeInterest()
	assert.True(t, ok)
	assert.Equal(t, Sometimes, got)
}

func TestStateTakeInterestResets(t *testing.T) {
	s := FromContext(NewContext(context.Background()))
	s.AddInterest(Never)
	_, _ = s.TakeInterest()
	_, ok := s.TakeInterest()
	assert.False(t, ok)
}

func TestStateEnterExitFilterPassBracket(t *testing.T) {
	s := FromContext(NewContext(context.Background()))
	s.EnterFilterPass()
	s.ExitFilterPass()
}
