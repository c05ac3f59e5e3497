package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"profitsniffer/internal/domain/model"
)

func TestParseFilters(t *testing.T) {
	got, err := parseFilters([]string{"minLiquidity=1000", "maxAge=", "minFdv=2.5"})
	require.NoError(t, err)
	assert.Equal(t, []model.FilterParam{
		{Name: "minLiquidity", Value: "1000"},
		{Name: "maxAge", Value: ""},
		{Name: "minFdv", Value: "2.5"},
	}, got)

	_, err = parseFilters([]string{"minLiquidity"})
	assert.Error(t, err)
	_, err = parseFilters([]string{"=5"})
	assert.Error(t, err)
}

func TestArgID(t *testing.T) {
	_, err := argID(nil)
	assert.Error(t, err)

	id, err := argID([]string{" 42 ", "x"})
	require.NoError(t, err)
	assert.Equal(t, "42", id)
}
