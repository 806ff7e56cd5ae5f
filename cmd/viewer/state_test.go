package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/reservemap/reservemap/internal/reserve"
	"github.com/reservemap/reservemap/internal/viewport"
)

type fixedBackend struct{}

func (fixedBackend) Operators(context.Context) ([]reserve.Operator, error) {
	return []reserve.Operator{{ID: 3, Name: "Staatsbosbeheer"}}, nil
}

func (fixedBackend) Config(context.Context) (reserve.BackendConfig, error) {
	return reserve.BackendConfig{VectorTileMaxZoom: 13}, nil
}

func (fixedBackend) SearchReserves(context.Context, string, int) ([]reserve.Summary, error) {
	return nil, nil
}

func (fixedBackend) ReservesAtPoint(context.Context, float64, float64) ([]reserve.Summary, error) {
	return nil, nil
}

func (fixedBackend) Reserve(context.Context, string) (*reserve.Detail, error) {
	return nil, reserve.ErrNotFound
}

func TestInitialState_ListsStartupLoads(t *testing.T) {
	out, err := initialState(context.Background(), "https://map.example/?lat=52&lng=5&zoom=10&source=osm", viewport.Size{}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"fetch_operators", "fetch_config"}, out.Commands)
	assert.Equal(t, 10, out.State.Camera.Zoom)
	assert.Equal(t, "https://map.example/?lat=52&lng=5&zoom=10&source=osm", out.State.URL)
}

func TestInitialState_Fetch(t *testing.T) {
	out, err := initialState(context.Background(), "https://map.example/", viewport.Size{Width: 400, Height: 300}, fixedBackend{})
	require.NoError(t, err)

	assert.Equal(t, 13, out.State.MaxTileZoom)
	require.Len(t, out.State.Operators, 1)
	assert.Equal(t, "Staatsbosbeheer", out.State.Operators[0].Name)
	assert.Equal(t, viewport.Size{Width: 400, Height: 300}, out.State.Viewport)
}

func TestWriteState_YAMLUsesJSONNames(t *testing.T) {
	out, err := initialState(context.Background(), "https://map.example/?zoom=8", viewport.Size{}, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, writeState(&buf, out, true))

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &doc))
	state, ok := doc["state"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, state, "maxTileZoom")
	assert.Equal(t, "https://map.example/?zoom=8", state["url"])
}

func TestWriteState_JSON(t *testing.T) {
	out, err := initialState(context.Background(), "https://map.example/", viewport.Size{}, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, writeState(&buf, out, false))
	assert.Contains(t, buf.String(), `"commands": [`)
}
