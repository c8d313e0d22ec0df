package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func echoTool(name string, schema string) Tool {
	return Tool{
		Name:        name,
		Description: name,
		InputSchema: schema,
		Handler: func(_ context.Context, args map[string]any) (any, error) {
			return args, nil
		},
	}
}

func TestNewRegistryRejectsBrokenSchema(t *testing.T) {
	_, err := NewRegistry(echoTool("broken", `{"type":`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "broken")
}

func TestNewRegistryRejectsDuplicates(t *testing.T) {
	_, err := NewRegistry(
		echoTool("twice", `{"type": "object"}`),
		echoTool("twice", `{"type": "object"}`),
	)
	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicate")
}

func TestNewRegistryRequiresHandler(t *testing.T) {
	_, err := NewRegistry(Tool{Name: "handlerless", InputSchema: `{"type": "object"}`})
	require.Error(t, err)
}

func TestListPreservesRegistrationOrder(t *testing.T) {
	r, err := NewRegistry(
		echoTool("charlie", `{"type": "object"}`),
		echoTool("alpha", `{"type": "object"}`),
		echoTool("bravo", `{"type": "object"}`),
	)
	require.NoError(t, err)

	listed := r.List()
	require.Len(t, listed, 3)
	require.Equal(t, "charlie", listed[0].Name)
	require.Equal(t, "alpha", listed[1].Name)
	require.Equal(t, "bravo", listed[2].Name)
}

func TestRegistryCallUnknownTool(t *testing.T) {
	r, err := NewRegistry(echoTool("known", `{"type": "object"}`))
	require.NoError(t, err)

	_, err = r.Call(context.Background(), "unknown", nil)
	var unknown *UnknownToolError
	require.ErrorAs(t, err, &unknown)
	require.Equal(t, "unknown", unknown.Name)
}

func TestCallValidatesBeforeHandler(t *testing.T) {
	ran := false
	r, err := NewRegistry(Tool{
		Name: "strict",
		InputSchema: `{
			"type": "object",
			"properties": {"count": {"type": "integer", "minimum": 1}},
			"required": ["count"]
		}`,
		Handler: func(_ context.Context, args map[string]any) (any, error) {
			ran = true
			return args, nil
		},
	})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = r.Call(ctx, "strict", map[string]any{"count": 0})
	var bad *ArgumentError
	require.ErrorAs(t, err, &bad)
	require.Equal(t, "strict", bad.Tool)
	require.NotEmpty(t, bad.Violations)
	require.False(t, ran, "handler must not run on invalid arguments")

	_, err = r.Call(ctx, "strict", map[string]any{})
	require.ErrorAs(t, err, &bad)
	require.False(t, ran)

	out, err := r.Call(ctx, "strict", map[string]any{"count": 3})
	require.NoError(t, err)
	require.True(t, ran)
	require.Equal(t, map[string]any{"count": 3}, out)
}

func TestCallNilArguments(t *testing.T) {
	r, err := NewRegistry(echoTool("open", `{"type": "object"}`))
	require.NoError(t, err)

	out, err := r.Call(context.Background(), "open", nil)
	require.NoError(t, err)
	require.Equal(t, map[string]any{}, out)
}

func TestCatalogToolSchemasCompile(t *testing.T) {
	r, err := NewRegistry(CatalogTools(nil)...)
	require.NoError(t, err)
	require.Len(t, r.List(), 10)

	mutating := map[string]bool{}
	for _, d := range r.List() {
		tool, ok := r.Get(d.Name)
		require.True(t, ok)
		mutating[d.Name] = tool.Mutating
	}
	require.True(t, mutating["update_stock"])
	require.True(t, mutating["adjust_stock"])
	require.False(t, mutating["filter_products"])
}

func TestPruneUnset(t *testing.T) {
	got := pruneUnset(map[string]any{
		"category__icontains": "shirt",
		"color__icontains":    "",
		"stock__gte":          float64(0),
		"size__exact":         nil,
	})
	require.Equal(t, map[string]any{
		"category__icontains": "shirt",
		"stock__gte":          float64(0),
	}, got)

	require.Nil(t, pruneUnset(nil))
	require.Nil(t, pruneUnset(map[string]any{}))
}
