package kaya

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Test helpers ---

type readInput struct {
	FilePath string `json:"file_path" jsonschema:"required,description=The absolute path to the file"`
	Limit    *int   `json:"limit,omitempty" jsonschema:"description=Number of lines to read"`
}

type mockReadTool struct{}

func (t *mockReadTool) Name() string        { return "Read" }
func (t *mockReadTool) Description() string { return "Read a file from the filesystem" }

func (t *mockReadTool) Execute(_ context.Context, input readInput) (*ToolResult, error) {
	return TextResult("content of " + input.FilePath), nil
}

// echoHandle returns a local handle that answers with its own name.
func echoHandle(name string) Handle {
	return NewLocal(name+" capability", anthropic.ToolInputSchemaParam{},
		func(context.Context, json.RawMessage) (*ToolResult, error) {
			return TextResult(name + " ok"), nil
		})
}

// remoteStub is a remote handle whose availability can be toggled.
type remoteStub struct {
	up bool
}

func (r *remoteStub) Kind() Kind                             { return KindRemote }
func (r *remoteStub) Description() string                    { return "remote" }
func (r *remoteStub) Schema() anthropic.ToolInputSchemaParam { return anthropic.ToolInputSchemaParam{} }
func (r *remoteStub) Available() bool                        { return r.up }

func (r *remoteStub) Invoke(context.Context, json.RawMessage) (*ToolResult, error) {
	return TextResult("remote ok"), nil
}

func registryWith(t *testing.T, names ...string) *Registry {
	t.Helper()
	reg := NewRegistry()
	for _, n := range names {
		require.NoError(t, reg.Register(n, echoHandle(n)))
	}
	return reg
}

// --- Registry ---

func TestRegisterTool_Invoke(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, RegisterTool[readInput](reg, &mockReadTool{}))

	set, err := reg.ListFor(AgentDefinition{Name: "a"})
	require.NoError(t, err)

	result, err := set.Invoke(context.Background(), "Read", json.RawMessage(`{"file_path": "/tmp/test.go"}`))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "content of /tmp/test.go", result.Text())
}

func TestRegisterTool_InvalidJSONIsErrorResult(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, RegisterTool[readInput](reg, &mockReadTool{}))
	set, err := reg.ListFor(AgentDefinition{Name: "a"})
	require.NoError(t, err)

	result, err := set.Invoke(context.Background(), "Read", json.RawMessage(`{invalid json}`))
	require.NoError(t, err, "invalid JSON should be a tool error, not a Go error")
	assert.True(t, result.IsError)
}

func TestRegister_Duplicate(t *testing.T) {
	reg := registryWith(t, "A")
	err := reg.Register("A", echoHandle("A"))
	assert.ErrorIs(t, err, ErrDuplicateCapability)
}

func TestRegister_Sealed(t *testing.T) {
	reg := registryWith(t, "A")
	reg.Seal()
	assert.True(t, reg.Sealed())
	assert.ErrorIs(t, reg.Register("B", echoHandle("B")), ErrRegistrySealed)
}

func TestResolve_Unknown(t *testing.T) {
	reg := registryWith(t, "A")
	_, err := reg.Resolve("B")
	assert.ErrorIs(t, err, ErrUnknownCapability)

	h, err := reg.Resolve("A")
	require.NoError(t, err)
	assert.Equal(t, KindLocal, h.Kind())
}

func TestResolve_UnavailableRemoteIsUnknown(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("mcp__Playwright__browser_click", &remoteStub{}))

	assert.True(t, reg.Has("mcp__Playwright__browser_click"))
	_, err := reg.Resolve("mcp__Playwright__browser_click")
	assert.ErrorIs(t, err, ErrUnknownCapability)
}

func TestNames_RegistrationOrder(t *testing.T) {
	reg := registryWith(t, "C", "A", "B")
	assert.Equal(t, []string{"C", "A", "B"}, reg.Names())
}

// --- ListFor / CapabilitySet ---

func TestListFor_SubsetRejectsOthers(t *testing.T) {
	reg := registryWith(t, "A", "B", "C")
	set, err := reg.ListFor(AgentDefinition{Name: "x", Capabilities: Only("A", "C")})
	require.NoError(t, err)
	assert.False(t, set.InheritsAll())
	assert.Equal(t, []string{"A", "C"}, set.Names())

	for _, name := range []string{"B", "D"} {
		_, err := set.Resolve(name)
		assert.ErrorIs(t, err, ErrUnresolvableCapability, name)
	}
	_, err = set.Resolve("A")
	assert.NoError(t, err)
}

func TestListFor_InheritAllResolvesEverything(t *testing.T) {
	reg := registryWith(t, "A", "B", "C")
	for _, policy := range []CapabilityPolicy{InheritAll(), Only(), {}} {
		set, err := reg.ListFor(AgentDefinition{Name: "x", Capabilities: policy})
		require.NoError(t, err)
		assert.True(t, set.InheritsAll())
		for _, name := range reg.Names() {
			_, err := set.Resolve(name)
			assert.NoError(t, err, name)
		}
		_, err = set.Resolve("missing")
		assert.ErrorIs(t, err, ErrUnknownCapability)
	}
}

func TestListFor_MissingNamesAreUnresolvable(t *testing.T) {
	reg := registryWith(t, "A")
	_, err := reg.ListFor(AgentDefinition{Name: "x", Capabilities: Only("A", "B", "C")})
	require.ErrorIs(t, err, ErrUnresolvableCapability)
	assert.Contains(t, err.Error(), "B, C")
}

func TestCapabilitySet_UnavailableRemoteIsUnknown(t *testing.T) {
	reg := registryWith(t, "Read")
	stub := &remoteStub{}
	require.NoError(t, reg.Register("mcp__Playwright__browser_click", stub))

	set, err := reg.ListFor(AgentDefinition{Name: "qa", Capabilities: Only("Read", "mcp__Playwright__browser_click")})
	require.NoError(t, err)

	_, err = set.Resolve("mcp__Playwright__browser_click")
	assert.ErrorIs(t, err, ErrUnknownCapability)
	_, err = set.Resolve("Read")
	assert.NoError(t, err)

	tools := set.ListForAPI()
	require.Len(t, tools, 1)
	assert.Equal(t, "Read", tools[0].OfTool.Name)

	stub.up = true
	_, err = set.Resolve("mcp__Playwright__browser_click")
	assert.NoError(t, err)
	assert.Len(t, set.ListForAPI(), 2)
}

func TestCapabilitySet_ListForAPI(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, RegisterTool[readInput](reg, &mockReadTool{}))
	set, err := reg.ListFor(AgentDefinition{Name: "a"})
	require.NoError(t, err)

	tools := set.ListForAPI()
	require.Len(t, tools, 1)
	tool := tools[0]
	require.NotNil(t, tool.OfTool)
	assert.Equal(t, "Read", tool.OfTool.Name)
	desc := tool.GetDescription()
	require.NotNil(t, desc)
	assert.Equal(t, "Read a file from the filesystem", *desc)

	props, ok := tool.OfTool.InputSchema.Properties.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "file_path")
}

func TestCapabilitySet_WithLeavesOriginalUntouched(t *testing.T) {
	reg := registryWith(t, "A")
	base, err := reg.ListFor(AgentDefinition{Name: "x", Capabilities: Only("A")})
	require.NoError(t, err)

	extended := base.With("Task", echoHandle("Task"))
	assert.True(t, extended.Contains("Task"))
	assert.False(t, base.Contains("Task"))

	_, err = base.Resolve("Task")
	assert.ErrorIs(t, err, ErrUnresolvableCapability)
	res, err := extended.Invoke(context.Background(), "Task", nil)
	require.NoError(t, err)
	assert.Equal(t, "Task ok", res.Text())
}

func TestCapabilitySet_InvokePropagatesResolveError(t *testing.T) {
	reg := registryWith(t, "A", "B")
	set, err := reg.ListFor(AgentDefinition{Name: "x", Capabilities: Only("A")})
	require.NoError(t, err)

	res, err := set.Invoke(context.Background(), "B", nil)
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, ErrUnresolvableCapability))
}

func TestToolResultText(t *testing.T) {
	assert.Equal(t, "", (*ToolResult)(nil).Text())
	r := &ToolResult{Content: []anthropic.ContentBlockParamUnion{
		anthropic.NewTextBlock("one"),
		anthropic.NewTextBlock("two"),
	}}
	assert.Equal(t, "one\ntwo", r.Text())
	assert.True(t, ErrorResult("x").IsError)
}
