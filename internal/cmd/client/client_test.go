package client

import (
	"bufio"
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gazay/logux-core/pkg/log"
	"github.com/gazay/logux-core/pkg/store"
)

type cli struct {
	t    *testing.T
	base []string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	return &cli{t: t, base: []string{
		"--data-dir", t.TempDir(),
		"--backend", "pebble",
		"--fsync", "never",
		"--log-level", "error",
	}}
}

// run executes one command and returns its JSON lines.
func (c *cli) run(args ...string) ([]map[string]any, error) {
	c.t.Helper()
	root := NewRoot(log.NewNopLogger())
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(append([]string{}, args...), c.base...))
	err := root.Execute()

	var lines []map[string]any
	sc := bufio.NewScanner(&out)
	for sc.Scan() {
		var m map[string]any
		if json.Unmarshal(sc.Bytes(), &m) == nil {
			lines = append(lines, m)
		}
	}
	return lines, err
}

func (c *cli) must(args ...string) []map[string]any {
	c.t.Helper()
	lines, err := c.run(args...)
	require.NoError(c.t, err, args)
	return lines
}

func idOf(t *testing.T, line map[string]any) string {
	t.Helper()
	meta := line["meta"].(map[string]any)
	raw, err := json.Marshal(meta["id"])
	require.NoError(t, err)
	var e store.Entry
	require.NoError(t, json.Unmarshal([]byte(`{"meta":{"id":`+string(raw)+`}}`), &e))
	return e.Meta.ID.String()
}

func TestAddListGet(t *testing.T) {
	c := newCLI(t)
	out := c.must("add", "--type", "user/rename", "--data", `{"name":"Ann"}`, "--reason", "user:1")
	require.Len(t, out, 1)
	assert.Equal(t, true, out[0]["added"])
	first := idOf(t, out[0])

	c.must("add", "--data", `{"type":"ping"}`)

	list := c.must("list", "--order", "added")
	require.Len(t, list, 2)
	assert.Equal(t, "ping", list[0]["action"].(map[string]any)["type"])
	assert.Equal(t, "user/rename", list[1]["action"].(map[string]any)["type"])

	assert.Len(t, c.must("list", "--limit", "1", "--page-size", "1"), 1)
	assert.Len(t, c.must("list", "--order", "created"), 2)

	got := c.must("get", first)
	require.Len(t, got, 1)
	assert.Equal(t, "Ann", got[0]["action"].(map[string]any)["name"])
}

func TestAddDuplicateID(t *testing.T) {
	c := newCLI(t)
	out := c.must("add", "--type", "A", "--id", "100 other 0")
	assert.Equal(t, true, out[0]["added"])
	out = c.must("add", "--type", "B", "--id", "100 other 0")
	assert.Equal(t, false, out[0]["added"])
	assert.Len(t, c.must("list"), 1)
}

func TestAddRequiresType(t *testing.T) {
	c := newCLI(t)
	_, err := c.run("add", "--data", `{"name":"x"}`)
	assert.Error(t, err)
	_, err = c.run("add", "--type", "A", "--data", `not json`)
	assert.Error(t, err)
}

func TestRemoveAndNotFound(t *testing.T) {
	c := newCLI(t)
	c.must("add", "--type", "A", "--id", "1 n 0")
	out := c.must("remove", "1 n 0")
	require.Len(t, out, 1)
	assert.Equal(t, "A", out[0]["action"].(map[string]any)["type"])

	_, err := c.run("remove", "1 n 0")
	assert.Error(t, err)
	_, err = c.run("get", "1 n 0")
	assert.Error(t, err)
	_, err = c.run("get", "garbage")
	assert.Error(t, err)
}

func TestCleanWithKeepExpression(t *testing.T) {
	c := newCLI(t)
	c.must("add", "--type", "user/a", "--id", "1 n 0")
	c.must("add", "--type", "tmp", "--id", "2 n 0")
	c.must("add", "--type", "tmp", "--id", "3 n 0", "--reason", "r")

	out := c.must("clean", "--keep", `action_type.startsWith("user/")`)
	require.Len(t, out, 1)
	assert.EqualValues(t, 3, out[0]["before"])
	assert.EqualValues(t, 2, out[0]["after"])
	assert.EqualValues(t, 1, out[0]["removed"])

	_, err := c.run("get", "2 n 0")
	assert.Error(t, err)

	_, err = c.run("clean", "--keep", "action_type ==")
	assert.Error(t, err)
}

func TestRemoveReason(t *testing.T) {
	c := newCLI(t)
	c.must("add", "--type", "A", "--id", "1 n 0", "--reason", "r")
	c.must("add", "--type", "B", "--id", "2 n 0", "--reason", "r", "--reason", "s")
	c.must("add", "--type", "C", "--id", "3 n 0", "--reason", "r")

	out := c.must("remove-reason", "r", "--older-than", "3 n 0")
	require.Len(t, out, 1)
	assert.Equal(t, "A", out[0]["action"].(map[string]any)["type"])

	assert.Len(t, c.must("list"), 2)
	b := c.must("get", "2 n 0")
	assert.Equal(t, []any{"s"}, b[0]["meta"].(map[string]any)["reasons"])
}

func TestChangeMeta(t *testing.T) {
	c := newCLI(t)
	c.must("add", "--type", "A", "--id", "1 n 0", "--reason", "r")
	out := c.must("change-meta", "1 n 0", "--time", "42", "--reasons", "x,y", "--extra", `{"subprotocol":"1.0.0"}`)
	require.Len(t, out, 1)
	meta := out[0]["meta"].(map[string]any)
	assert.EqualValues(t, 42, meta["time"])
	assert.Equal(t, []any{"x", "y"}, meta["reasons"])
	assert.Equal(t, "1.0.0", meta["extra"].(map[string]any)["subprotocol"])

	_, err := c.run("change-meta", "9 n 0", "--time", "1")
	assert.Error(t, err)
	_, err = c.run("change-meta", "1 n 0")
	assert.Error(t, err)
}

func TestSyncedAndLastAdded(t *testing.T) {
	c := newCLI(t)
	out := c.must("synced")
	assert.EqualValues(t, 0, out[0]["received"])

	out = c.must("synced", "set", "--received", "5")
	assert.EqualValues(t, 5, out[0]["received"])
	assert.EqualValues(t, 0, out[0]["sent"])
	out = c.must("synced", "set", "--sent", "3")
	assert.EqualValues(t, 5, out[0]["received"])
	assert.EqualValues(t, 3, out[0]["sent"])

	_, err := c.run("synced", "set")
	assert.Error(t, err)

	c.must("add", "--type", "A")
	c.must("add", "--type", "B")
	out = c.must("last-added")
	assert.EqualValues(t, 2, out[0]["lastAdded"])
}

func TestNamespaces(t *testing.T) {
	c := newCLI(t)
	c.must("add", "--type", "A", "-n", "alpha")
	c.must("add", "--type", "A", "-n", "beta")
	assert.Len(t, c.must("list", "-n", "alpha"), 1)

	var names []string
	for _, line := range c.must("namespaces") {
		names = append(names, line["namespace"].(string))
	}
	assert.Subset(t, names, []string{"alpha", "beta"})

	_, err := c.run("list", "-n", "Bad/Name")
	assert.Error(t, err)
}

func TestConfigCommand(t *testing.T) {
	c := newCLI(t)
	out := c.must("config", "--node", "test")
	require.Len(t, out, 1)
	cfg := out[0]["config"].(map[string]any)
	assert.Equal(t, "pebble", cfg["backend"])
	assert.Equal(t, "test", cfg["nodeId"])
}
