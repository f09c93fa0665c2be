package plugins

import (
	"testing"
	"time"

	"github.com/BATSNet/sims-sub000/internal/delivery"
	"github.com/stretchr/testify/assert"
)

func newTestRegistry() *delivery.Registry {
	r := delivery.NewRegistry()
	Register(r)
	return r
}

func TestAliasesResolveToWebhook(t *testing.T) {
	r := newTestRegistry()
	for _, typ := range []string{"n8n", "custom"} {
		p := r.Get(typ, map[string]any{"endpoint_url": "https://example.com"}, nil)
		assert.NotNil(t, p, typ)
		_, ok := p.(*Webhook)
		assert.True(t, ok, "%s must build the webhook plugin", typ)
	}
}

func TestCfgHelpers(t *testing.T) {
	cfg := map[string]any{
		"s":     "text",
		"i":     7,
		"i64":   int64(8),
		"f":     float64(9),
		"b":     true,
		"list":  []any{"a", "b", 3},
		"slist": []string{"x"},
	}
	assert.Equal(t, "text", cfgString(cfg, "s"))
	assert.Empty(t, cfgString(cfg, "i"), "non-string yields empty")
	assert.Equal(t, 7, cfgInt(cfg, "i"))
	assert.Equal(t, 8, cfgInt(cfg, "i64"))
	assert.Equal(t, 9, cfgInt(cfg, "f"))
	assert.Equal(t, 0, cfgInt(cfg, "s"))
	assert.True(t, cfgBool(cfg, "b"))
	assert.False(t, cfgBool(cfg, "missing"))
	assert.Equal(t, []string{"a", "b"}, cfgStringList(cfg, "list"), "non-strings are dropped")
	assert.Equal(t, []string{"x"}, cfgStringList(cfg, "slist"))
	assert.Nil(t, cfgStringList(cfg, "missing"))
}

func TestTimeoutHelper(t *testing.T) {
	assert.Equal(t, 30*time.Second, timeout(map[string]any{}))
	assert.Equal(t, 5*time.Second, timeout(map[string]any{"timeout_seconds": 5}))
	assert.Equal(t, 30*time.Second, timeout(map[string]any{"timeout_seconds": -1}))
}
