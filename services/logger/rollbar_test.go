package logsvc

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/edufee/core"
	"github.com/trezcool/edufee/core/user"
)

func TestRollbarLogger(t *testing.T) {
	conf := core.NewTestConfig()
	var buf bytes.Buffer
	logger := NewRollbarLogger(NewZerolog(&buf, conf, "test"), conf)

	usr := user.User{ID: "u1", Username: "meena"}
	logger.Error("recording payment", errors.New("boom"), map[string]interface{}{"student_id": "s1"}, usr)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "recording payment", entry["message"])
	assert.Equal(t, "test", entry["component"])
	assert.Equal(t, "s1", entry["student_id"])
	assert.Equal(t, "u1", entry["user_id"])
	assert.Contains(t, entry["error"], "boom")
}

func TestRollbarLogger_prepare(t *testing.T) {
	logger := RollbarLogger{}
	err := errors.New("boom")
	args := logger.prepare("msg", []interface{}{err, user.User{ID: "u1"}, user.User{ID: "u2"}})
	assert.Equal(t, []interface{}{"msg", err}, args)
}
