package model_test

import (
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/engramlabs/engram/pkg/model"
)

func TestFingerprint(t *testing.T) {
	fp1 := model.Fingerprint("message", "user", "hello")
	fp2 := model.Fingerprint("message", "user", "hello")
	gt.Equal(t, fp1, fp2)

	gt.V(t, model.Fingerprint("message", "assistant", "hello")).NotEqual(fp1)
	gt.V(t, model.Fingerprint("block", "user", "hello")).NotEqual(fp1)
	gt.V(t, model.Fingerprint("message", "user", "hello!")).NotEqual(fp1)

	// Field boundaries must not be ambiguous
	gt.V(t, model.Fingerprint("message", "userhe", "llo")).NotEqual(fp1)
}

func TestSyncCursorSet(t *testing.T) {
	cursor := &model.SyncCursor{
		AgentID:      "agent-1",
		Fingerprints: []string{"a", "b", "a"},
	}

	set := cursor.Set()
	gt.Equal(t, len(set), 2)
	_, ok := set["a"]
	gt.Equal(t, ok, true)
	_, ok = set["c"]
	gt.Equal(t, ok, false)
}

func TestAgentConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent_config.json")

	cfg := &model.AgentConfig{
		AgentID:   "agent-123",
		AgentName: "research agent",
		AgentType: "sleeptime",
	}
	gt.NoError(t, cfg.Save(path))

	loaded, err := model.LoadAgentConfig(path)
	gt.NoError(t, err)
	gt.Equal(t, loaded.AgentID, cfg.AgentID)
	gt.Equal(t, loaded.AgentName, cfg.AgentName)
	gt.Equal(t, loaded.AgentType, cfg.AgentType)
}

func TestLoadAgentConfigMissingID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent_config.json")
	gt.NoError(t, (&model.AgentConfig{AgentName: "no id"}).Save(path))

	_, err := model.LoadAgentConfig(path)
	gt.Error(t, err)
}

func TestLoadAgentConfigMissingFile(t *testing.T) {
	_, err := model.LoadAgentConfig(filepath.Join(t.TempDir(), "nope.json"))
	gt.Error(t, err)
}
