package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("..", "..", "schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	validate := func(s *jsonschema.Schema, v any) {
		t.Helper()
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	helloSchema := compile("hello.schema.json")
	welcomeSchema := compile("welcome.schema.json")
	questsSchema := compile("quests.schema.json")
	signalSchema := compile("signal.schema.json")
	rosterSchema := compile("roster.schema.json")

	var hello any
	_ = json.Unmarshal([]byte(`{
	  "type":"HELLO",
	  "protocol_version":"1.0",
	  "host_name":"wow-client",
	  "addon_id":"QuestWatch"
	}`), &hello)
	validate(helloSchema, hello)

	var welcome any
	_ = json.Unmarshal([]byte(`{
	  "type":"WELCOME",
	  "protocol_version":"1.0",
	  "session_id":"S1",
	  "resume_token":"resume_abc",
	  "engine_params":{
	    "tick_rate_hz":20,
	    "polling_interval_s":0.25,
	    "presence_ttl_s":2.0,
	    "settle_delay_s":0.1,
	    "buffer_limit":255,
	    "buffer_slot":"QuestWatchTargets",
	    "action_namespace":"QuestWatch",
	    "default_manual_timeout_s":600
	  }
	}`), &welcome)
	validate(welcomeSchema, welcome)

	var quests any
	_ = json.Unmarshal([]byte(`{
	  "type":"QUESTS",
	  "objectives":[
	    {"name":"Bob","quest_complete":false,"finisher":false,"objective_type":"monster","collected":4,"needed":10,"description":"Bob slain"},
	    {"name":"Alice","quest_complete":true,"finisher":true,"collected":0,"needed":0}
	  ]
	}`), &quests)
	validate(questsSchema, quests)

	var signal any
	_ = json.Unmarshal([]byte(`{
	  "type":"SIGNAL",
	  "source":"QuestWatch",
	  "action":"ATTEMPT_INTERACT",
	  "entity":"Bob"
	}`), &signal)
	validate(signalSchema, signal)

	var roster any
	_ = json.Unmarshal([]byte(`{
	  "type":"ROSTER",
	  "tick":42,
	  "entities":[
	    {"name":"Alice","class":"TURN_IN","present":true},
	    {"name":"Bob","class":"COMBAT","progress":40,"present":true,"source":"Bob slain"},
	    {"name":"Rare Spawn","class":"MANUAL","manual_left_s":55}
	  ]
	}`), &roster)
	validate(rosterSchema, roster)
}
