package warmup

import "testing"

func env(kv map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := kv[k]
		return v, ok
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want bool
	}{
		{"nothing set", nil, false},
		{"ecs", map[string]string{"ECS_CONTAINER_METADATA_URI_V4": "http://169.254.170.2/v4"}, true},
		{"lambda", map[string]string{"AWS_EXECUTION_ENV": "AWS_ECS_FARGATE"}, true},
		{"batch", map[string]string{"AWS_BATCH_JOB_ID": "job-1"}, true},
		{"empty indicator", map[string]string{"AWS_EXECUTION_ENV": ""}, false},
		{"override on", map[string]string{"ENABLE_MODEL_WARMUP": "YES"}, true},
		{"override off beats platform", map[string]string{
			"ENABLE_MODEL_WARMUP": "0", "AWS_EXECUTION_ENV": "AWS_ECS_FARGATE",
		}, false},
		{"garbage override falls back", map[string]string{
			"ENABLE_MODEL_WARMUP": "maybe", "AWS_BATCH_JOB_ID": "job-1",
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Detect(env(tt.env)); got != tt.want {
				t.Errorf("Detect() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestState_String(t *testing.T) {
	want := map[State]string{Cold: "cold", WarmingUp: "warming_up", Ready: "ready", Degraded: "degraded", 9: "unknown"}
	for s, w := range want {
		if s.String() != w {
			t.Errorf("State(%d).String() = %q", s, s.String())
		}
	}
}
