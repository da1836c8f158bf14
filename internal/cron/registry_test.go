package cron

import "testing"

func TestRegistrySkipsNilJobsAndPreservesOrder(t *testing.T) {
	first := &testJob{name: "first"}
	second := &testJob{name: "second"}
	registry := NewRegistry(first, nil, second)
	registry.Register(nil)
	registry.Register(&testJob{name: "third"})

	jobs := registry.Jobs()
	if len(jobs) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(jobs))
	}
	names := []string{"first", "second", "third"}
	for i, job := range jobs {
		if job.Name() != names[i] {
			t.Fatalf("job %d = %s, want %s", i, job.Name(), names[i])
		}
	}
}
