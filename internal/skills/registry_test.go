package skills

import (
	"context"
	"testing"

	"github.com/auriga-os/emonk/internal/models"
)

func TestRegistry_DispatchKnownSkill(t *testing.T) {
	r := NewRegistry()
	r.Register(models.SkillDescriptor{Name: "echo", Description: "echoes input"},
		func(_ context.Context, input string) (string, error) {
			return "echo: " + input, nil
		})

	out, err := r.Dispatch(context.Background(), "echo", "hi")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if out != "echo: hi" {
		t.Errorf("Dispatch output = %q", out)
	}
}

func TestRegistry_DispatchUnknownSkill(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Dispatch(context.Background(), "nonexistent", ""); err == nil {
		t.Fatal("expected error dispatching an unregistered skill")
	}
}

func TestRegistry_DescriptorsReturnsCopy(t *testing.T) {
	r := NewRegistry()
	r.Register(models.SkillDescriptor{Name: "a"}, func(_ context.Context, _ string) (string, error) { return "", nil })

	descs := r.Descriptors()
	descs[0].Name = "mutated"

	if r.Descriptors()[0].Name != "a" {
		t.Error("mutating the returned slice affected the registry's internal state")
	}
}
