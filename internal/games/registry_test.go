package games

import (
	"strings"
	"testing"

	"github.com/yoockh/yootherapy/internal/utils"
)

func TestRegistryRejectsEmptyAndDuplicate(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(NewMatching(nil)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Register(NewMatching(nil)); !utils.IsCode(err, utils.CodeConflict) {
		t.Fatalf("duplicate register err = %v", err)
	}
	if err := reg.Register(emptyCode{NewMatching(nil)}); !utils.IsCode(err, utils.CodeInvalidArgument) {
		t.Fatalf("empty code err = %v", err)
	}
}

type emptyCode struct{ *Matching }

func (emptyCode) Code() string { return " " }

func TestRegistryGetUnknownListsCodes(t *testing.T) {
	reg := NewRegistry()
	if err := RegisterDefaults(reg, Deps{History: &fakeHistory{}, Stats: fakeStats{}, Scenes: &fakeScenes{}}); err != nil {
		t.Fatalf("RegisterDefaults: %v", err)
	}

	_, err := reg.Get("chess")
	if !utils.IsCode(err, utils.CodeNotFound) {
		t.Fatalf("err = %v", err)
	}
	want := "[ja, matching, memory_match, object_discovery, problem_solving, scene_description]"
	if !strings.Contains(err.Error(), want) {
		t.Fatalf("error %q does not list %s", err.Error(), want)
	}

	if got := len(reg.List()); got != 6 {
		t.Fatalf("List() = %d plugins", got)
	}
	p, err := reg.Get("ja")
	if err != nil || p.TrialType() != "joint_attention" {
		t.Fatalf("Get(ja) = %v, %v", p, err)
	}
}
