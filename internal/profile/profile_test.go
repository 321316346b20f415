package profile

import (
	"encoding/json"
	"testing"
)

func TestNormalizeRole(t *testing.T) {
	tests := []struct {
		raw  string
		want Role
	}{
		{"admin", RoleAdmin},
		{"professor", RoleProfessor},
		{"student", RoleStudent},
		{" Professor ", RoleProfessor},
		{"", RoleStudent},
		{"superuser", RoleStudent},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := NormalizeRole(tt.raw); got != tt.want {
				t.Errorf("NormalizeRole(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name, email, want string
	}{
		{"Ana Pérez", "ana@example.com", "Ana Pérez"},
		{"", "ana@example.com", "ana"},
		{"  ", "", "Estudiante"},
		{"", "@example.com", "Estudiante"},
	}

	for _, tt := range tests {
		if got := DisplayName(tt.name, tt.email); got != tt.want {
			t.Errorf("DisplayName(%q, %q) = %q, want %q", tt.name, tt.email, got, tt.want)
		}
	}
}

func TestNew_Defaults(t *testing.T) {
	p := New("u1", "ana@example.com", "")

	if p.Role != RoleStudent {
		t.Errorf("Role = %q, want student", p.Role)
	}
	if p.Name != "ana" {
		t.Errorf("Name = %q, want ana", p.Name)
	}
	if len(p.CompletedTopics) != 0 || len(p.EnrolledCourses) != 0 {
		t.Error("new profile should start with no progress")
	}
}

func TestProfile_MarkCompleted(t *testing.T) {
	var p Profile

	if !p.MarkCompleted("1.1") {
		t.Error("first MarkCompleted should report new")
	}
	if p.MarkCompleted("1.1") {
		t.Error("second MarkCompleted should report duplicate")
	}
	if !p.HasCompleted("1.1") {
		t.Error("HasCompleted(1.1) = false")
	}
	if len(p.CompletedTopics) != 1 {
		t.Errorf("len(CompletedTopics) = %d, want 1", len(p.CompletedTopics))
	}

	var nilProfile *Profile
	if nilProfile.HasCompleted("1.1") {
		t.Error("nil profile has no completions")
	}
}

func TestProfile_Enroll(t *testing.T) {
	p := New("u1", "", "")
	p.Enroll("c1")
	p.Enroll("c1")
	p.Enroll("c2")

	if len(p.EnrolledCourses) != 2 {
		t.Errorf("EnrolledCourses = %v, want [c1 c2]", p.EnrolledCourses)
	}
}

func TestProfile_CloneIsDeep(t *testing.T) {
	p := New("u1", "", "")
	p.MarkCompleted("1.1")
	p.Enroll("c1")

	c := p.Clone()
	c.MarkCompleted("2.1")
	c.EnrolledCourses[0] = "changed"

	if p.HasCompleted("2.1") {
		t.Error("clone shares completed set with original")
	}
	if p.EnrolledCourses[0] != "c1" {
		t.Error("clone shares enrollment slice with original")
	}
}

func TestTopicSet_JSON(t *testing.T) {
	s := NewTopicSet("2.1", "1.1", "1.1")

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(data) != `["1.1","2.1"]` {
		t.Errorf("Marshal() = %s", data)
	}

	var back TopicSet
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !back.Has("1.1") || !back.Has("2.1") || len(back) != 2 {
		t.Errorf("Unmarshal() = %v", back.Sorted())
	}
}
