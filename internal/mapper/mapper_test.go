package mapper

import (
	"testing"

	"github.com/alegrigoriev/vss2git/internal/config"
)

func assertEqual(t *testing.T, a, b string) {
	t.Helper()
	if a != b {
		t.Fatalf("assertEqual: expected %q == %q", a, b)
	}
}

func load(t *testing.T, xmlDoc string) *config.ConfigModel {
	t.Helper()
	model, _, err := config.Load(config.LoadOptions{XML: []byte(xmlDoc), SuppressDefaults: true})
	if err != nil {
		t.Fatal(err)
	}
	return model
}

func TestSimpleTrunkMapping(t *testing.T) {
	model := load(t, `
<Projects>
  <Project Name="p1" Path="**">
    <MapPath Path="trunk" Refname="refs/heads/main"/>
  </Project>
</Projects>`)
	m := New(model, config.NewProjectFilter(nil))
	d, err := m.Resolve("trunk")
	if err != nil {
		t.Fatal(err)
	}
	if d.Outcome != Mapped {
		t.Fatalf("expected Mapped, got %v", d.Outcome)
	}
	assertEqual(t, d.RefName, "refs/heads/main")
}

func TestUnmapBlocksSubtree(t *testing.T) {
	model := load(t, `
<Projects>
  <Project Name="p1" Path="**">
    <UnmapPath Path="obsolete/**"/>
    <MapPath Path="trunk" Refname="refs/heads/main"/>
  </Project>
</Projects>`)
	m := New(model, config.NewProjectFilter(nil))
	d, err := m.Resolve("obsolete/sub")
	if err != nil {
		t.Fatal(err)
	}
	if d.Outcome != Blocked {
		t.Fatalf("expected Blocked, got %v", d.Outcome)
	}
}

func TestMapRefRewrite(t *testing.T) {
	model := load(t, `
<Projects>
  <Project Name="p1" Path="**">
    <MapPath Path="branches/x" Refname="refs/heads/x"/>
    <MapRef OldRef="refs/heads/x" NewRef="refs/heads/features/x"/>
  </Project>
</Projects>`)
	m := New(model, config.NewProjectFilter(nil))
	d, err := m.Resolve("branches/x")
	if err != nil {
		t.Fatal(err)
	}
	assertEqual(t, d.RefName, "refs/heads/features/x")
}

func TestRefCollisionDisambiguation(t *testing.T) {
	model := load(t, `
<Projects>
  <Project Name="p1" Path="**">
    <MapPath Path="a/feat" Refname="refs/heads/feat"/>
    <MapPath Path="b/feat" Refname="refs/heads/feat"/>
  </Project>
</Projects>`)
	m := New(model, config.NewProjectFilter(nil))
	d1, err := m.Resolve("a/feat")
	if err != nil {
		t.Fatal(err)
	}
	d2, err := m.Resolve("b/feat")
	if err != nil {
		t.Fatal(err)
	}
	assertEqual(t, d1.RefName, "refs/heads/feat")
	assertEqual(t, d2.RefName, "refs/heads/feat__2")
}

func TestMapPathWithoutRefnameIsUnmapped(t *testing.T) {
	model := load(t, `
<Projects>
  <Project Name="p1" Path="**">
    <MapPath Path="scratch/**"/>
  </Project>
</Projects>`)
	m := New(model, config.NewProjectFilter(nil))
	d, err := m.Resolve("scratch/tmp")
	if err != nil {
		t.Fatal(err)
	}
	if d.Outcome != Unmapped {
		t.Fatalf("expected Unmapped, got %v", d.Outcome)
	}
}
