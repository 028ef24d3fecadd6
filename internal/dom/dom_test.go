package dom

import "testing"

func TestMutationsReachObservers(t *testing.T) {
	doc := NewDocument()
	var seen []Mutation
	doc.Observe(func(m Mutation) { seen = append(seen, m) })

	div := NewElement("DIV", nil)
	img := NewElement("img", map[string]string{"SRC": "a.png"})
	div.Append(img)
	if len(seen) != 0 {
		t.Fatalf("detached changes should not be observed, got %d", len(seen))
	}

	doc.Root().Append(div)
	if len(seen) != 1 || seen[0].Kind != SubtreeAdded || seen[0].Target != div {
		t.Fatalf("seen = %+v", seen)
	}

	img.SetAttr("src", "b.png")
	img.SetAttr("src", "b.png")
	if len(seen) != 2 || seen[1].Kind != AttributeChanged || seen[1].Attribute != "src" {
		t.Fatalf("seen = %+v", seen)
	}
	if v, _ := img.Attr("Src"); v != "b.png" {
		t.Errorf("Attr = %q", v)
	}
	if div.Tag() != "div" {
		t.Errorf("Tag = %q", div.Tag())
	}
}

func TestClosest(t *testing.T) {
	a := NewElement("a", map[string]string{"href": "x.html"})
	span := NewElement("span", nil)
	a.Append(span)
	if got := span.Closest("a", "area"); got != a {
		t.Errorf("Closest = %v", got)
	}
	if got := a.Closest("area"); got != nil {
		t.Errorf("Closest = %v, want nil", got)
	}
}

func TestClickEvent(t *testing.T) {
	ev := &ClickEvent{}
	if ev.DefaultPrevented() {
		t.Fatal("new event already prevented")
	}
	ev.PreventDefault()
	if !ev.DefaultPrevented() {
		t.Error("PreventDefault had no effect")
	}
}
